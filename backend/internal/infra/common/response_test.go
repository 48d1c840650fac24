package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSuccessWrapsData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Success(c, 0, map[string]string{"id": "abc"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["id"] != "abc" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestFailRendersErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Fail(c, Forbidden("无权访问该提示词").WithDetails(gin.H{"resource": "prompt"}))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != ErrForbidden || body.Error != "无权访问该提示词" || body.Details == nil {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if !c.IsAborted() {
		t.Fatalf("Fail should abort the chain")
	}
}

func TestAsAppErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("load prompt: %w", NotFound(ErrPromptNotFound, "提示词不存在"))
	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Code != ErrPromptNotFound || appErr.Status != http.StatusNotFound {
		t.Fatalf("expected wrapped AppError, got %v %v", appErr, ok)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Fatalf("plain error should not be an AppError")
	}
}

func TestNewPaginatedRoundsUp(t *testing.T) {
	page := NewPaginated[int](nil, 41, 2, 20)
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", page.TotalPages)
	}
	if page.Items == nil {
		t.Fatalf("items should serialise as empty array")
	}
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	ts := time.Date(2025, 1, 2, 11, 4, 5, 123456789, loc)
	if got := FormatTime(ts); got != "2025-01-02T03:04:05.123Z" {
		t.Fatalf("unexpected format %q", got)
	}
	if FormatTime(time.Time{}) != "" {
		t.Fatalf("zero time should render empty")
	}
}

func TestDocumentsMapsEveryItem(t *testing.T) {
	out := Documents([]int{1, 2, 3}, func(v int) string { return fmt.Sprint(v * 2) })
	if len(out) != 3 || out[2] != "6" {
		t.Fatalf("unexpected mapping %v", out)
	}
}
