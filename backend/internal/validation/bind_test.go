package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	response "prompt-vault/backend/internal/infra/common"

	"github.com/gin-gonic/gin"
)

type registerPayload struct {
	Email    string   `json:"email" binding:"required,email" label:"邮箱"`
	Password string   `json:"password" binding:"required,min=8" label:"密码"`
	Name     string   `json:"name" binding:"omitempty,max=8"`
	Groups   []string `json:"groups" binding:"omitempty,max=2,dive,max=4" label:"分组"`
}

func newJSONContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindJSONAggregatesAllViolations(t *testing.T) {
	var payload registerPayload
	err := BindJSON(newJSONContext(`{"email":"nope","password":"short"}`), &payload)

	appErr, ok := response.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != response.ErrValidation || appErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error %+v", appErr)
	}
	if appErr.Message != "无效的邮箱格式, 密码至少 8 个字符" {
		t.Fatalf("unexpected message %q", appErr.Message)
	}
	violations, ok := appErr.Details.([]FieldViolation)
	if !ok || len(violations) != 2 || violations[1].Field != "密码" {
		t.Fatalf("unexpected details %#v", appErr.Details)
	}
}

func TestBindJSONFallsBackToJSONName(t *testing.T) {
	var payload registerPayload
	err := BindJSON(newJSONContext(`{"email":"a@b.co","password":"longenough","name":"far too long name"}`), &payload)
	appErr, ok := response.AsAppError(err)
	if !ok || appErr.Message != "name最多 8 个字符" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBindJSONCollectionMessages(t *testing.T) {
	var payload registerPayload
	err := BindJSON(newJSONContext(`{"email":"a@b.co","password":"longenough","groups":["a","b","c"]}`), &payload)
	appErr, ok := response.AsAppError(err)
	if !ok || appErr.Message != "分组最多 2 项" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBindJSONInvalidJSON(t *testing.T) {
	for _, body := range []string{"", "{", `{"email": 5}`} {
		var payload registerPayload
		err := BindJSON(newJSONContext(body), &payload)
		appErr, ok := response.AsAppError(err)
		if !ok || appErr.Code != response.ErrInvalidJSON {
			t.Fatalf("body %q: expected INVALID_JSON, got %v", body, err)
		}
	}
}

func TestBindJSONSuccess(t *testing.T) {
	var payload registerPayload
	if err := BindJSON(newJSONContext(`{"email":"a@b.co","password":"longenough","groups":["x"]}`), &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Email != "a@b.co" || len(payload.Groups) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1" label:"页码"`
	PageSize int `form:"pageSize" binding:"omitempty,max=100" label:"每页数量"`
}

func newQueryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	return c
}

func TestBindQuery(t *testing.T) {
	var q pageQuery
	if err := BindQuery(newQueryContext("page=2&pageSize=10"), &q); err != nil || q.Page != 2 || q.PageSize != 10 {
		t.Fatalf("unexpected bind result %+v err=%v", q, err)
	}

	err := BindQuery(newQueryContext("pageSize=500"), &pageQuery{})
	appErr, ok := response.AsAppError(err)
	if !ok || appErr.Code != response.ErrValidation || appErr.Message != "每页数量不能大于 100" {
		t.Fatalf("unexpected error %v", err)
	}

	err = BindQuery(newQueryContext("page=abc"), &pageQuery{})
	appErr, ok = response.AsAppError(err)
	if !ok || appErr.Code != response.ErrBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}
