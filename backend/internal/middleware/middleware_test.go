package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	domain "prompt-vault/backend/internal/domain/user"
	response "prompt-vault/backend/internal/infra/common"
	"prompt-vault/backend/internal/infra/ratelimit"
	"prompt-vault/backend/internal/infra/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(ErrorRenderer(zap.NewNop().Sugar()))
	return engine
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body struct {
		Error   string         `json:"error"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return response.ErrorBody{Error: body.Error, Code: response.ErrorCode(body.Code), Details: body.Details}
}

func TestRequiredRejectsAnonymous(t *testing.T) {
	auth := NewAuthMiddleware(token.NewSessionManager("secret", time.Hour), nil)
	engine := newEngine()
	called := false
	engine.GET("/me", auth.Required(), func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if called {
		t.Fatalf("handler must not run for anonymous request")
	}
	body := decodeError(t, rec)
	if body.Code != response.ErrUnauthorized || body.Error == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRequiredAcceptsCookieAndBearer(t *testing.T) {
	sessions := token.NewSessionManager("secret", time.Hour)
	auth := NewAuthMiddleware(sessions, nil)
	raw, _, err := sessions.Issue(domain.Identity{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	engine := newEngine()
	engine.GET("/me", auth.Required(), func(c *gin.Context) {
		identity := MustIdentity(c)
		c.String(http.StatusOK, identity.UserID+"|"+identity.User.Email)
	})

	cookieReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	cookieReq.AddCookie(&http.Cookie{Name: SessionCookieName, Value: raw})
	bearerReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	bearerReq.Header.Set("Authorization", "Bearer "+raw)

	for _, req := range []*http.Request{cookieReq, bearerReq} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "u1|u1@example.com" {
			t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	}
}

func TestRequiredRejectsRevokedSession(t *testing.T) {
	sessions := token.NewSessionManager("secret", time.Hour)
	revocations := token.NewMemoryRevocationStore()
	auth := NewAuthMiddleware(sessions, revocations)
	raw, claims, _ := sessions.Issue(domain.Identity{ID: "u1"})
	_ = revocations.Revoke(context.Background(), claims.TokenID, claims.ExpiresAt)

	engine := newEngine()
	engine.GET("/me", auth.Required(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session should be rejected, got %d", rec.Code)
	}
}

func TestOptionalAllowsAnonymous(t *testing.T) {
	auth := NewAuthMiddleware(token.NewSessionManager("secret", time.Hour), nil)
	engine := newEngine()
	engine.GET("/market", auth.Optional(), func(c *gin.Context) {
		_, ok := OptionalIdentity(c)
		if ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	req := httptest.NewRequest(http.MethodGet, "/market", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestOfflineAuthInjectsLocalUser(t *testing.T) {
	auth := NewOfflineAuthMiddleware(domain.Identity{ID: "local-user", Name: "Local"})
	engine := newEngine()
	engine.GET("/me", auth.Required(), func(c *gin.Context) {
		c.String(http.StatusOK, MustIdentity(c).UserID)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Body.String() != "local-user" {
		t.Fatalf("unexpected identity %q", rec.Body.String())
	}
}

func TestErrorRendererMasksUnexpectedErrors(t *testing.T) {
	engine := newEngine()
	engine.GET("/boom", func(c *gin.Context) {
		response.Abort(c, errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("nil map")
	})
	engine.GET("/missing", func(c *gin.Context) {
		response.Abort(c, response.NotFound(response.ErrPromptNotFound, "提示词不存在"))
	})

	for _, path := range []string{"/boom", "/panic"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rec.Code)
		}
		body := decodeError(t, rec)
		if body.Code != response.ErrInternal || body.Error != "服务器内部错误" {
			t.Fatalf("%s: unexpected body %+v", path, body)
		}
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != response.ErrPromptNotFound {
		t.Fatalf("expected 404 PROMPT_NOT_FOUND, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitBoundary(t *testing.T) {
	limiter := NewRateLimiter(ratelimit.NewMemoryLimiter())
	engine := newEngine()
	policy := Policy{Identifier: "register", Window: 10 * time.Minute, Max: 5, KeyType: KeyByIP}
	engine.POST("/register", limiter.Limit(policy), func(c *gin.Context) {
		response.Created(c, gin.H{"ok": true})
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	for i := 1; i <= 5; i++ {
		rec := send("203.0.113.7")
		if rec.Code != http.StatusCreated {
			t.Fatalf("request #%d expected 201, got %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Fatalf("missing limit header")
		}
	}

	rec := send("203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" || rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
	body := decodeError(t, rec)
	if body.Code != response.ErrRateLimitExceeded {
		t.Fatalf("unexpected code %s", body.Code)
	}
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		t.Fatalf("parse reset header: %v", err)
	}
	want := "请求过于频繁，请在 " + time.Unix(reset, 0).Format("15:04:05") + " 后重试"
	if body.Error != want {
		t.Fatalf("expected message %q, got %q", want, body.Error)
	}
	details, _ := body.Details.(map[string]any)
	if details["limit"] != float64(5) || details["remaining"] != float64(0) {
		t.Fatalf("unexpected details %+v", details)
	}

	if rec := send("198.51.100.2"); rec.Code != http.StatusCreated {
		t.Fatalf("other ip should have its own window, got %d", rec.Code)
	}
}

func TestRateLimitByUserFallsBackToIP(t *testing.T) {
	limiter := NewRateLimiter(ratelimit.NewMemoryLimiter())
	offline := NewOfflineAuthMiddleware(domain.Identity{ID: "u1"})
	engine := newEngine()
	policy := Policy{Identifier: "publish", Window: time.Hour, Max: 1, KeyType: KeyByUser, Message: "发布过于频繁"}
	engine.POST("/user", offline.Required(), limiter.Limit(policy), func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/anon", limiter.Limit(policy), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/user", "/anon"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s first request expected 200, got %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/user", nil))
	if rec.Code != http.StatusTooManyRequests || !strings.HasPrefix(decodeError(t, rec).Error, "发布过于频繁，请在 ") {
		t.Fatalf("expected custom 429 message, got %d %s", rec.Code, rec.Body.String())
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (ratelimit.AllowResult, error) {
	return ratelimit.AllowResult{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(failingLimiter{})
	engine := newEngine()
	engine.POST("/x", limiter.Limit(Policy{Identifier: "x", Window: time.Minute, Max: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter errors should fail open, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Real-IP", "192.0.2.5")
	if got := ClientIP(c); got != "192.0.2.5" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}
