package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"prompt-vault/backend/internal/app"
	"prompt-vault/backend/internal/config"
	"prompt-vault/backend/internal/handler"
	"prompt-vault/backend/internal/infra/ratelimit"
	"prompt-vault/backend/internal/infra/store/storetest"

	"go.uber.org/zap"
)

func testResources(t *testing.T) *app.Resources {
	t.Helper()
	config.SetEnvFileLoadingForTest(false)
	t.Cleanup(func() { config.SetEnvFileLoadingForTest(true) })
	t.Setenv("REGISTER_CAPTCHA_ENABLED", "")
	t.Setenv(envStaticDir, "")

	return &app.Resources{
		Config: app.Config{
			Runtime: config.RuntimeFlags{Mode: config.ModeOnline},
			Server: config.ServerConfig{
				SessionSecret: "bootstrap-secret",
				DebugDBToken:  "bootstrap-debug",
				RateLimits:    config.DefaultRateLimitTable(),
			},
		},
		Store: storetest.Open(t),
	}
}

func TestBuildApplicationUsesDefaultSweepInterval(t *testing.T) {
	application, err := BuildApplication(context.Background(), zap.NewNop().Sugar(), testResources(t))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	defer application.Close()

	if application.sweepInterval != ratelimit.DefaultSweepInterval {
		t.Fatalf("sweep interval = %s, want %s", application.sweepInterval, ratelimit.DefaultSweepInterval)
	}
	if application.sweeperDone == nil {
		t.Fatalf("in-memory limiter should start its sweeper")
	}
}

func TestBuildApplicationWiresDebugSeed(t *testing.T) {
	application, err := BuildApplication(context.Background(), zap.NewNop().Sugar(), testResources(t))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	defer application.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/debug/db/seed", nil)
	req.Header.Set(handler.DebugTokenHeader, "bootstrap-debug")
	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from seed, got %d: %s", rec.Code, rec.Body.String())
	}
}
