package config

import (
	"os"
	"testing"
	"time"
)

func setenv(t *testing.T, key, value string) {
	t.Helper()
	old, existed := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s=%s failed: %v", key, value, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		_ = os.Setenv(key, old)
	})
}

func TestLoadRuntimeFlagsDefaultsToOnline(t *testing.T) {
	setenv(t, "APP_MODE", "")

	flags := LoadRuntimeFlags()
	if flags.Mode != ModeOnline {
		t.Fatalf("expected online mode, got %q", flags.Mode)
	}
	if flags.IsLocal() {
		t.Fatalf("online flags should not report local")
	}
	if flags.Local.UserID != defaultLocalUserID {
		t.Fatalf("unexpected default local user id %q", flags.Local.UserID)
	}
}

func TestLoadRuntimeFlagsLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	setenv(t, "APP_MODE", "LOCAL")
	setenv(t, "LOCAL_SQLITE_PATH", dir+"/vault.db")
	setenv(t, "LOCAL_USER_EMAIL", "me@example.com")

	flags := LoadRuntimeFlags()
	if !flags.IsLocal() {
		t.Fatalf("expected local mode, got %q", flags.Mode)
	}
	if flags.Local.DBPath != dir+"/vault.db" {
		t.Fatalf("unexpected db path %q", flags.Local.DBPath)
	}
	if flags.Local.Email != "me@example.com" {
		t.Fatalf("unexpected email %q", flags.Local.Email)
	}
}

func TestLoadRuntimeFlagsModeAliases(t *testing.T) {
	for raw, local := range map[string]bool{"offline": true, " Local ": true, "online": false, "staging": false} {
		setenv(t, "APP_MODE", raw)
		if got := LoadRuntimeFlags().IsLocal(); got != local {
			t.Fatalf("APP_MODE=%q: IsLocal=%v, want %v", raw, got, local)
		}
	}
}

func TestLoadServerConfig(t *testing.T) {
	SetEnvFileLoadingForTest(false)
	t.Cleanup(func() { SetEnvFileLoadingForTest(true) })

	setenv(t, "SERVER_PORT", "8088")
	setenv(t, "SESSION_SECRET", "s3cret")
	setenv(t, "FEED_CACHE_TTL", "90s")
	setenv(t, "CORS_ALLOW_ORIGINS", "http://a.test, ,http://b.test")
	setenv(t, "COOKIE_SECURE", "true")

	cfg := LoadServerConfig()
	if cfg.Port != "8088" || cfg.SessionSecret != "s3cret" {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
	if cfg.FeedCacheTTL != 90*time.Second {
		t.Fatalf("expected 90s feed ttl, got %s", cfg.FeedCacheTTL)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.AllowOrigins)
	}
	if !cfg.CookieSecure {
		t.Fatalf("expected secure cookie")
	}
}

func TestLoadRateLimitTableOverrides(t *testing.T) {
	setenv(t, "RATE_LIMIT_REGISTER_MAX", "3")
	setenv(t, "RATE_LIMIT_REGISTER_WINDOW", "1m")
	setenv(t, "RATE_LIMIT_IMPORT_MAX", "not-a-number")

	table := LoadRateLimitTable()
	if table.Register.Max != 3 || table.Register.Window != time.Minute {
		t.Fatalf("register override not applied: %+v", table.Register)
	}
	if table.Import.Max != 10 {
		t.Fatalf("invalid override should keep default, got %d", table.Import.Max)
	}
	if table.Publish.Window != 24*time.Hour || table.Publish.Max != 30 {
		t.Fatalf("unexpected publish defaults: %+v", table.Publish)
	}
}
