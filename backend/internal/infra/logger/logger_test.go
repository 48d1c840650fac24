package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prompt-vault/backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func clearLogEnv(t *testing.T) {
	t.Helper()
	config.SetEnvFileLoadingForTest(false)
	t.Cleanup(func() { config.SetEnvFileLoadingForTest(true) })
	for _, key := range []string{"APP_MODE", "LOG_LEVEL", "LOG_ENCODING", "LOG_FILE", "LOG_CONSOLE", "LOG_COMPRESS", "LOG_MAX_SIZE", "LOG_MAX_BACKUPS", "LOG_MAX_AGE"} {
		t.Setenv(key, "")
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	clearLogEnv(t)
	t.Setenv("LOG_COMPRESS", "false")

	opts, err := LoadOptions()
	if err != nil {
		t.Fatalf("load options: %v", err)
	}
	if opts.Level != zapcore.InfoLevel || opts.Encoding != "json" || !opts.Console {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.FilePath != filepath.Join("logs", "prompt-vault.log") {
		t.Fatalf("unexpected file path %q", opts.FilePath)
	}
	if opts.Compress {
		t.Fatalf("LOG_COMPRESS=false should disable compression")
	}
}

func TestLoadOptionsLocalModeFollowsDatabase(t *testing.T) {
	clearLogEnv(t)
	dir := t.TempDir()
	t.Setenv("APP_MODE", "local")
	t.Setenv("LOCAL_SQLITE_PATH", filepath.Join(dir, "vault.db"))

	opts, err := LoadOptions()
	if err != nil {
		t.Fatalf("load options: %v", err)
	}
	if opts.FilePath != filepath.Join(dir, "logs", "prompt-vault.log") {
		t.Fatalf("unexpected local log path %q", opts.FilePath)
	}

	t.Setenv("LOG_FILE", "off")
	opts, err = LoadOptions()
	if err != nil || opts.FilePath != "" {
		t.Fatalf("LOG_FILE=off should disable file output, got %q %v", opts.FilePath, err)
	}
}

func TestLoadOptionsCollectsErrors(t *testing.T) {
	clearLogEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("LOG_ENCODING", "xml")
	t.Setenv("LOG_MAX_SIZE", "0")

	_, err := LoadOptions()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"LOG_LEVEL", "LOG_ENCODING", "LOG_MAX_SIZE"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q should mention %s", err, key)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	l, err := New(Options{Level: zapcore.DebugLevel, Encoding: "json", FilePath: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Info("hello")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"service":"prompt-vault"`) || !strings.Contains(string(raw), `"msg":"hello"`) {
		t.Fatalf("unexpected log content %s", raw)
	}
}

func TestAccessWriterEmitsOneEntryPerLine(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ReplaceForTest(zap.New(core))
	t.Cleanup(func() { ReplaceForTest(nil) })

	w := AccessWriter()
	if _, err := w.Write([]byte("127.0.0.1 \"GET /api/prompts\" 401\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 || entries[0].Message != "127.0.0.1 \"GET /api/prompts\" 401" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].ContextMap()["component"] != "http.access" {
		t.Fatalf("missing component field: %+v", entries[0].ContextMap())
	}
}
