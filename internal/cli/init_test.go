package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}

	t.Setenv("EXPENSES_TEST_KEY", "")
	os.Unsetenv("EXPENSES_TEST_KEY")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("EXPENSES_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := LoadEnvFile(); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("EXPENSES_TEST_KEY"); got != "from-file" {
		t.Errorf("EXPENSES_TEST_KEY = %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()
	l := SetupLogger("debug", "test")
	if !l.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if l.Component() != "test" {
		t.Errorf("component = %q", l.Component())
	}

	l = SetupLogger("chatty", "test")
	if l.Enabled(ctx, slog.LevelDebug) || !l.Enabled(ctx, slog.LevelInfo) {
		t.Error("unknown level should fall back to info")
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "not-a-port")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected validation error")
	}

	t.Setenv("PORT", "9090")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}
