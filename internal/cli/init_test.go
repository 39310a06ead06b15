package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"rewards/internal/backend"
)

func TestSetupLoggerLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	if slog.Default() != logger.Logger {
		t.Error("logger not installed as slog default")
	}

	logger = SetupLogger("warn")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "REWARDS_TEST_NEW=from-file\nREWARDS_TEST_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REWARDS_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("REWARDS_TEST_NEW") })

	LoadEnvFile(path)

	if got := os.Getenv("REWARDS_TEST_NEW"); got != "from-file" {
		t.Errorf("REWARDS_TEST_NEW = %q", got)
	}
	if got := os.Getenv("REWARDS_TEST_SET"); got != "from-env" {
		t.Errorf("REWARDS_TEST_SET = %q, environment should win", got)
	}

	// A missing file is ignored.
	LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
}

func TestOpenBackendMemory(t *testing.T) {
	res := OpenBackend(context.Background(), SetupLogger("error"), backend.Config{Type: backend.MemoryBackend})
	defer res.Close()
	if res.Store == nil || res.Type != backend.MemoryBackend {
		t.Fatalf("unexpected backend %+v", res)
	}
}
