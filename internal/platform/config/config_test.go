package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"habitsync/internal/platform/config"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != dir || cfg.HistoryLimit != config.DefaultHistoryLimit {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.CommitTimeout != config.DefaultCommitTimeout || cfg.Authenticated() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.GuestVaultPath() != filepath.Join(dir, "guest.json") {
		t.Fatalf("unexpected vault path %s", cfg.GuestVaultPath())
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habitsync.yaml")
	content := `
data_dir: /var/lib/habitsync
history_limit: 50
commit_timeout: 30s
day_boundary_zone: UTC
remote:
  addr: ledger.local:7420
  token: from-file
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HABITSYNC_REMOTE_TOKEN", "from-env")
	t.Setenv("HABITSYNC_GOAL_COMMIT_TIMEOUT", "2s")

	cfg, err := config.Load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/habitsync" || cfg.HistoryLimit != 50 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CommitTimeout != 30*time.Second || cfg.GoalCommitTimeout != 2*time.Second {
		t.Fatalf("durations not applied: %s %s", cfg.CommitTimeout, cfg.GoalCommitTimeout)
	}
	if cfg.Remote.Token != "from-env" || !cfg.Authenticated() {
		t.Fatalf("env override not applied: %+v", cfg.Remote)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v %v", loc, err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("day_boundary_zone: Mars/Olympus\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path, dir); err == nil {
		t.Fatalf("expected unknown zone error")
	}
	t.Setenv("HABITSYNC_HISTORY_LIMIT", "0")
	if _, err := config.Load("", dir); err == nil {
		t.Fatalf("expected history limit error")
	}
}
