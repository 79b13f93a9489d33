package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9000"
redis:
  addr: localhost:6379
  ttl: 5m
quiz:
  ordering: deterministic
  questionTimeout: 45s
  maxQuestions: 20
auth:
  admins: [coach-1]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("ADMIN_UIDS", "a1, a2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Quiz.Ordering != "deterministic" || cfg.Quiz.MaxQuestions != 20 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("expected env override for redis addr, got %q", cfg.Redis.Addr)
	}
	if len(cfg.Auth.Admins) != 2 || cfg.Auth.Admins[1] != "a2" {
		t.Fatalf("expected admins from env, got %v", cfg.Auth.Admins)
	}
	if d := TTLDuration(cfg.Quiz.QuestionTimeout, time.Second); d != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %v", d)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PORT", "8181")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to env: %v", err)
	}
	if cfg.Server.Port != "8181" {
		t.Fatalf("expected port from env, got %q", cfg.Server.Port)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", d)
	}
	if d := TTLDuration("soon", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", d)
	}
}
