package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEFAULT_REGION", "")
	t.Setenv("CONSENT_TIMEOUT", "")
	t.Setenv("CALM_STREAK", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DefaultRegion != "US" {
		t.Fatalf("expected default region US, got %s", cfg.DefaultRegion)
	}
	if cfg.ConsentTimeout != 3*time.Minute {
		t.Fatalf("expected default consent timeout, got %s", cfg.ConsentTimeout)
	}
	if cfg.CalmStreak != 3 {
		t.Fatalf("expected default calm streak, got %d", cfg.CalmStreak)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("DEFAULT_REGION", "uk")
	t.Setenv("CONSENT_TIMEOUT", "90s")
	t.Setenv("CALM_STREAK", "5")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("AUDIT_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/audit")
	t.Setenv("ON_CALL_EMAIL", "oncall@example.com")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.DefaultRegion != "UK" {
		t.Fatalf("expected normalized region override, got %s", cfg.DefaultRegion)
	}
	if cfg.ConsentTimeout != 90*time.Second {
		t.Fatalf("expected consent timeout override, got %s", cfg.ConsentTimeout)
	}
	if cfg.CalmStreak != 5 {
		t.Fatalf("expected calm streak override, got %d", cfg.CalmStreak)
	}
	if cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue disabled")
	}
	if cfg.AuditQueueURL == "" {
		t.Fatalf("expected audit queue override")
	}
	if cfg.OnCallEmail != "oncall@example.com" {
		t.Fatalf("expected on-call email override, got %s", cfg.OnCallEmail)
	}
}
