package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/media_test")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StoragePath != "./storage" {
		t.Errorf("StoragePath = %q, want ./storage", cfg.StoragePath)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("JobTTL = %v, want 30m", cfg.JobTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
}

func TestLoadConfigRequiredFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for missing DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/media_test")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for missing JWT_SECRET")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/media_test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PUBLIC_BASE_URL", "https://media.example.com")
	t.Setenv("JOB_TTL_MINUTES", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() unexpected error: %v", err)
	}
	if cfg.PublicBaseURL != "https://media.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.JobTTL != 5*time.Minute {
		t.Errorf("JobTTL = %v, want 5m", cfg.JobTTL)
	}
}
