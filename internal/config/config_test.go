package config_test

import (
	"testing"
	"time"

	"github.com/marshymcfloat/service-flow/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/serviceflow",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.BookingHorizonDays != 30 {
		t.Fatalf("expected 30 day horizon, got %d", cfg.BookingHorizonDays)
	}
	if cfg.SlotStepMinutes != 30 {
		t.Fatalf("expected 30 minute step, got %d", cfg.SlotStepMinutes)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("expected hourly sweep, got %s", cfg.SweepInterval)
	}
	if cfg.MetricsNamespace != "serviceflow" {
		t.Fatalf("unexpected namespace %q", cfg.MetricsNamespace)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	if _, err := config.LoadForTests(env); err == nil {
		t.Fatalf("expected error for missing DATABASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["BOOKING_HORIZON_DAYS"] = "14"
	env["SLOT_STEP_MINUTES"] = "15"
	env["SWEEP_INTERVAL"] = "30m"
	env["CORS_ALLOWED_ORIGINS"] = "https://app.example.com, https://admin.example.com"
	env["TENANT_ROOT_HOST"] = "bookings.example.com"

	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BookingHorizonDays != 14 {
		t.Fatalf("expected 14, got %d", cfg.BookingHorizonDays)
	}
	if cfg.SlotStepMinutes != 15 {
		t.Fatalf("expected 15, got %d", cfg.SlotStepMinutes)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", cfg.SweepInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.TenantRootHost != "bookings.example.com" {
		t.Fatalf("unexpected root host %q", cfg.TenantRootHost)
	}
}

func TestLoadRejectsNonPositiveHorizon(t *testing.T) {
	env := baseEnv()
	env["BOOKING_HORIZON_DAYS"] = "-1"
	if _, err := config.LoadForTests(env); err == nil {
		t.Fatalf("expected error for negative horizon")
	}
}
