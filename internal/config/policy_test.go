package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	sales "fuelsync/internal/sales/domain"
)

func TestLoadPolicyDefaults(t *testing.T) {
	t.Setenv("FUELSYNC_POLICY", "")

	cfg, err := LoadPolicy()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResetPolicy != "zero_base" {
		t.Errorf("reset policy = %q, want zero_base", cfg.ResetPolicy)
	}
	if cfg.AuditWindowHours != 24 {
		t.Errorf("audit window = %d, want 24", cfg.AuditWindowHours)
	}
	if cfg.PriceCacheTTLSeconds != 60 {
		t.Errorf("price cache ttl = %d, want 60", cfg.PriceCacheTTLSeconds)
	}
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "reset_policy: reject\naudit_window_hours: 48\nprice_cache_ttl_seconds: 120\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("FUELSYNC_POLICY", path)

	cfg, err := LoadPolicy()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResetPolicy != "reject" {
		t.Errorf("reset policy = %q, want reject", cfg.ResetPolicy)
	}
	if cfg.AuditWindowHours != 48 {
		t.Errorf("audit window = %d, want 48", cfg.AuditWindowHours)
	}
	if cfg.PriceCacheTTLSeconds != 120 {
		t.Errorf("price cache ttl = %d, want 120", cfg.PriceCacheTTLSeconds)
	}
}

func TestLoadPolicyRejectsUnknownResetPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("reset_policy: negate\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("FUELSYNC_POLICY", path)

	if _, err := LoadPolicy(); !errors.Is(err, sales.ErrUnknownResetPolicy) {
		t.Fatalf("err = %v, want unknown reset policy", err)
	}
}
