package config

import (
	"os"

	"gopkg.in/yaml.v3"

	sales "fuelsync/internal/sales/domain"
)

// Policy holds reconciliation policy knobs that are configuration, not code.
type Policy struct {
	// ResetPolicy decides how a negative meter delta is derived:
	// "zero_base" (default) or "reject".
	ResetPolicy string `yaml:"reset_policy"`
	// AuditWindowHours bounds how long the entering operator may delete a
	// reading.
	AuditWindowHours int `yaml:"audit_window_hours"`
	// PriceCacheTTLSeconds bounds fuel price cache staleness.
	PriceCacheTTLSeconds int `yaml:"price_cache_ttl_seconds"`
}

// LoadPolicy loads policy from the yaml file named by FUELSYNC_POLICY,
// falling back to defaults.
func LoadPolicy() (Policy, error) {
	cfg := Policy{
		ResetPolicy:          string(sales.ResetZeroBase),
		AuditWindowHours:     24,
		PriceCacheTTLSeconds: 60,
	}

	if path := os.Getenv("FUELSYNC_POLICY"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if _, ok := sales.NormalizeResetPolicy(cfg.ResetPolicy); !ok {
		return cfg, sales.ErrUnknownResetPolicy
	}
	if cfg.AuditWindowHours <= 0 {
		cfg.AuditWindowHours = 24
	}
	if cfg.PriceCacheTTLSeconds <= 0 {
		cfg.PriceCacheTTLSeconds = 60
	}
	return cfg, nil
}
