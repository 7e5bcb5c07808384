package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:          "0.0.0.0:8080",
		Storage:       StoragePostgres,
		DatabaseURL:   "postgres://localhost/store",
		RateLimit:     RateLimitConfig{Max: 100, Window: time.Minute, ValidateMax: 20},
		PincodeFilter: PincodeFilterConfig{Enabled: true, FPR: 0.001, RefreshInterval: time.Minute},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory needs no database", mutate: func(c *Config) { c.Storage = StorageMemory; c.DatabaseURL = "" }},
		{name: "postgres needs database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "sqlite" }, wantErr: `unknown storage "sqlite"`},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "window must be positive"},
		{name: "bad fpr", mutate: func(c *Config) { c.PincodeFilter.FPR = 1 }, wantErr: "out of range"},
		{name: "fpr ignored when disabled", mutate: func(c *Config) { c.PincodeFilter = PincodeFilterConfig{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	explicit.applyPlatformDefaults()

	assert.Equal(t, "postgres://explicit/db", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", explicit.Addr)
}
