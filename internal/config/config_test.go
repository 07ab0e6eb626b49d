package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/medagenda")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.DBMinConns != 5 {
		t.Errorf("expected default min conns 5, got %d", cfg.DBMinConns)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request timeout 30s, got %s", cfg.RequestTimeout)
	}
	if !cfg.IsDev() {
		t.Error("expected IsDev() true by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db:5432/medagenda")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ORIGINS", "https://clinic.example.com,https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://clinic.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestValidate_ProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{Env: "production"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.JWTSecret = "a-long-shared-secret"
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without ENCRYPTION_MASTER_KEY")
	}
	if !strings.Contains(err.Error(), "ENCRYPTION_MASTER_KEY") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_EncryptionKeyFormat(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid 64 hex chars", strings.Repeat("ab", 32), false},
		{"not hex", strings.Repeat("zz", 32), true},
		{"too short", "abcd", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Env: "development", EncryptionMasterKey: tc.key}
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_DevMode(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("development config should validate without secrets: %v", err)
	}
}

func TestWarnIfDev(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	cfg := &Config{Env: "development"}
	cfg.WarnIfDev(logger)
	out := buf.String()
	if !strings.Contains(out, "DEVELOPMENT mode") {
		t.Errorf("expected development warning, got %q", out)
	}
	if !strings.Contains(out, "JWT_SECRET") {
		t.Errorf("expected missing-secret warning, got %q", out)
	}

	buf.Reset()
	cfg = &Config{Env: "production", JWTSecret: "s"}
	cfg.WarnIfDev(logger)
	if buf.Len() != 0 {
		t.Errorf("expected no warnings in production, got %q", buf.String())
	}
}
