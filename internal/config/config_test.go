package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const validConfig = `
server:
  port: 9000
database:
  uri: mongodb://localhost:27017
auth:
  jwt_secret: 0123456789abcdef0123456789abcdef
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Name != "inkwell" {
		t.Errorf("database name = %q, want inkwell", cfg.Database.Name)
	}
	if cfg.Auth.Algorithm != "HS256" {
		t.Errorf("algorithm = %q, want HS256", cfg.Auth.Algorithm)
	}
	if cfg.Auth.AccessTokenTTL != 60*time.Minute {
		t.Errorf("access ttl = %v, want 60m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("refresh ttl = %v, want 168h", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Limits.ReplyCap != 100 || cfg.Limits.ReactionCap != 100 {
		t.Errorf("caps = %d/%d, want 100/100", cfg.Limits.ReplyCap, cfg.Limits.ReactionCap)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:9000", cfg.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INKWELL_JWT_SECRET", "ffffffffffffffffffffffffffffffff")
	t.Setenv("INKWELL_MONGO_URI", "mongodb://override:27017")
	t.Setenv("INKWELL_PORT", "1234")

	cfg, err := Load(writeConfigFile(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "ffffffffffffffffffffffffffffffff" {
		t.Errorf("jwt secret not overridden, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.URI != "mongodb://override:27017" {
		t.Errorf("database uri = %q, want override", cfg.Database.URI)
	}
	if cfg.Server.Port != 1234 {
		t.Errorf("port = %d, want 1234", cfg.Server.Port)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("INKWELL_JWT_SECRET", "")
	cfg := `
database:
  uri: mongodb://localhost:27017
auth:
  jwt_secret: too-short
`
	_, err := Load(writeConfigFile(t, cfg))
	if err == nil {
		t.Fatal("Load() error = nil, want secret length error")
	}
	if !strings.Contains(err.Error(), "at least 32 characters") {
		t.Errorf("error = %v, want secret length message", err)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("INKWELL_JWT_SECRET", "")
	cfg := `
database:
  uri: mongodb://localhost:27017
`
	_, err := Load(writeConfigFile(t, cfg))
	if err == nil {
		t.Fatal("Load() error = nil, want missing secret error")
	}
}

func TestLoadRejectsMissingURI(t *testing.T) {
	t.Setenv("INKWELL_MONGO_URI", "")
	cfg := `
auth:
  jwt_secret: 0123456789abcdef0123456789abcdef
`
	_, err := Load(writeConfigFile(t, cfg))
	if err == nil {
		t.Fatal("Load() error = nil, want missing uri error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() error = nil, want read error")
	}
}
