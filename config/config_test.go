package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.TokenMargin != 5*time.Minute {
		t.Errorf("expected 5m margin, got %v", cfg.TokenMargin)
	}
	if cfg.TokenTimeout != 10*time.Second || cfg.SendTimeout != 10*time.Second {
		t.Errorf("expected 10s timeouts, got %v / %v", cfg.TokenTimeout, cfg.SendTimeout)
	}
	if cfg.FCMEndpoint != DefaultFCMEndpoint {
		t.Errorf("unexpected endpoint %s", cfg.FCMEndpoint)
	}
	if cfg.AuthMode != AuthJWT {
		t.Errorf("expected jwt auth by default, got %s", cfg.AuthMode)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "relay.yaml", `
addr: ":9000"
http_mode: true
credentials_file: /etc/relay/sa.json
token_margin: 2m
token_timeout: 3s
send_timeout: 4s
auth_mode: none
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9000" || !cfg.HTTPMode {
		t.Errorf("unexpected server config: %+v", cfg)
	}
	if cfg.CredentialsFile != "/etc/relay/sa.json" {
		t.Errorf("unexpected credentials file %s", cfg.CredentialsFile)
	}
	if cfg.TokenMargin != 2*time.Minute || cfg.TokenTimeout != 3*time.Second || cfg.SendTimeout != 4*time.Second {
		t.Errorf("unexpected durations: %v %v %v", cfg.TokenMargin, cfg.TokenTimeout, cfg.SendTimeout)
	}
	if cfg.AuthMode != AuthNone {
		t.Errorf("expected auth none, got %s", cfg.AuthMode)
	}
	// Untouched keys keep defaults
	if cfg.DBPath != "push-relay.db" {
		t.Errorf("expected default db path, got %s", cfg.DBPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "token_timeout: [oops")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PUSH_RELAY_ADDR", ":7000")
	t.Setenv("PUSH_RELAY_HTTP_MODE", "true")
	t.Setenv("PUSH_RELAY_CREDENTIALS_JSON", `{"project_id":"p"}`)
	t.Setenv("PUSH_RELAY_FCM_ENDPOINT", "http://localhost:9999")
	t.Setenv("PUSH_RELAY_TOKEN_MARGIN", "1m")
	t.Setenv("PUSH_RELAY_SEND_TIMEOUT", "250ms")
	t.Setenv("PUSH_RELAY_AUTH_MODE", "firebase")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUSH_RELAY_METRICS_ENABLED", "false")

	cfg := Default()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.Addr != ":7000" || !cfg.HTTPMode {
		t.Errorf("unexpected server config: %+v", cfg)
	}
	if cfg.CredentialsJSON != `{"project_id":"p"}` {
		t.Errorf("unexpected credentials json %q", cfg.CredentialsJSON)
	}
	if cfg.FCMEndpoint != "http://localhost:9999" {
		t.Errorf("unexpected endpoint %s", cfg.FCMEndpoint)
	}
	if cfg.TokenMargin != time.Minute || cfg.SendTimeout != 250*time.Millisecond {
		t.Errorf("unexpected durations %v %v", cfg.TokenMargin, cfg.SendTimeout)
	}
	if cfg.AuthMode != AuthFirebase || cfg.JWTSecret != "s3cret" {
		t.Errorf("unexpected auth config %s %s", cfg.AuthMode, cfg.JWTSecret)
	}
	if cfg.MetricsEnabled {
		t.Error("expected metrics disabled")
	}
}

func TestApplyEnvOverridesGoogleCredentialsFallback(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/var/secrets/google.json")

	cfg := Default()
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.CredentialsFile != "/var/secrets/google.json" {
		t.Errorf("expected fallback credentials file, got %s", cfg.CredentialsFile)
	}

	t.Setenv("PUSH_RELAY_CREDENTIALS_FILE", "/explicit.json")
	if err := ApplyEnvOverrides(cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}
	if cfg.CredentialsFile != "/explicit.json" {
		t.Errorf("explicit file should win, got %s", cfg.CredentialsFile)
	}
}

func TestApplyEnvOverridesErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "PUSH_RELAY_TOKEN_TIMEOUT", "ten seconds"},
		{"bad bool", "PUSH_RELAY_HTTP_MODE", "maybe"},
		{"bad metrics bool", "PUSH_RELAY_METRICS_ENABLED", "yes please"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			err := ApplyEnvOverrides(Default())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should name %s, got %v", tt.key, err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "PUSH_RELAY_TEST_DOTENV=from-file\n")
	t.Setenv("PUSH_RELAY_TEST_DOTENV", "")
	os.Unsetenv("PUSH_RELAY_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("PUSH_RELAY_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should not fail: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.CredentialsFile = "sa.json"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing credentials", func(c *Config) { c.CredentialsFile = "" }, "service account"},
		{"inline credentials", func(c *Config) { c.CredentialsFile = ""; c.CredentialsJSON = "{}" }, ""},
		{"empty addr", func(c *Config) { c.Addr = "" }, "addr"},
		{"negative margin", func(c *Config) { c.TokenMargin = -time.Second }, "token_margin"},
		{"zero token timeout", func(c *Config) { c.TokenTimeout = 0 }, "token_timeout"},
		{"zero send timeout", func(c *Config) { c.SendTimeout = 0 }, "send_timeout"},
		{"bad auth mode", func(c *Config) { c.AuthMode = "basic" }, "auth_mode"},
		{"jwt without db", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"tls without certs", func(c *Config) { c.CertFile = "" }, "cert_file"},
		{"http mode without certs", func(c *Config) { c.CertFile = ""; c.HTTPMode = true }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
