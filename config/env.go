package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - PUSH_RELAY_ADDR (string, e.g. ":8443")
// - PUSH_RELAY_HTTP_MODE (bool)
// - PUSH_RELAY_CERT_FILE, PUSH_RELAY_KEY_FILE (string)
// - PUSH_RELAY_CREDENTIALS_FILE (string), GOOGLE_APPLICATION_CREDENTIALS as fallback
// - PUSH_RELAY_CREDENTIALS_JSON (inline service account JSON)
// - PUSH_RELAY_FCM_ENDPOINT (string)
// - PUSH_RELAY_TOKEN_MARGIN, PUSH_RELAY_TOKEN_TIMEOUT, PUSH_RELAY_SEND_TIMEOUT (duration, e.g. "10s")
// - PUSH_RELAY_AUTH_MODE ("none", "jwt", "firebase")
// - JWT_SECRET (string)
// - PUSH_RELAY_DB_PATH, PUSH_RELAY_ADMIN_PASSWORD (string)
// - PUSH_RELAY_LOG_LEVEL, PUSH_RELAY_LOG_FILE (string)
// - PUSH_RELAY_METRICS_ENABLED (bool)
func ApplyEnvOverrides(cfg *Config) error {
	if err := applyServerEnv(cfg); err != nil {
		return err
	}
	if err := applyCredentialEnv(cfg); err != nil {
		return err
	}
	if err := applyTimeoutEnv(cfg); err != nil {
		return err
	}
	applyMiscEnv(cfg)
	return setBoolEnv("PUSH_RELAY_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b })
}

func applyServerEnv(cfg *Config) error {
	if v := os.Getenv("PUSH_RELAY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("PUSH_RELAY_CERT_FILE"); v != "" {
		cfg.CertFile = v
	}
	if v := os.Getenv("PUSH_RELAY_KEY_FILE"); v != "" {
		cfg.KeyFile = v
	}
	return setBoolEnv("PUSH_RELAY_HTTP_MODE", func(b bool) { cfg.HTTPMode = b })
}

func applyCredentialEnv(cfg *Config) error {
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("PUSH_RELAY_CREDENTIALS_FILE"); v != "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("PUSH_RELAY_CREDENTIALS_JSON"); v != "" {
		cfg.CredentialsJSON = v
	}
	if v := os.Getenv("PUSH_RELAY_FCM_ENDPOINT"); v != "" {
		cfg.FCMEndpoint = v
	}
	return nil
}

func applyTimeoutEnv(cfg *Config) error {
	if err := setDurationEnv("PUSH_RELAY_TOKEN_MARGIN", &cfg.TokenMargin); err != nil {
		return err
	}
	if err := setDurationEnv("PUSH_RELAY_TOKEN_TIMEOUT", &cfg.TokenTimeout); err != nil {
		return err
	}
	return setDurationEnv("PUSH_RELAY_SEND_TIMEOUT", &cfg.SendTimeout)
}

func applyMiscEnv(cfg *Config) {
	if v := os.Getenv("PUSH_RELAY_AUTH_MODE"); v != "" {
		cfg.AuthMode = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("PUSH_RELAY_ADMIN_PASSWORD"); v != "" {
		cfg.InitialAdminPassword = v
	}
	if v := os.Getenv("PUSH_RELAY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PUSH_RELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PUSH_RELAY_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

func setBoolEnv(name string, set func(bool)) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	set(b)
	return nil
}

func setDurationEnv(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
