package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Caller authentication modes for the callable endpoint.
const (
	AuthNone     = "none"
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// DefaultFCMEndpoint is the base URL of the FCM HTTP v1 API.
const DefaultFCMEndpoint = "https://fcm.googleapis.com"

// Config holds runtime configuration for the relay server.
type Config struct {
	Addr     string `json:"addr" yaml:"addr"`
	HTTPMode bool   `json:"http_mode" yaml:"http_mode"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`

	// Service account used to mint access tokens. CredentialsJSON wins over
	// CredentialsFile when both are set.
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	CredentialsJSON string `json:"-" yaml:"-"`

	FCMEndpoint string `json:"fcm_endpoint" yaml:"fcm_endpoint"`

	// Refresh the access token when less than TokenMargin of validity remains.
	TokenMargin  time.Duration `json:"token_margin" yaml:"token_margin"`
	TokenTimeout time.Duration `json:"token_timeout" yaml:"token_timeout"`
	SendTimeout  time.Duration `json:"send_timeout" yaml:"send_timeout"`

	AuthMode  string `json:"auth_mode" yaml:"auth_mode"`
	JWTSecret string `json:"-" yaml:"jwt_secret"`

	DBPath string `json:"db_path" yaml:"db_path"`

	// InitialAdminPassword is used for the admin account created on first
	// start. A random password is generated and logged when empty.
	InitialAdminPassword string `json:"-" yaml:"-"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file"`

	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Addr:           ":8443",
		CertFile:       "certs/cert.pem",
		KeyFile:        "certs/key.pem",
		FCMEndpoint:    DefaultFCMEndpoint,
		TokenMargin:    5 * time.Minute,
		TokenTimeout:   10 * time.Second,
		SendTimeout:    10 * time.Second,
		AuthMode:       AuthJWT,
		DBPath:         "push-relay.db",
		LogLevel:       "info",
		MetricsEnabled: true,
	}
}

// Load builds a Config from defaults, the optional YAML file at path, an
// optional .env file and PUSH_RELAY_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already present in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.CredentialsFile == "" && c.CredentialsJSON == "" {
		return errors.New("a service account is required (credentials_file or PUSH_RELAY_CREDENTIALS_JSON)")
	}
	if c.FCMEndpoint == "" {
		return errors.New("fcm_endpoint must not be empty")
	}
	if c.TokenMargin < 0 {
		return fmt.Errorf("token_margin must not be negative, got %s", c.TokenMargin)
	}
	if c.TokenTimeout <= 0 {
		return fmt.Errorf("token_timeout must be positive, got %s", c.TokenTimeout)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send_timeout must be positive, got %s", c.SendTimeout)
	}
	switch c.AuthMode {
	case AuthNone, AuthJWT, AuthFirebase:
	default:
		return fmt.Errorf("invalid auth_mode %q: must be none, jwt or firebase", c.AuthMode)
	}
	if c.AuthMode == AuthJWT && c.DBPath == "" {
		return errors.New("db_path is required when auth_mode is jwt")
	}
	if !c.HTTPMode && (c.CertFile == "" || c.KeyFile == "") {
		return errors.New("cert_file and key_file are required unless http_mode is set")
	}
	return nil
}
