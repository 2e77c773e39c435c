package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	CredentialsSourceEnv   = "env"
	CredentialsSourceRedis = "redis"
)

type Config struct {
	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	APNSEnvironment string `env:"APNS_ENVIRONMENT"`
	APNSCert        string `env:"APNS_CERT"`
	APNSKey         string `env:"APNS_KEY"`
	APNSCertFile    string `env:"APNS_CERT_FILE"`
	APNSKeyFile     string `env:"APNS_KEY_FILE"`
	APNSP12File     string `env:"APNS_P12_FILE"`
	APNSP12Password string `env:"APNS_P12_PASSWORD"`
	APNSCAFile      string `env:"APNS_CA_FILE"`

	APNSProductionHost string `env:"APNS_PRODUCTION_HOST,default=gateway.push.apple.com"`
	APNSSandboxHost    string `env:"APNS_SANDBOX_HOST,default=gateway.sandbox.push.apple.com"`
	APNSPort           int    `env:"APNS_PORT,default=2195"`

	APNSConnectTimeout    string `env:"APNS_CONNECT_TIMEOUT,default=10s"`
	APNSWriteTimeout      string `env:"APNS_WRITE_TIMEOUT,default=5s"`
	APNSIncludeIdentifier bool   `env:"APNS_INCLUDE_IDENTIFIER,default=false"`
	APNSMaxPayloadBytes   int    `env:"APNS_MAX_PAYLOAD_BYTES,default=2048"`
	StrictParams          bool   `env:"STRICT_PARAMS,default=false"`

	CredentialsSource   string `env:"CREDENTIALS_SOURCE,default=env"`
	RedisURL            string `env:"REDIS_URL"`
	RedisCredentialsKey string `env:"REDIS_CREDENTIALS_KEY,default=apns:credentials"`

	// DatabaseDSN enables the delivery audit trail when set.
	DatabaseDSN string `env:"DATABASE_DSN"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the rules that span several keys.
func (c *Config) Validate() error {
	var errs []error

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("API_PORT %d is out of range", c.APIPort))
	}
	if c.APNSPort <= 0 || c.APNSPort > 65535 {
		errs = append(errs, fmt.Errorf("APNS_PORT %d is out of range", c.APNSPort))
	}
	if strings.TrimSpace(c.APNSProductionHost) == "" || strings.TrimSpace(c.APNSSandboxHost) == "" {
		errs = append(errs, errors.New("APNS_PRODUCTION_HOST and APNS_SANDBOX_HOST must not be empty"))
	}
	if c.APNSMaxPayloadBytes < 0 {
		errs = append(errs, errors.New("APNS_MAX_PAYLOAD_BYTES must not be negative"))
	}
	if _, err := positiveDuration(c.APNSConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("APNS_CONNECT_TIMEOUT: %w", err))
	}
	if _, err := positiveDuration(c.APNSWriteTimeout); err != nil {
		errs = append(errs, fmt.Errorf("APNS_WRITE_TIMEOUT: %w", err))
	}
	if (c.APNSCertFile == "") != (c.APNSKeyFile == "") {
		errs = append(errs, errors.New("APNS_CERT_FILE and APNS_KEY_FILE must be set together"))
	}

	switch c.CredentialsSource {
	case CredentialsSourceEnv:
	case CredentialsSourceRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("REDIS_URL is required when CREDENTIALS_SOURCE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CREDENTIALS_SOURCE %q must be %q or %q", c.CredentialsSource, CredentialsSourceEnv, CredentialsSourceRedis))
	}

	return errors.Join(errs...)
}

func (c *Config) ConnectTimeout() time.Duration {
	d, _ := positiveDuration(c.APNSConnectTimeout)
	return d
}

func (c *Config) WriteTimeout() time.Duration {
	d, _ := positiveDuration(c.APNSWriteTimeout)
	return d
}

func positiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %s must be positive", d)
	}
	return d, nil
}
