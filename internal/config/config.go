package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	JWT struct {
		Secret          string `yaml:"secret" env:"JWT_SECRET"`
		TokenExpiration string `yaml:"token_expiration" env:"JWT_TOKEN_EXPIRATION"`
		Issuer          string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	WebAuthn struct {
		RPID          string   `yaml:"rp_id" env:"WEBAUTHN_RP_ID"`
		RPName        string   `yaml:"rp_name" env:"WEBAUTHN_RP_NAME"`
		RPOrigins     []string `yaml:"rp_origins" env:"WEBAUTHN_RP_ORIGINS"`
		ChallengeTTL  string   `yaml:"challenge_ttl" env:"WEBAUTHN_CHALLENGE_TTL"`
		SweepInterval string   `yaml:"sweep_interval" env:"WEBAUTHN_SWEEP_INTERVAL"`
	} `yaml:"webauthn"`

	Challenge struct {
		// Backend selects where live ceremony challenges are held:
		// "memory" (single instance) or "redis" (horizontally scaled).
		Backend string `yaml:"backend" env:"CHALLENGE_BACKEND"`
	} `yaml:"challenge"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	Biometric struct {
		FaceServiceURL   string  `yaml:"face_service_url" env:"FACE_SERVICE_URL"`
		MatchThreshold   float64 `yaml:"match_threshold" env:"FACE_MATCH_THRESHOLD"`
		EncryptionSecret string  `yaml:"encryption_secret" env:"FACE_ENCRYPTION_SECRET"`
		// Policy for the redemption gates: "both", "any", or "optional".
		Policy string `yaml:"policy" env:"BIOMETRIC_POLICY"`
	} `yaml:"biometric"`

	Session struct {
		CodeTTL string `yaml:"code_ttl" env:"SESSION_CODE_TTL"`
	} `yaml:"session"`

	RateLimit struct {
		MarkPerMinute int `yaml:"mark_per_minute" env:"RATE_LIMIT_MARK_PER_MIN"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// Config file is optional; env vars can carry everything.
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "presentia"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.JWT.TokenExpiration = "12h"
	config.JWT.Issuer = "presentia.app"

	config.WebAuthn.RPID = "localhost"
	config.WebAuthn.RPName = "Presentia Attendance"
	config.WebAuthn.RPOrigins = []string{"http://localhost:8080"}
	config.WebAuthn.ChallengeTTL = "5m"
	config.WebAuthn.SweepInterval = "5m"

	config.Challenge.Backend = "memory"

	config.Redis.Addr = "localhost:6379"

	config.Biometric.FaceServiceURL = "http://localhost:8000"
	config.Biometric.MatchThreshold = 0.62
	config.Biometric.Policy = "both"

	config.Session.CodeTTL = "5m"

	config.RateLimit.MarkPerMinute = 30

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Biometric.EncryptionSecret == "" {
		return fmt.Errorf("face encryption secret is required")
	}

	if config.WebAuthn.RPID == "" || len(config.WebAuthn.RPOrigins) == 0 {
		return fmt.Errorf("webauthn relying party identity is required")
	}

	if t := config.Biometric.MatchThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("face match threshold must be in (0, 1]")
	}

	switch strings.ToLower(config.Challenge.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("challenge backend must be \"memory\" or \"redis\"")
	}

	for _, field := range []struct {
		name, value string
	}{
		{"jwt.token_expiration", config.JWT.TokenExpiration},
		{"webauthn.challenge_ttl", config.WebAuthn.ChallengeTTL},
		{"webauthn.sweep_interval", config.WebAuthn.SweepInterval},
		{"session.code_ttl", config.Session.CodeTTL},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field.name, err)
		}
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// ChallengeTTL returns the parsed challenge lifetime.
func (c *Config) ChallengeTTL() time.Duration {
	return parseDurationOr(c.WebAuthn.ChallengeTTL, 5*time.Minute)
}

// SweepInterval returns the parsed challenge sweep interval.
func (c *Config) SweepInterval() time.Duration {
	return parseDurationOr(c.WebAuthn.SweepInterval, 5*time.Minute)
}

// SessionCodeTTL returns the parsed attendance code lifetime.
func (c *Config) SessionCodeTTL() time.Duration {
	return parseDurationOr(c.Session.CodeTTL, 5*time.Minute)
}

// JWTExpiration returns the parsed token lifetime.
func (c *Config) JWTExpiration() time.Duration {
	return parseDurationOr(c.JWT.TokenExpiration, 12*time.Hour)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
