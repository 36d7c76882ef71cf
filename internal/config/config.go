package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no config path is provided.
const DefaultConfigPath = "config.yaml"

// AppConfig holds process-level startup options.
type AppConfig struct {
	ConfigPath string // Path to the YAML config file.
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8317".
}

// DatabaseConfig holds database connection options.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// JWTConfig holds token signing options.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`       // HMAC signing secret.
	UserExpiry  time.Duration `yaml:"user-expiry"`  // User token lifetime.
	AdminExpiry time.Duration `yaml:"admin-expiry"` // Admin token lifetime.
}

// RedisConfig holds optional redis options for the idempotency store.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables redis.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name.
	File       string `yaml:"file"`        // Empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"` // Rotation size threshold.
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ProofConfig holds the privacy proof gate options.
type ProofConfig struct {
	Secret string `yaml:"secret"` // Shared secret for proof artifacts.
}

// Config is the root YAML configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Proof    ProofConfig    `yaml:"proof"`
}

// ResolveConfigPath normalizes a config path, applying the default when empty.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = DefaultConfigPath
	}
	abs, errAbs := filepath.Abs(trimmed)
	if errAbs != nil {
		return trimmed
	}
	return abs
}

// Load reads and validates the YAML config file at path.
func Load(path string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{Addr: ":8317"},
		JWT: JWTConfig{
			UserExpiry:  24 * time.Hour,
			AdminExpiry: 12 * time.Hour,
		},
		Log: LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	applyEnvOverrides(&cfg)

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return cfg, fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return cfg, fmt.Errorf("config: jwt.secret is required")
	}
	return cfg, nil
}

// LoadDatabaseDSN reads only the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

// LoadJWTConfig reads only the JWT section from the config file.
func LoadJWTConfig(path string) (JWTConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return JWTConfig{}, err
	}
	return cfg.JWT, nil
}

// applyEnvOverrides lets environment variables override file values so
// containerized deployments can skip editing the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GIFTVAULT_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTVAULT_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTVAULT_JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTVAULT_REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GIFTVAULT_PROOF_SECRET")); v != "" {
		cfg.Proof.Secret = v
	}
}
