package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix shared by every environment variable the module reads.
const EnvPrefix = "USERSTORE_"

// DotEnvFile is read from the working directory, when present, before the process environment.
const DotEnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig says where the connection properties live.
type DatabaseConfig struct {
	Properties   string        `koanf:"properties" validate:"required"` // properties resource name
	Root         string        `koanf:"root"`                           // directory the resource is resolved against
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"min=0"` // per-call bound, 0 disables
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `koanf:"address" validate:"required"` // listen address (e.g., ":50051")
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required"` // JWT signing secret
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// envKeys maps USERSTORE_* suffixes onto config keys.
var envKeys = map[string]string{
	"PROPERTIES":    "database.properties",
	"ROOT":          "database.root",
	"QUERY_TIMEOUT": "database.query_timeout",
	"GRPC_ADDRESS":  "grpc.address",
	"JWT_SECRET":    "auth.jwt_secret",
	"LOG_LEVEL":     "log.level",
	"LOG_FORMAT":    "log.format",
}

func defaults() map[string]any {
	return map[string]any{
		"database.properties":    DefaultPropertiesFile,
		"database.root":          "",
		"database.query_timeout": "0s",
		"grpc.address":           ":50051",
		"auth.jwt_secret":        "",
		"log.level":              "info",
		"log.format":             "json",
	}
}

// Load loads configuration from environment variables with sensible defaults.
// USERSTORE_JWT_SECRET has no default and must be set.
func Load() (*Config, error) {
	return load(defaults())
}

// LoadWithDefaults is like Load but uses a safe default for USERSTORE_JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	d := defaults()
	d["auth.jwt_secret"] = "dev-secret-change-me"
	d["log.format"] = "console"
	return load(d)
}

func load(base map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(base, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := loadDotEnv(k, DotEnvFile); err != nil {
		return nil, err
	}
	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return envKeys[strings.TrimPrefix(s, EnvPrefix)]
}

// loadDotEnv layers USERSTORE_* entries of a .env file over the defaults.
// A missing file is not an error. The process environment is left untouched.
func loadDotEnv(k *koanf.Koanf, path string) error {
	vals, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	layer := make(map[string]any, len(vals))
	for name, v := range vals {
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if key := envKey(name); key != "" {
			layer[key] = v
		}
	}
	if err := k.Load(confmap.Provider(layer, "."), nil); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Properties: %s, gRPC: %s, Log: %s/%s, Auth: *** (masked) ***}",
		ResolvePath(c.Database.Root, c.Database.Properties), c.GRPC.Address, c.Log.Level, c.Log.Format)
}
