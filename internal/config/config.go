package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const MB = 1024 * 1024

// Defaults for every optional setting. See Config for what they mean.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultAllowedOrigin   = "http://localhost:5173"
	DefaultUploadDir       = "./uploads"
	DefaultUploadBaseURL   = "/uploads"
	DefaultMaxUploadBytes  = 100 * MB
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds runtime settings, read from the environment.
type Config struct {
	DatabaseURL     string        // DATABASE_URL, required
	HTTPAddr        string        // HTTP_ADDR
	AllowedOrigins  []string      // CORS_ALLOWED_ORIGINS, comma separated
	JWTSecret       string        // JWT_SECRET; empty leaves the API open
	UploadDir       string        // UPLOAD_DIR
	UploadBaseURL   string        // UPLOAD_BASE_URL, prefix of blob URLs
	MaxUploadBytes  int64         // MAX_UPLOAD_BYTES per upload request
	LogLevel        string        // LOG_LEVEL
	LogPretty       bool          // LOG_PRETTY
	SeedDemo        bool          // SEED_DEMO fills an empty tree with sample data
	ShutdownTimeout time.Duration // SHUTDOWN_TIMEOUT
}

// AuthEnabled reports whether requests must carry a token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Load builds a Config from getenv, applying defaults for unset values.
func Load(getenv func(string) string) (*Config, error) {
	c := &Config{
		DatabaseURL:     getenv("DATABASE_URL"),
		HTTPAddr:        orDefault(getenv("HTTP_ADDR"), DefaultHTTPAddr),
		AllowedOrigins:  splitList(orDefault(getenv("CORS_ALLOWED_ORIGINS"), DefaultAllowedOrigin)),
		JWTSecret:       getenv("JWT_SECRET"),
		UploadDir:       orDefault(getenv("UPLOAD_DIR"), DefaultUploadDir),
		UploadBaseURL:   orDefault(getenv("UPLOAD_BASE_URL"), DefaultUploadBaseURL),
		MaxUploadBytes:  DefaultMaxUploadBytes,
		LogLevel:        orDefault(getenv("LOG_LEVEL"), DefaultLogLevel),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	var err error
	if v := getenv("MAX_UPLOAD_BYTES"); v != "" {
		if c.MaxUploadBytes, err = strconv.ParseInt(v, 10, 64); err != nil || c.MaxUploadBytes <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES: want a positive integer, got %q", v)
		}
	}
	if c.LogPretty, err = parseBool(getenv, "LOG_PRETTY"); err != nil {
		return nil, err
	}
	if c.SeedDemo, err = parseBool(getenv, "SEED_DEMO"); err != nil {
		return nil, err
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if c.ShutdownTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
	}
	return c, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: want a boolean, got %q", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
