// Package config loads service configuration from environment variables.
//
// A .env file in the working directory is read first (if present); real
// environment variables always take precedence over values from the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	GenAI     GenAIConfig
	Mentors   MentorsConfig
}

type ServiceConfig struct {
	Name                string
	Version             string
	Env                 string
	Port                string
	ShutdownTimeout     string
	ReadinessDrainDelay string
}

type LoggingConfig struct {
	Level string
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

// DatabaseConfig selects the record store backend. Driver "memory" keeps
// every collection in process and ignores the connection settings.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

// AuthConfig configures the identity provider and the session resolver.
type AuthConfig struct {
	TokenSecret        string
	TokenTTL           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	// StrictLookup makes a failed profile lookup fail the login instead of
	// resolving the role to unknown.
	StrictLookup      bool
	ClientIdleTimeout string
	// MaxClients caps the live browser clients. The least recently seen
	// client is disposed when a new one would exceed it.
	MaxClients        int
	CookieSecure      bool
}

type GenAIConfig struct {
	APIKey string
	Model  string
}

type MentorsConfig struct {
	SeedFile string
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Service: ServiceConfig{
			Name:                getEnv("SERVICE_NAME", "mentorpath-service"),
			Version:             getEnv("VERSION", "dev"),
			Env:                 getEnv("ENV", "development"),
			Port:                getEnv("PORT", "8080"),
			ShutdownTimeout:     getEnv("SHUTDOWN_TIMEOUT", "10s"),
			ReadinessDrainDelay: getEnv("READINESS_DRAIN_DELAY", "5s"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("OTEL_COLLECTOR_ENDPOINT", "otel-collector:4318"),
			SampleRate: getEnvFloat("OTEL_SAMPLE_RATE", 0.1),
		},
		Profiling: ProfilingConfig{
			Enabled:  getEnvBool("PROFILING_ENABLED", false),
			Endpoint: getEnv("PYROSCOPE_ENDPOINT", "http://pyroscope:4040"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DATABASE_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "mentorpath"),
			User:     getEnv("DB_USER", "mentorpath"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_POOL_MAX_CONNECTIONS", 10)),
		},
		Auth: AuthConfig{
			TokenSecret:        getEnv("AUTH_TOKEN_SECRET", ""),
			TokenTTL:           getEnv("AUTH_TOKEN_TTL", "24h"),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
			StrictLookup:       getEnvBool("AUTH_STRICT_LOOKUP", false),
			ClientIdleTimeout:  getEnv("AUTH_CLIENT_IDLE_TIMEOUT", "30m"),
			MaxClients:         getEnvInt("AUTH_MAX_CLIENTS", 10000),
			CookieSecure:       getEnvBool("AUTH_COOKIE_SECURE", false),
		},
		GenAI: GenAIConfig{
			APIKey: getEnv("GENAI_API_KEY", ""),
			Model:  getEnv("GENAI_MODEL", "gemini-2.0-flash"),
		},
		Mentors: MentorsConfig{
			SeedFile: getEnv("MENTOR_SEED_FILE", ""),
		},
	}
}

// Validate checks required values and the format of every duration.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if _, err := strconv.Atoi(c.Service.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric: %w", err))
	}

	durations := map[string]string{
		"SHUTDOWN_TIMEOUT":         c.Service.ShutdownTimeout,
		"READINESS_DRAIN_DELAY":    c.Service.ReadinessDrainDelay,
		"AUTH_TOKEN_TTL":           c.Auth.TokenTTL,
		"AUTH_CLIENT_IDLE_TIMEOUT": c.Auth.ClientIdleTimeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or memory, got %q", c.Database.Driver))
	}

	if len(c.Auth.TokenSecret) < 32 {
		errs = append(errs, errors.New("AUTH_TOKEN_SECRET must be at least 32 characters"))
	}

	if c.Auth.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_MAX_CLIENTS must be positive, got %d", c.Auth.MaxClients))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

// GoogleEnabled reports whether federated Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Auth.GoogleClientID != "" && c.Auth.GoogleClientSecret != ""
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name, c.Database.SSLMode)
}

func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.Service.ShutdownTimeout, 10*time.Second)
}

func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return parseDuration(c.Service.ReadinessDrainDelay, 5*time.Second)
}

func (c *Config) GetTokenTTLDuration() time.Duration {
	return parseDuration(c.Auth.TokenTTL, 24*time.Hour)
}

func (c *Config) GetClientIdleTimeoutDuration() time.Duration {
	return parseDuration(c.Auth.ClientIdleTimeout, 30*time.Minute)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}
