package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		Environment string
		FrontendURL string
	}
	DB struct {
		URL      string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Storage struct {
		Provider      string // minio | gcs | memory
		Bucket        string
		Endpoint      string
		Region        string
		AccessKey     string
		SecretKey     string
		UseSSL        bool
		PublicBaseURL string
		EmulatorHost  string
	}
	LLM struct {
		Provider  string // openai | gemini
		APIKey    string
		Model     string
		BaseURL   string
		MaxTokens int
		Timeout   time.Duration
	}
	Ingest struct {
		CSVMaxDataLines int
		JSONMaxRows     int
		SampleRows      int
		MaxFileBytes    int64
		FetchTimeout    time.Duration
	}
	Auth struct {
		JWTSecret      string
		ServiceRoleKey string
	}
	Workers struct {
		StaleMonitorEnabled  bool
		StaleMonitorInterval time.Duration
		StaleAfter           time.Duration
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
	Tracing struct {
		Enabled     bool
		Endpoint    string
		Insecure    bool
		SampleRatio float64
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.Environment = getEnv("ENVIRONMENT", "development")
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:5173")

	// DB
	cfg.DB.URL = getEnv("DATABASE_URL", "")
	cfg.DB.Host = getEnv("DB_HOST", "")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "")
	cfg.DB.DBName = getEnv("DB_NAME", "datalens")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Storage
	cfg.Storage.Provider = strings.ToLower(getEnv("STORAGE_PROVIDER", "minio"))
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "datasets")
	cfg.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", "localhost:9000")
	cfg.Storage.Region = getEnv("STORAGE_REGION", "us-east-1")
	cfg.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", "")
	cfg.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", "")
	cfg.Storage.UseSSL = getEnvAsBool("STORAGE_USE_SSL", false)
	cfg.Storage.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", "")
	cfg.Storage.EmulatorHost = getEnv("STORAGE_EMULATOR_HOST", "")

	// LLM
	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", 2000)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", 120*time.Second)
	switch cfg.LLM.Provider {
	case "gemini":
		cfg.LLM.APIKey = getEnv("GEMINI_API_KEY", "")
		cfg.LLM.Model = getEnv("LLM_MODEL", "gemini-2.0-flash")
	default:
		cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", "")
		cfg.LLM.Model = getEnv("LLM_MODEL", "gpt-4o-mini")
		cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", "https://api.openai.com")
	}

	// Ingest
	cfg.Ingest.CSVMaxDataLines = getEnvAsInt("INGEST_CSV_MAX_LINES", 999)
	cfg.Ingest.JSONMaxRows = getEnvAsInt("INGEST_JSON_MAX_ROWS", 0)
	cfg.Ingest.SampleRows = getEnvAsInt("INGEST_SAMPLE_ROWS", 10)
	cfg.Ingest.MaxFileBytes = int64(getEnvAsInt("INGEST_MAX_FILE_BYTES", 50<<20))
	cfg.Ingest.FetchTimeout = getEnvAsDuration("INGEST_FETCH_TIMEOUT", 60*time.Second)

	// Auth
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Auth.ServiceRoleKey = getEnv("SERVICE_ROLE_KEY", "")

	// Workers
	cfg.Workers.StaleMonitorEnabled = getEnvAsBool("STALE_MONITOR_ENABLED", true)
	cfg.Workers.StaleMonitorInterval = getEnvAsDuration("STALE_MONITOR_INTERVAL", 5*time.Minute)
	cfg.Workers.StaleAfter = getEnvAsDuration("STALE_AFTER", 30*time.Minute)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	// Tracing
	cfg.Tracing.Enabled = getEnvAsBool("OTEL_ENABLED", false)
	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.Tracing.Insecure = getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	cfg.Tracing.SampleRatio = getEnvAsFloat("OTEL_SAMPLER_RATIO", 1.0)

	return cfg
}

// Validate reports missing runtime secrets. The service refuses to start without them.
func (c *Config) Validate() error {
	var errs []error
	if c.DB.URL == "" && c.DB.Host == "" {
		errs = append(errs, errors.New("DATABASE_URL (or DB_HOST) is required"))
	}
	if c.Auth.ServiceRoleKey == "" {
		errs = append(errs, errors.New("SERVICE_ROLE_KEY is required"))
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			errs = append(errs, errors.New("GEMINI_API_KEY is required"))
		default:
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider))
	}
	switch c.Storage.Provider {
	case "minio", "gcs", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider))
	}
	return errors.Join(errs...)
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return dur
		}
	}
	return defaultValue
}
