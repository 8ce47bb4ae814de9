package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	APIKey           string
	PublicBaseURL    string
	StoragePath      string
	ImageGenBaseURL  string
	ImageGenAPIKey   string
	ImageGenModel    string
	VideoGenBaseURL  string
	VideoGenAPIKey   string
	VideoGenModel    string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	SweepInterval    time.Duration
	JobTTL           time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		APIKey:           os.Getenv("API_KEY"),
		PublicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		ImageGenBaseURL:  getEnv("IMAGEGEN_BASE_URL", "https://api.imagegen.example.com/v1"),
		ImageGenAPIKey:   os.Getenv("IMAGEGEN_API_KEY"),
		ImageGenModel:    getEnv("IMAGEGEN_MODEL", "studio-image-1"),
		VideoGenBaseURL:  getEnv("VIDEOGEN_BASE_URL", "https://api.videogen.example.com/v1"),
		VideoGenAPIKey:   os.Getenv("VIDEOGEN_API_KEY"),
		VideoGenModel:    getEnv("VIDEOGEN_MODEL", "studio-video-1"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		SweepInterval:    time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		JobTTL:           time.Minute * time.Duration(getEnvInt("JOB_TTL_MINUTES", 30)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
