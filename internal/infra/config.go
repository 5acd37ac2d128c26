package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"server/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	RedisURL         string
	OutputDir        string
	JobImagesDir     string
	ImageExpiry      time.Duration
	APIBaseURL       string
	FalKey           string
	AllowedIPs       []string
	AllowedOrigins   []string
	MaxQueuedJobs    int
	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "local"),
		Port:             getEnv("PORT", "8080"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		OutputDir:        getEnv("OUTPUT_DIR", "./output"),
		JobImagesDir:     getEnv("JOB_IMAGES_DIR", "./job_images"),
		ImageExpiry:      time.Minute * time.Duration(getEnvInt("IMAGE_EXPIRY_MINUTES", 30)),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:8080"),
		FalKey:           os.Getenv("FAL_KEY"),
		AllowedIPs:       getEnvList("API_ALLOWED_IPS", ""),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		MaxQueuedJobs:    getEnvInt("MAX_QUEUED_JOBS", domain.DefaultMaxQueuedJobs),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.ImageExpiry <= 0 {
		return nil, fmt.Errorf("IMAGE_EXPIRY_MINUTES must be positive")
	}

	if cfg.MaxQueuedJobs <= 0 {
		return nil, fmt.Errorf("MAX_QUEUED_JOBS must be positive")
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

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

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
