package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	BaseURL        string

	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	RedisURL string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	StorageDriver          string
	UploadDir              string
	MaxUploadMB            int64
	CloudinaryUploadFolder string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	DisplayTimezone string

	MeiliSearchHost string
	MeiliMasterKey  string

	RateLimitTicket time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:8080"),
		BaseURL:        getEnv("APP_BASE_URL", "http://localhost:8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: os.Getenv("DB_PASS"),
		DBName: getEnv("DB_NAME", "itdesk"),

		RedisURL: os.Getenv("REDIS_URL"),

		SessionSecret: getEnv("SESSION_SECRET", "change-me"),
		CookieSecure:  getEnv("COOKIE_SECURE", "false") == "true",

		StorageDriver:          getEnv("STORAGE_DRIVER", "local"),
		UploadDir:              getEnv("UPLOAD_DIR", "uploads"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "itdesk"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Asia/Kolkata"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   os.Getenv("LOG_FILE"),
	}

	var err error
	cfg.SessionTTL, err = parseDuration(getEnv("SESSION_TTL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cfg.RateLimitTicket, err = parseDuration(getEnv("RATE_LIMIT_TICKET", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_TICKET: %w", err)
	}

	cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.MaxUploadMB, err = strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "16"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	if cfg.StorageDriver != "local" && cfg.StorageDriver != "cloudinary" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: must be local or cloudinary", cfg.StorageDriver)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
