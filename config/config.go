package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	LogLevel    string
	LogFormat   string // json, console
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	// SubmissionLockTTL bounds how long one CP's write may hold the submission lock
	SubmissionLockTTL time.Duration
}

type StorageConfig struct {
	Driver         string // s3, minio
	MaxUploadBytes int64
	S3             S3Config
	Minio          MinioConfig
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type CacheConfig struct {
	Size int
	TTL  time.Duration
}

type SchedulerConfig struct {
	Enabled         bool
	StaleReviewCron string
	// StaleReviewAfter is how long a material may sit in review before admins are reminded
	StaleReviewAfter time.Duration
}

// AdminConfig seeds the first reviewer account; empty values skip seeding
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "console"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "cpportal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Redis: RedisConfig{
			Enabled:           parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:              getEnv("REDIS_HOST", "localhost"),
			Port:              getEnv("REDIS_PORT", "6379"),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                parseInt(getEnv("REDIS_DB", "0"), 0),
			SubmissionLockTTL: parseDuration(getEnv("SUBMISSION_LOCK_TTL", "10s"), 10*time.Second),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", "s3")),
			MaxUploadBytes: int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10<<20)),
			S3: S3Config{
				Region:          getEnv("AWS_REGION", "ap-northeast-2"),
				Bucket:          getEnv("AWS_S3_BUCKET", "cpportal-uploads"),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
			},
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "cpportal-uploads"),
				UseSSL:    parseBool(getEnv("MINIO_USE_SSL", "false")),
				PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			},
		},
		Cache: CacheConfig{
			Size: parseInt(getEnv("MATERIAL_CACHE_SIZE", "1024"), 1024),
			TTL:  parseDuration(getEnv("MATERIAL_CACHE_TTL", "1m"), time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:          parseBool(getEnv("SCHEDULER_ENABLED", "true")),
			StaleReviewCron:  getEnv("STALE_REVIEW_CRON", "0 9 * * *"),
			StaleReviewAfter: parseDuration(getEnv("STALE_REVIEW_AFTER", "72h"), 72*time.Hour),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "관리자"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "s3", "minio":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Server.Environment == "production" && c.JWT.Secret == "your-secret-key" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
