package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration
type Config struct {
	Port               int           // Port to listen on
	Secret             string        // Secret key for JWT signing
	Env                string        // Environment (development | production)
	BaseURL            string        // Base URL for the server, prefix of every public object URL
	UploadMaxSize      int64         // Maximum size of a single object in bytes
	StorageQuota       int64         // Aggregate bytes a user may keep stored
	AnonymousExpiresIn time.Duration // Lifetime of anonymous share codes
	AnonymousRateLimit int           // Anonymous requests per IP per minute, 0 disables limiting
	PurgeSchedule      string        // Cron spec for purging expired anonymous uploads, empty disables
	LogFile            string        // Optional rotating log file
	Storage            StorageConfig
}

func (c *Config) Log() {
	log.Info().
		Int("port", c.Port).
		Str("env", c.Env).
		Str("base_url", c.BaseURL).
		Str("upload_max_size", humanize.IBytes(uint64(c.UploadMaxSize))).
		Str("storage_quota", humanize.IBytes(uint64(c.StorageQuota))).
		Dur("anonymous_expires_in", c.AnonymousExpiresIn).
		Int("anonymous_rate_limit", c.AnonymousRateLimit).
		Str("purge_schedule", c.PurgeSchedule).
		Str("storage_provider", c.Storage.Provider).
		Msg("server configuration")
}

type StorageConfig struct {
	// Provider type ("local", "gcs" or "s3")
	Provider string `json:"provider"`

	// Local storage config
	LocalPath string `json:"local_path,omitempty"`

	// GCS config
	ProjectID  string `json:"project_id,omitempty"`
	BucketName string `json:"bucket_name,omitempty"`

	// S3 config
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
}

// NewConfig creates a server configuration from environment variables
func NewConfig() (*Config, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port <= 0 {
		log.Error().Err(err).Msg("invalid PORT environment variable")
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	secret := os.Getenv("SECRET")
	if secret == "" {
		log.Error().Msg("SECRET environment variable is required")
		return nil, fmt.Errorf("SECRET is required")
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "production"
	}

	baseURL := strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost"
	}

	uploadMaxSize, err := parseSize(envOr("UPLOAD_MAX_SIZE", "10MB"))
	if err != nil {
		log.Error().Err(err).Msg("invalid UPLOAD_MAX_SIZE configuration")
		return nil, err
	}

	storageQuota, err := parseSize(envOr("STORAGE_QUOTA", "990MB"))
	if err != nil {
		log.Error().Err(err).Msg("invalid STORAGE_QUOTA configuration")
		return nil, err
	}

	expiresInStr := envOr("ANONYMOUS_EXPIRES_IN", "24h")
	// Bare numbers are hours
	if _, err := strconv.Atoi(expiresInStr); err == nil {
		expiresInStr += "h"
	}
	expiresIn, err := time.ParseDuration(expiresInStr)
	if err != nil || expiresIn <= 0 {
		log.Error().Err(err).Msg("invalid ANONYMOUS_EXPIRES_IN environment variable")
		return nil, fmt.Errorf("invalid ANONYMOUS_EXPIRES_IN: %q", expiresInStr)
	}

	rateLimit, err := strconv.Atoi(envOr("ANONYMOUS_RATE_LIMIT", "30"))
	if err != nil || rateLimit < 0 {
		log.Error().Err(err).Msg("invalid ANONYMOUS_RATE_LIMIT environment variable")
		return nil, fmt.Errorf("invalid ANONYMOUS_RATE_LIMIT: %w", err)
	}

	storageConfig := StorageConfig{
		Provider:    envOr("STORAGE_PROVIDER", "local"),
		LocalPath:   os.Getenv("UPLOAD_DIR"),
		ProjectID:   os.Getenv("GCS_PROJECT_ID"),
		BucketName:  os.Getenv("GCS_BUCKET_NAME"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
	}

	if err := validateStorageConfig(storageConfig); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	return &Config{
		Port:               port,
		Secret:             secret,
		Env:                env,
		BaseURL:            baseURL,
		UploadMaxSize:      uploadMaxSize,
		StorageQuota:       storageQuota,
		AnonymousExpiresIn: expiresIn,
		AnonymousRateLimit: rateLimit,
		PurgeSchedule:      os.Getenv("PURGE_SCHEDULE"),
		LogFile:            os.Getenv("LOG_FILE"),
		Storage:            storageConfig,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// validateStorageConfig ensures the storage configuration is valid
func validateStorageConfig(cfg StorageConfig) error {
	switch cfg.Provider {
	case "local":
		if cfg.LocalPath == "" {
			return fmt.Errorf("UPLOAD_DIR is required for local storage")
		}
	case "gcs":
		if cfg.ProjectID == "" {
			return fmt.Errorf("GCS_PROJECT_ID is required for GCS storage")
		}
		if cfg.BucketName == "" {
			return fmt.Errorf("GCS_BUCKET_NAME is required for GCS storage")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for S3 storage")
		}
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for S3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
	return nil
}

// parseSize parses a size setting such as UPLOAD_MAX_SIZE or STORAGE_QUOTA.
// Value is expected to be postfixed with "MB" for megabytes or "GB" for gigabytes, e.g. "100MB".
// Both are binary multiples. If no postfix is provided, the value is assumed to be in megabytes.
func parseSize(size string) (int64, error) {
	var multiplier int64 = 1024 * 1024
	number := size

	switch {
	case strings.HasSuffix(size, "GB"):
		multiplier = 1024 * 1024 * 1024
		number = strings.TrimSuffix(size, "GB")
	case strings.HasSuffix(size, "MB"):
		number = strings.TrimSuffix(size, "MB")
	}

	value, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", size, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", size)
	}
	return value * multiplier, nil
}
