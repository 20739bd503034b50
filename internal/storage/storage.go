package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"codedrop/internal/config"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
	ErrExists     = errors.New("object already exists")
)

// Provider stores binary objects under slash-separated keys such as
// "anonymous/12345678.png" or "<user id>/<unix millis>.pdf".
type Provider interface {
	// Upload writes a new object under key. Existing objects are never
	// replaced; a taken key returns ErrExists.
	Upload(ctx context.Context, r io.Reader, key, contentType string) error

	// Delete removes an object; deleting a missing object returns ErrNotFound
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL the object is served from
	GetURL(key string) string

	// Stream writes the object to an http.ResponseWriter including content headers
	Stream(ctx context.Context, key string, w http.ResponseWriter) error

	// Exists reports whether an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// Close cleans up any resources
	Close() error
}

// NewProvider creates a storage provider based on configuration. Objects are
// published below baseURL + "/f/".
func NewProvider(ctx context.Context, cfg config.StorageConfig, baseURL string) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalStorage(cfg.LocalPath, baseURL)
	case "gcs":
		return NewGCSStorage(ctx, cfg.ProjectID, cfg.BucketName, baseURL)
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, baseURL)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// CleanKey normalizes an object key and rejects keys escaping the namespace.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func publicURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/f/" + key
}
