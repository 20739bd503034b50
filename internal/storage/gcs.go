package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GCSStorageProvider struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	bucketName string
	baseURL    string
}

func NewGCSStorage(ctx context.Context, projectID, bucketName, baseURL string) (*GCSStorageProvider, error) {
	client, err := newGCSClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket := client.Bucket(bucketName)

	_, err = bucket.Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrBucketNotExist):
		log.Info().
			Str("bucket", bucketName).
			Msg("bucket does not exist, creating...")
		if err := bucket.Create(ctx, projectID, &storage.BucketAttrs{
			Location: "US-CENTRAL1",
		}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	return &GCSStorageProvider{
		client:     client,
		bucket:     bucket,
		bucketName: bucketName,
		baseURL:    baseURL,
	}, nil
}

// newGCSClient honours STORAGE_EMULATOR_HOST and base64 encoded
// GOOGLE_CLOUD_CREDENTIALS before falling back to default credentials.
func newGCSClient(ctx context.Context) (*storage.Client, error) {
	if emulatorHost := os.Getenv("STORAGE_EMULATOR_HOST"); emulatorHost != "" {
		log.Debug().
			Str("emulator_host", emulatorHost).
			Msg("using GCS emulator")
		return storage.NewClient(
			ctx,
			option.WithEndpoint(fmt.Sprintf("http://%s", emulatorHost)),
			option.WithoutAuthentication(),
		)
	}

	if creds := os.Getenv("GOOGLE_CLOUD_CREDENTIALS"); creds != "" {
		decoded, err := base64.StdEncoding.DecodeString(creds)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 credentials: %w", err)
		}
		return storage.NewClient(ctx, option.WithCredentialsJSON(decoded))
	}

	return storage.NewClient(ctx)
}

func (g *GCSStorageProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	writer := g.bucket.Object(key).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("failed to copy object to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// isPreconditionFailed reports a write rejected by the DoesNotExist condition
func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

func (g *GCSStorageProvider) Stream(ctx context.Context, key string, w http.ResponseWriter) error {
	obj := g.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get object attributes: %w", err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attrs.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attrs.Size, 10))
	if attrs.CacheControl != "" {
		w.Header().Set("Cache-Control", attrs.CacheControl)
	}

	bytesWritten, err := io.Copy(w, reader)
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Int64("bytes_written", bytesWritten).
			Msg("failed to stream object")
		return fmt.Errorf("failed to stream object: %w", err)
	}
	return nil
}

func (g *GCSStorageProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("error checking object existence: %w", err)
}

func (g *GCSStorageProvider) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (g *GCSStorageProvider) GetURL(key string) string {
	return publicURL(g.baseURL, key)
}

func (g *GCSStorageProvider) Close() error {
	return g.client.Close()
}
