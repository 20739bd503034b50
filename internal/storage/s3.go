package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Options configures an S3 compatible bucket. Endpoint is optional and
// enables path style addressing, as needed by MinIO and similar servers.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type S3StorageProvider struct {
	cli      *s3.Client
	uploader *manager.Uploader
	bucket   string
	baseURL  string
}

func NewS3Storage(ctx context.Context, opts S3Options, baseURL string) (*S3StorageProvider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID: opts.AccessKey, SecretAccessKey: opts.SecretKey,
			},
		}),
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:           opts.Endpoint,
					SigningRegion: opts.Region,
				}, nil
			})))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.Endpoint != ""
	})

	log.Debug().
		Str("bucket", opts.Bucket).
		Str("endpoint", opts.Endpoint).
		Msg("s3 storage configured")

	return &S3StorageProvider{
		cli:      cli,
		uploader: manager.NewUploader(cli),
		bucket:   opts.Bucket,
		baseURL:  baseURL,
	}, nil
}

// Upload checks for an existing object before writing. The SDK version in use
// has no conditional PutObject, so two writers racing on one key can still
// both succeed.
func (s *S3StorageProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object to s3: %w", err)
	}
	return nil
}

func (s *S3StorageProvider) Stream(ctx context.Context, key string, w http.ResponseWriter) error {
	resp, err := s.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get object: %w", err)
	}
	defer resp.Body.Close()

	if ct := aws.ToString(resp.ContentType); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cc := aws.ToString(resp.CacheControl); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to stream object: %w", err)
	}
	return nil
}

func (s *S3StorageProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.cli.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("error checking object existence: %w", err)
}

// Delete is idempotent on S3; a missing key is not reported.
func (s *S3StorageProvider) Delete(ctx context.Context, key string) error {
	_, err := s.cli.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *S3StorageProvider) GetURL(key string) string {
	return publicURL(s.baseURL, key)
}

func (s *S3StorageProvider) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
