package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
)

type s3Storage struct {
	client        *minio.Client
	bucket        string
	originalDir   string
	processedDir  string
	publicBaseURL string
}

func NewS3Storage(cfg *config.StorageConfig) (Storage, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	if cfg.OriginalDir == "" {
		cfg.OriginalDir = "original"
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = "processed"
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, cfg.WriteToken)
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.S3UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.S3Endpoint, cfg.S3Bucket)
	}

	return &s3Storage{
		client:        client,
		bucket:        cfg.S3Bucket,
		originalDir:   cfg.OriginalDir,
		processedDir:  cfg.ProcessedDir,
		publicBaseURL: base,
	}, nil
}

func (s *s3Storage) Enabled() bool { return true }

func (s *s3Storage) SaveOriginal(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveObject(ctx, s.originalDir, filename, reader)
}

func (s *s3Storage) SaveProcessed(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveObject(ctx, s.processedDir, filename, reader)
}

func (s *s3Storage) saveObject(ctx context.Context, dir, filename string, reader io.Reader) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("filename", filename).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}

	objectName := path.Join(dir, path.Base(filename))
	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(path.Ext(filename))}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, -1, opts)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to put object to s3")
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}

	url := publicURL(s.publicBaseURL, objectName)
	zlog.Logger.Info().Str("url", url).Msg("object saved to s3")
	return url, nil
}
