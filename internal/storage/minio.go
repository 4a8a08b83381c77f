package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"aura/internal/domain"
	"aura/internal/infra"
)

// MinIOStore persists artifacts in an S3-compatible bucket. Objects only
// become visible once a put completes, so Publish is a single upload of the
// finished staging file.
type MinIOStore struct {
	client  *minio.Client
	bucket  string
	staging string
}

// NewMinIOStore connects to the endpoint and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, cfg *infra.Config) (*MinIOStore, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect s3: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	staging := filepath.Join(os.TempDir(), "aura-staging")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure staging dir: %w", err)
	}

	return &MinIOStore{client: client, bucket: cfg.S3Bucket, staging: staging}, nil
}

// StagingDir returns the local scratch directory for in-flight files.
func (s *MinIOStore) StagingDir() string {
	return s.staging
}

// Save streams r into the bucket under key, enforcing limit when positive.
func (s *MinIOStore) Save(ctx context.Context, key string, r io.Reader, limit int64) (string, int64, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", 0, err
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	info, err := s.client.PutObject(ctx, s.bucket, cleanKey, src, -1, minio.PutObjectOptions{
		ContentType: contentTypeFor(cleanKey),
	})
	if err != nil {
		return "", 0, fmt.Errorf("storage: put object: %w", err)
	}
	if limit > 0 && info.Size > limit {
		_ = s.client.RemoveObject(ctx, s.bucket, cleanKey, minio.RemoveObjectOptions{})
		return "", 0, ErrTooLarge
	}
	return cleanKey, info.Size, nil
}

// Open returns a reader over the object along with its size.
func (s *MinIOStore) Open(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	cleanKey, err := sanitizeKey(ref)
	if err != nil {
		return nil, 0, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, cleanKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, mapMinIOErr(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, mapMinIOErr(err)
	}
	return obj, stat.Size, nil
}

// Publish uploads the finished staging file under its final key.
func (s *MinIOStore) Publish(ctx context.Context, key, srcPath string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, cleanKey, srcPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(cleanKey),
	}); err != nil {
		return "", fmt.Errorf("storage: publish object: %w", err)
	}
	os.Remove(srcPath)
	return cleanKey, nil
}

// Remove deletes the object. Missing refs are not an error.
func (s *MinIOStore) Remove(ctx context.Context, ref string) error {
	cleanKey, err := sanitizeKey(ref)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, cleanKey, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(mapMinIOErr(err), domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("storage: remove object: %w", err)
	}
	return nil
}

// Stat returns the object size.
func (s *MinIOStore) Stat(ctx context.Context, ref string) (int64, error) {
	cleanKey, err := sanitizeKey(ref)
	if err != nil {
		return 0, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, cleanKey, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapMinIOErr(err)
	}
	return info.Size, nil
}

func mapMinIOErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return domain.ErrNotFound
	}
	return err
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var _ Store = (*MinIOStore)(nil)
