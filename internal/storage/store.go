package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/afrojuju1/hyperlocal/internal/platform/objectstore"
)

// Store uploads finished creative images to S3-compatible object storage and
// returns the reference used downstream in variant records and manifests.
type Store struct {
	client *minio.Client
	cfg    objectstore.Config
}

func NewStore(cfg objectstore.Config) (*Store, error) {
	client, err := objectstore.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, cfg: cfg}, nil
}

func NewStoreWithClient(client *minio.Client, cfg objectstore.Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &Store{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store not initialized")
	}
	return objectstore.EnsureBucket(ctx, s.client, s.cfg)
}

// Upload pushes a local image and returns its public URL when a public base
// is configured, else an s3:// reference.
func (s *Store) Upload(ctx context.Context, localPath, key string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("store not initialized")
	}
	opts := minio.PutObjectOptions{ContentType: "image/png"}
	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, localPath, opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.URLFor(key), nil
}

func (s *Store) URLFor(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key)
}
