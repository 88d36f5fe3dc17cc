// Package archive stores accepted screenshots in S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// Archiver persists screenshot bytes and returns the object key.
type Archiver interface {
	Put(ctx context.Context, fingerprint string, data []byte, contentType string) (string, error)
}

// Store is a MinIO-backed Archiver.
type Store struct {
	client *minio.Client
	bucket string

	mu           sync.Mutex
	bucketExists bool
}

// New returns nil when archiving is disabled.
func New(cfg config.ArchiveConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(cfg.Endpoint), "http://"), "https://")
	if endpoint == "" {
		return nil, fmt.Errorf("archive: missing endpoint")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("archive: missing bucket")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: init client: %w", err)
	}
	log.Infof("archive: using bucket %s at %s", cfg.Bucket, endpoint)
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// ObjectKey derives the object key for a screenshot.
func ObjectKey(fingerprint, contentType string, now time.Time) string {
	ext := ".bin"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	now = now.UTC()
	return path.Join("screenshots", now.Format("2006"), now.Format("01"), fingerprint+ext)
}

// Put implements Archiver. A nil Store is a no-op.
func (s *Store) Put(ctx context.Context, fingerprint string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", nil
	}
	if errBucket := s.ensureBucket(ctx); errBucket != nil {
		return "", errBucket
	}
	key := ObjectKey(fingerprint, contentType, time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"fingerprint": fingerprint,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketExists {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("archive: check bucket: %w", err)
	}
	if !exists {
		if errMake := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); errMake != nil {
			return fmt.Errorf("archive: create bucket %s: %w", s.bucket, errMake)
		}
		log.Infof("archive: created bucket %s", s.bucket)
	}
	s.bucketExists = true
	return nil
}
