// Package objectstore wraps the Tencent COS client used to offload
// attachment binaries. The object key for an attachment is its
// storage-safe name, decoupled from the original filename.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/tencentyun/cos-go-sdk-v5"

	"report-mail-ingest/internal/textutil"
)

// Multipart upload tuning carried over from the previous deployment:
// 3 MB parts, five concurrent part uploads.
const (
	uploadPartSizeMB = 3
	uploadThreads    = 5
)

// Config identifies the bucket and credentials.
type Config struct {
	SecretID     string
	SecretKey    string
	SessionToken string
	Region       string
	Bucket       string
}

// Store uploads, deletes and downloads attachment objects.
type Store struct {
	client *cos.Client
}

// NewStore creates a COS-backed store for the configured bucket.
func NewStore(cfg Config) (*Store, error) {
	raw := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url %q: %w", raw, err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:     cfg.SecretID,
			SecretKey:    cfg.SecretKey,
			SessionToken: cfg.SessionToken,
		},
	})
	return &Store{client: client}, nil
}

// Upload multipart-uploads the local file under key and returns the
// unquoted ETag.
func (s *Store) Upload(ctx context.Context, key, localPath string) (string, error) {
	result, _, err := s.client.Object.Upload(ctx, key, localPath, &cos.MultiUploadOptions{
		PartSize:       uploadPartSizeMB,
		ThreadPoolSize: uploadThreads,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	etag := textutil.UnquoteETag(result.ETag)
	logrus.Infof("uploaded attachment %s, etag %s", key, etag)
	return etag, nil
}

// Delete removes the object under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Download fetches the object under key into dir and returns the local
// path.
func (s *Store) Download(ctx context.Context, key, dir string) (string, error) {
	localPath := filepath.Join(dir, key)
	if _, err := s.client.Object.GetToFile(ctx, key, localPath, nil); err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	return localPath, nil
}
