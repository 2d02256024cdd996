package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient stores uploaded chat media in one bucket.
type MinIOClient struct {
	client *minio.Client
	bucket string
	scheme string
}

func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	slog.Info("MinIO connection established", "endpoint", endpoint, "bucket", bucket)
	return &MinIOClient{client: client, bucket: bucket, scheme: scheme}, nil
}

// Upload stores the object under a unique name and returns its URL.
func (m *MinIOClient) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := ObjectName(filename, time.Now())
	_, err := m.client.PutObject(ctx, m.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return fmt.Sprintf("%s://%s/%s/%s", m.scheme, m.client.EndpointURL().Host, m.bucket, objectName), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips directories and anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// ObjectName builds uploads/<unix>_<uuid>_<sanitized name>.
func ObjectName(filename string, now time.Time) string {
	return fmt.Sprintf("uploads/%d_%s_%s", now.Unix(), uuid.NewString(), SanitizeFilename(filename))
}
