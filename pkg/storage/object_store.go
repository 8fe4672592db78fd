package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/doc-control-api/pkg/config"
)

// Drivers understood by New.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// PresignedURL is a time-limited URL a client uses to move document bytes.
type PresignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStore hands out presigned URLs for document binaries. The API never
// proxies the bytes itself.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedURL, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (*PresignedURL, error)
}

// ObjectKey builds <bizType>/<yyyy>/<mm>/<uuid>.<ext> for a new upload.
func ObjectKey(bizType, fileName string, now time.Time) string {
	bizType = strings.Trim(strings.ToLower(strings.TrimSpace(bizType)), "/")
	if bizType == "" {
		bizType = "document"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	name := uuid.NewString()
	if ext != "" {
		name = fmt.Sprintf("%s.%s", name, ext)
	}
	return path.Join(bizType, now.UTC().Format("2006"), now.UTC().Format("01"), name)
}

// New builds the object store selected by cfg.Driver. fileBaseURL is the public
// prefix of the local file routes and is ignored by the s3 driver.
func New(ctx context.Context, cfg config.StorageConfig, fileBaseURL string) (ObjectStore, *LocalStorage, error) {
	switch cfg.Driver {
	case DriverS3:
		store, err := NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case DriverLocal, "":
		local, err := NewLocalStorage(cfg.LocalDir, fileBaseURL, NewSignedURLSigner(cfg.SignedURLSecret, cfg.UploadTTL))
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
