package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/Brownie44l1/leaf-api/internal/config"
)

var ErrUnsupportedType = errors.New("file type not allowed")

// AllowedExtensions are the upload types accepted by the predict endpoint.
var AllowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// Storage keeps uploaded leaf images. Save returns the object key that
// Delete and URL accept. size is the byte length of r, or -1 when unknown.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the backend selected by cfg.Type.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocal(cfg.BasePath, cfg.BaseURL)
	case "s3":
		return NewS3(cfg.S3, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// UploadName returns a timestamped, sanitized key for an uploaded file
// along with its content type.
func UploadName(original string, now time.Time) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(original))
	contentType, ok := AllowedExtensions[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	base := slug.Make(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	if base == "" {
		base = "upload"
	}
	return now.Format("20060102150405") + "_" + base + ext, contentType, nil
}

func normalize(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	return strings.TrimPrefix(key, "/")
}

func joinURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
