// Package storage uploads user media to an object store and returns the
// public URL the API hands out.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownDriver is returned for an unsupported Config.Driver.
var ErrUnknownDriver = errors.New("storage: unknown driver")

const (
	DriverS3    = "s3"
	DriverMinIO = "minio"
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Remover deletes an uploaded object by key.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Config selects and configures the object store.
type Config struct {
	Driver        string
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// New builds the uploader for cfg.Driver.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverS3:
		return NewS3Storage(ctx, cfg)
	case DriverMinIO:
		return NewMinIOStorage(cfg)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
	}
}

// ObjectKey builds a collision-free key under prefix that keeps the
// extension of the uploaded file name.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+ext)
}

func publicURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
