package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// Backend identifies an object storage implementation.
type Backend string

const (
	BackendS3    Backend = "s3"
	BackendMinio Backend = "minio"
)

// Storage holds raw source material (uploaded audio and documents).
// Keys are object names within the configured bucket.
type Storage interface {
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Config is the connection configuration shared by both backends.
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New creates a storage instance for the given backend.
func New(backend Backend, cfg Config, log logger.Logger) (Storage, error) {
	switch backend {
	case BackendS3:
		return NewS3Storage(cfg, log)
	case BackendMinio:
		return NewMinioStorage(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

// KeyFromURI extracts the object key from a source URI like
// "s3://bucket/path/to/file" or "minio://bucket/path/to/file".
func KeyFromURI(sourceURI string) (string, error) {
	u, err := url.Parse(sourceURI)
	if err != nil {
		return "", fmt.Errorf("invalid source URI %q: %w", sourceURI, err)
	}
	if u.Scheme == "" || u.Host == "" || len(u.Path) <= 1 {
		return "", fmt.Errorf("invalid source URI %q: expected scheme://bucket/key", sourceURI)
	}
	return u.Path[1:], nil
}

// FetchURI reads the full object referenced by a source URI.
func FetchURI(ctx context.Context, s Storage, sourceURI string) ([]byte, error) {
	key, err := KeyFromURI(sourceURI)
	if err != nil {
		return nil, err
	}
	obj, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
