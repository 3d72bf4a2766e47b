// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/sigsim/internal/config"
)

// ErrNotFound is returned by Read when no data exists at the path
var ErrNotFound = errors.New("archive: object not found")

// Storage defines the interface for the series cache backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// New creates the storage backend selected by cfg
func New(cfg config.CacheConfig) (Storage, error) {
	switch cfg.Type {
	case "localfs", "":
		fs, err := NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "s3":
		s3s, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3s, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
