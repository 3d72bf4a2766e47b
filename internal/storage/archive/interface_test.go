// internal/storage/archive/interface_test.go
package archive

import (
	"testing"

	"github.com/newthinker/sigsim/internal/config"
)

func TestNew_LocalFS(t *testing.T) {
	s, err := New(config.CacheConfig{Type: "localfs", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*LocalFS); !ok {
		t.Errorf("expected *LocalFS, got %T", s)
	}
}

func TestNew_S3(t *testing.T) {
	s, err := New(config.CacheConfig{
		Type: "s3",
		S3:   config.S3Config{Bucket: "market-data", Region: "us-east-1", Prefix: "series/"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s3s, ok := s.(*S3Storage)
	if !ok {
		t.Fatalf("expected *S3Storage, got %T", s)
	}
	if s3s.prefix != "series" {
		t.Errorf("expected trimmed prefix, got %q", s3s.prefix)
	}
}

func TestNew_UnknownType(t *testing.T) {
	if _, err := New(config.CacheConfig{Type: "redis"}); err == nil {
		t.Error("expected error for unknown cache type")
	}
}
