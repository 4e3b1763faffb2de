// Package storage provides byte-level blob storage for screenshots, crops
// and rendered artifacts, addressed by slash-separated keys.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a blob key does not exist
var ErrNotFound = errors.New("blob not found")

// BlobStore reads and writes blobs by key
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Join builds a blob key from path segments
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
