package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one stored object.
type BlobInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads objects to the tick-batch bucket.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// BlobReader retrieves and enumerates tick-batch objects.
type BlobReader interface {
	// Get returns the object body; the caller must close it. Returns
	// ErrNotFound for missing keys.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BlobDeleter removes objects once their contents are safely ingested.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}
