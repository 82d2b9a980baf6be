package filestorage

import (
	"context"
	"io"
)

// PutOptions describes the object being stored.
type PutOptions struct {
	ContentType string
	// Size is the content length, or -1 when unknown.
	Size     int64
	Metadata map[string]string
}

// Storage keeps submitted files outside the process.
type Storage interface {
	// Put stores the content from the reader and returns a URL identifying the stored file.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (string, error)
	// URL returns the URL Put would have returned for key.
	URL(key string) string
	Delete(ctx context.Context, key string) error
	// Type returns the storage type (local, s3).
	Type() string
}
