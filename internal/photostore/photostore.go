package photostore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBucketNotFound means the configured bucket or base directory does
	// not exist; this is a deployment problem, not a transient failure.
	ErrBucketNotFound = errors.New("storage bucket not found")
	ErrNotFound       = errors.New("photo not found")
	ErrExists         = errors.New("photo already exists")
)

// PhotoStore persists uploaded photos under caller-chosen keys.
type PhotoStore interface {
	// Put writes r under key and returns the stored path. Existing objects are
	// never overwritten.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (path string, err error)
	// PublicURL returns the URL clients use to fetch a stored path.
	PublicURL(path string) string
	Get(ctx context.Context, path string) (io.ReadCloser, string, error)
}
