package services

import (
	"context"
	"io"
)

// ObjectStore is the slice of the storage layer the services need. A nil
// ObjectStore means attachments are disabled.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
