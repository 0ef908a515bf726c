package domain

import (
	"context"
	"io"
)

// BlobWriter uploads run artifacts to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
