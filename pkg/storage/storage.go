// Package storage provides blob storage for uploaded documents, keyed by an
// opaque object key.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for durable blob operations.
type Storage interface {
	// Put stores the content under key and returns the byte count written.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)

	// Get returns a reader for the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

// Config holds storage configuration.
type Config struct {
	// LocalPath is the base directory for the local backend.
	LocalPath string
}
