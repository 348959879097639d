// Package storage provides the object stores used to stage warehouse records.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectPage is one page of a listing
type ObjectPage struct {
	Objects []ObjectInfo
	// NextToken continues the listing; empty on the last page
	NextToken string
}

// ObjectStore is a flat key/value blob store
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns keys under prefix in lexical order
	List(ctx context.Context, prefix, token string, limit int) (*ObjectPage, error)
	// Ping verifies that the store is reachable and the bucket exists
	Ping(ctx context.Context) error
}
