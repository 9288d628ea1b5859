// Package store abstracts the artifact store holding position snapshots,
// rollup reports, and reception records. Two backends exist: a local
// directory and an S3-compatible bucket.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for keys with no stored object
var ErrNotFound = errors.New("object not found")

// Object describes one stored artifact
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the artifact store contract. Keys are flat, slash-separated
// strings; List returns objects in ascending key order.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}
