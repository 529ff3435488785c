// Package metadata is a small key/value table in the local state database.
// Values are opaque bytes; callers own their encoding.
package metadata

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns the value stored under key, or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set inserts or overwrites key and stamps its update time.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}
