// Package metadata is a small key/value store over the local "metadata"
// table. The session layer keeps the credential medium and the cached
// identity in it.
package metadata

import (
	"context"
	"time"
)

// Entry is one stored key with its last write time.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

type Repository interface {
	// Get returns (nil, false, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Entries(ctx context.Context) ([]Entry, error)
}
