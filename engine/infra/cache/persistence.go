package cache

import (
	"context"
)

// PersistentStore is the durable key/value table used for entries whose
// source is configured with Persist. Implementations must return ErrNotFound
// for absent keys.
type PersistentStore interface {
	Read(ctx context.Context, compositeKey string) (*Entry, error)
	Write(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, compositeKey string) error
	Close() error
}
