package cache

import (
	"time"
)

// Entry is a single cached lookup result. Entries are immutable: a refresh
// for the same key stores a replacement, never mutates in place.
type Entry struct {
	Key       string        `json:"key"`
	Source    string        `json:"source"`
	Data      any           `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
}

// NewEntry constructs an entry stamped at now.
func NewEntry(key, source string, data any, ttl time.Duration, now time.Time) *Entry {
	return &Entry{
		Key:       key,
		Source:    source,
		Data:      data,
		Timestamp: now,
		TTL:       ttl,
	}
}

// IsFresh reports whether the entry is within its TTL at the given instant.
func (e *Entry) IsFresh(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

// CompositeKey returns the source-namespaced store key.
func (e *Entry) CompositeKey() string {
	return CompositeKey(e.Source, e.Key)
}

// CompositeKey builds the source-namespaced key used by the entry store and
// the persistent backing store.
func CompositeKey(source, key string) string {
	return source + ":" + key
}
