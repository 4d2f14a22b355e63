package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// entryStore is the in-memory keyed table all other pieces build on. All
// methods are short critical sections; callers never hold its lock across a
// fetch.
type entryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func newEntryStore() *entryStore {
	return &entryStore{entries: make(map[string]*Entry)}
}

func (s *entryStore) Get(compositeKey string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[compositeKey]
}

func (s *entryStore) Put(entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CompositeKey()] = entry
}

func (s *entryStore) Delete(compositeKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[compositeKey]; !ok {
		return false
	}
	delete(s.entries, compositeKey)
	return true
}

func (s *entryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountBySource returns the number of entries in one source's bucket.
func (s *entryStore) CountBySource(source string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.entries {
		if e.Source == source {
			count++
		}
	}
	return count
}

// EvictOldest removes the globally oldest entry by timestamp. O(n), which is
// acceptable at the target scale of hundreds of entries.
func (s *entryStore) EvictOldest() (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldestKey string
	var oldest *Entry
	for key, e := range s.entries {
		if oldest == nil || e.Timestamp.Before(oldest.Timestamp) {
			oldestKey = key
			oldest = e
		}
	}
	if oldest == nil {
		return nil, false
	}
	delete(s.entries, oldestKey)
	return oldest, true
}

// DeleteMatching removes every entry whose composite key contains the given
// literal substring and returns the removed entries.
func (s *entryStore) DeleteMatching(pattern string) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []*Entry
	for key, e := range s.entries {
		if strings.Contains(key, pattern) {
			removed = append(removed, e)
			delete(s.entries, key)
		}
	}
	return removed
}

func (s *entryStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*Entry)
	return n
}

// SourceStats is the per-source slice of the diagnostic breakdown.
type SourceStats struct {
	Entries int `json:"entries"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Stats is a diagnostic snapshot of the entry store.
type Stats struct {
	Valid       int                    `json:"valid"`
	Expired     int                    `json:"expired"`
	BySource    map[string]SourceStats `json:"by_source"`
	ApproxBytes int64                  `json:"approx_bytes"`
}

// Snapshot computes diagnostic statistics at the given instant.
func (s *entryStore) Snapshot(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{BySource: make(map[string]SourceStats)}
	for key, e := range s.entries {
		bucket := stats.BySource[e.Source]
		bucket.Entries++
		if e.IsFresh(now) {
			stats.Valid++
			bucket.Valid++
		} else {
			stats.Expired++
			bucket.Expired++
		}
		stats.BySource[e.Source] = bucket
		stats.ApproxBytes += int64(len(key)) + approxSize(e.Data)
	}
	return stats
}

// approxSize estimates the payload footprint via its JSON encoding.
func approxSize(data any) int64 {
	b, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
