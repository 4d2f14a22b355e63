package weights

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/betomanzoli/pharma-conecta-brasil-sub001/engine/core"
)

// Snapshot is one immutable, versioned scoring configuration.
type Snapshot struct {
	Version   core.ID   `json:"version"`
	Vector    Vector    `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only log of weight vector snapshots with a single
// active pointer. Readers always observe a complete vector: activation swaps
// the whole snapshot, never mutates one in place.
type Store struct {
	active atomic.Pointer[Snapshot]
	mu     sync.RWMutex
	log    []*Snapshot
}

// NewStore creates a store with the default vector committed and active.
func NewStore() *Store {
	s := &Store{}
	s.Commit(DefaultVector())
	return s
}

// Active returns the current scoring configuration.
func (s *Store) Active() Snapshot {
	return *s.active.Load()
}

// Commit appends a new snapshot of the vector and activates it.
func (s *Store) Commit(v Vector) Snapshot {
	snapshot := &Snapshot{
		Version:   core.NewID(),
		Vector:    v.Clone(),
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.log = append(s.log, snapshot)
	s.mu.Unlock()
	s.active.Store(snapshot)
	return *snapshot
}

// History returns every committed snapshot, oldest first.
func (s *Store) History() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.log))
	for _, snapshot := range s.log {
		out = append(out, *snapshot)
	}
	return out
}

// Rollback re-activates a previously committed snapshot.
func (s *Store) Rollback(version core.ID) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snapshot := range s.log {
		if snapshot.Version == version {
			s.active.Store(snapshot)
			return *snapshot, nil
		}
	}
	return Snapshot{}, fmt.Errorf("unknown weight vector version %q", version)
}
