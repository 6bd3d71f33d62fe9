package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. Snapshots
// are stored serialized so Load/Save round-trip the same way the durable
// backend does.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]byte
	checkpoints map[string][]Checkpoint

	// FailSaves makes every Save fail, for exercising checkpoint failure
	// paths in tests.
	FailSaves bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string][]byte),
		checkpoints: make(map[string][]Checkpoint),
	}
}

// Load returns the session for key, or ErrNotFound.
func (m *MemoryStore) Load(ctx context.Context, key string) (*Session, error) {
	m.mu.RLock()
	snapshot, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return FromSnapshot(snapshot)
}

// Save replaces the latest snapshot and appends a checkpoint entry.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if m.FailSaves {
		return fmt.Errorf("%w: store unavailable", ErrCheckpointFailed)
	}
	snapshot, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Key] = snapshot
	m.checkpoints[s.Key] = append(m.checkpoints[s.Key], Checkpoint{
		ID:         uuid.NewString(),
		SessionKey: s.Key,
		Step:       s.Steps,
		State:      s.State,
		Snapshot:   snapshot,
		TakenAt:    time.Now().UTC(),
	})
	return nil
}

// Checkpoints returns the checkpoint log for key, oldest first.
func (m *MemoryStore) Checkpoints(ctx context.Context, key string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Checkpoint, len(m.checkpoints[key]))
	copy(out, m.checkpoints[key])
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
