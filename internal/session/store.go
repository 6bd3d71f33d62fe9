package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for a key.
	ErrNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a step is already in flight for a
	// key. Callers should retry later; the engine never queues.
	ErrSessionBusy = errors.New("session busy")

	// ErrCheckpointFailed wraps a checkpoint write failure. It is fatal
	// for the turn; the session remains at its last durable snapshot.
	ErrCheckpointFailed = errors.New("checkpoint write failed")
)

// Checkpoint is one entry in a session's append-only checkpoint log.
type Checkpoint struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Step       int       `json:"step"`
	State      State     `json:"state"`
	Snapshot   []byte    `json:"snapshot"`
	TakenAt    time.Time `json:"taken_at"`
}

// Store is durable keyed storage for session state. Save both upserts the
// latest snapshot and appends to the checkpoint log, as one unit of
// durability.
type Store interface {
	// Load returns the session for key, or ErrNotFound.
	Load(ctx context.Context, key string) (*Session, error)

	// Save checkpoints the session: the latest snapshot is replaced and
	// one entry is appended to the checkpoint log.
	Save(ctx context.Context, s *Session) error

	// Checkpoints returns the append-only checkpoint log for key, oldest
	// first.
	Checkpoints(ctx context.Context, key string) ([]Checkpoint, error)

	// Close releases store resources.
	Close() error
}
