package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions and their checkpoint log in a local SQLite
// database. It is the default durable backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the session database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  key        TEXT PRIMARY KEY,
  state      TEXT NOT NULL,
  step       INTEGER NOT NULL,
  snapshot   BLOB NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
  id          TEXT PRIMARY KEY,
  session_key TEXT NOT NULL,
  step        INTEGER NOT NULL,
  state       TEXT NOT NULL,
  snapshot    BLOB NOT NULL,
  taken_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_key, step);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create session schema: %w", err)
	}
	return nil
}

// Load returns the session for key, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Session, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE key = ?`, key).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	return FromSnapshot(snapshot)
}

// Save upserts the latest snapshot and appends one checkpoint row, in a
// single transaction so an invocation's effect is never persisted without
// being recorded.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	snapshot, err := sess.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCheckpointFailed, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrCheckpointFailed, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (key, state, step, snapshot, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  state=excluded.state,
  step=excluded.step,
  snapshot=excluded.snapshot,
  updated_at=excluded.updated_at`,
		sess.Key, string(sess.State), sess.Steps, snapshot, now)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrCheckpointFailed, err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkpoints (id, session_key, step, state, snapshot, taken_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sess.Key, sess.Steps, string(sess.State), snapshot, now)
	if err != nil {
		return fmt.Errorf("%w: append checkpoint: %v", ErrCheckpointFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrCheckpointFailed, err)
	}

	s.logger.Debug("session checkpointed",
		zap.String("key", sess.Key),
		zap.Int("step", sess.Steps),
		zap.String("state", string(sess.State)))
	return nil
}

// Checkpoints returns the checkpoint log for key, oldest first.
func (s *SQLiteStore) Checkpoints(ctx context.Context, key string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_key, step, state, snapshot, taken_at
FROM checkpoints WHERE session_key = ? ORDER BY step ASC, taken_at ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for %s: %w", key, err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var state, takenAt string
		if err := rows.Scan(&cp.ID, &cp.SessionKey, &cp.Step, &state, &cp.Snapshot, &takenAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.State = State(state)
		if t, perr := time.Parse(time.RFC3339Nano, takenAt); perr == nil {
			cp.TakenAt = t
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
