package prefstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/gridcore/model"
)

// Schema creates the preferences table.
const Schema = `
CREATE TABLE IF NOT EXISTS grid_preferences (
	key        TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// pgConn is the subset of pgxpool.Pool used by PgStore.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgConn = (*pgxpool.Pool)(nil)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	db pgConn
}

// NewPgStore creates a PostgreSQL preference store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{db: pool}
}

// EnsureSchema creates the preferences table if it does not exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create grid_preferences: %w", err)
	}
	return nil
}

// Load reads the record for key.
func (s *PgStore) Load(ctx context.Context, key string) (model.PersistedState, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM grid_preferences WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PersistedState{}, false, nil
	}
	if err != nil {
		return model.PersistedState{}, false, fmt.Errorf("query preferences %q: %w", key, err)
	}

	var st model.PersistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.PersistedState{}, false, fmt.Errorf("unmarshal preferences %q: %w", key, err)
	}
	return st, true, nil
}

// Save upserts the record for key.
func (s *PgStore) Save(ctx context.Context, key string, state model.PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO grid_preferences (key, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences %q: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *PgStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM grid_preferences WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete preferences %q: %w", key, err)
	}
	return nil
}
