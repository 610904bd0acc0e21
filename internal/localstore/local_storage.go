package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrKeyNotFound = errors.New("key not found")

// RecentOrderKey holds the JSON of the last order placed in a session.
const RecentOrderKey = "recentOrder"

func (s *Store) GetItem(ctx context.Context, sessionID, key string) ([]byte, error) {
	query := `SELECT value FROM local_storage WHERE session_id = $1 AND key = $2`

	var value string
	err := s.db.QueryRowContext(ctx, query, sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query local storage: %w", err)
	}
	return []byte(value), nil
}

func (s *Store) SetItem(ctx context.Context, sessionID, key string, value []byte) error {
	return s.setItem(ctx, s.db, sessionID, key, value)
}

func (s *Store) setItem(ctx context.Context, ex execer, sessionID, key string, value []byte) error {
	query := `INSERT INTO local_storage (session_id, key, value, updated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := ex.ExecContext(ctx, query, sessionID, key, string(value), s.nowMillis()); err != nil {
		return fmt.Errorf("upsert local storage: %w", err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, sessionID, key string) error {
	query := `DELETE FROM local_storage WHERE session_id = $1 AND key = $2`

	if _, err := s.db.ExecContext(ctx, query, sessionID, key); err != nil {
		return fmt.Errorf("delete local storage: %w", err)
	}
	return nil
}

// SessionStorage is the local storage of a single session.
type SessionStorage struct {
	store     *Store
	sessionID string
}

func (s *Store) Session(sessionID string) *SessionStorage {
	return &SessionStorage{store: s, sessionID: sessionID}
}

func (ss *SessionStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	return ss.store.GetItem(ctx, ss.sessionID, key)
}

func (ss *SessionStorage) SetItem(ctx context.Context, key string, value []byte) error {
	return ss.store.SetItem(ctx, ss.sessionID, key, value)
}

func (ss *SessionStorage) RemoveItem(ctx context.Context, key string) error {
	return ss.store.RemoveItem(ctx, ss.sessionID, key)
}
