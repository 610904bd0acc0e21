package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrEventNotFound = errors.New("outbox event not found")

type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func (s *Store) AddEvent(ctx context.Context, event *OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	query := `INSERT INTO checkout_outbox (id, aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		event.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *Store) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM checkout_outbox
	          WHERE processed_at IS NULL
	          ORDER BY created_at, id
	          LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			e         OutboxEvent
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (s *Store) MarkEventAsProcessed(ctx context.Context, id string) error {
	query := `UPDATE checkout_outbox SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`

	res, err := s.db.ExecContext(ctx, query, s.nowMillis(), id)
	if err != nil {
		return fmt.Errorf("mark outbox event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox event: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DeleteProcessedEvents removes events published before the cutoff.
func (s *Store) DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM checkout_outbox WHERE processed_at IS NOT NULL AND processed_at < $1`

	res, err := s.db.ExecContext(ctx, query, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete processed events: %w", err)
	}
	return res.RowsAffected()
}
