package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) AppendOrder(ctx context.Context, ownerKey string, order domain.PlacedOrder) error {
	return s.appendOrder(ctx, s.db, ownerKey, order)
}

// RecordPlacedOrder appends the order to the owner's log and stores it as the
// session's recentOrder. Either both writes land or neither does.
func (s *Store) RecordPlacedOrder(ctx context.Context, sessionID, ownerKey string, order domain.PlacedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := s.appendOrder(ctx, tx, ownerKey, order); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := s.setItem(ctx, tx, sessionID, RecentOrderKey, payload); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit placed order: %w", err)
	}
	return nil
}

func (s *Store) appendOrder(ctx context.Context, ex execer, ownerKey string, order domain.PlacedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	query := `INSERT INTO placed_orders (owner_key, order_id, payload, created_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (owner_key, order_id) DO UPDATE SET payload = excluded.payload`

	if _, err := ex.ExecContext(ctx, query, ownerKey, string(order.ID), string(payload), s.nowMillis()); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, ownerKey string) ([]domain.PlacedOrder, error) {
	query := `SELECT payload FROM placed_orders WHERE owner_key = $1 ORDER BY created_at, order_id`

	rows, err := s.db.QueryContext(ctx, query, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.PlacedOrder, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		var order domain.PlacedOrder
		if err := json.Unmarshal([]byte(payload), &order); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (s *Store) FindOrder(ctx context.Context, ownerKey string, id domain.OrderID) (*domain.PlacedOrder, error) {
	query := `SELECT payload FROM placed_orders WHERE owner_key = $1 AND order_id = $2`

	var payload string
	err := s.db.QueryRowContext(ctx, query, ownerKey, string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	var order domain.PlacedOrder
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &order, nil
}
