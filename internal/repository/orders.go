package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
)

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	query := `INSERT INTO orders (id, customer_email, items, total_cents, currency, status, session_ref, failure_reason, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.CustomerEmail,
		itemsJSON,
		order.TotalCents,
		order.Currency,
		order.Status,
		order.SessionRef,
		order.FailureReason)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, customer_email, items, total_cents, currency, status, session_ref, failure_reason, created_at, updated_at
	          FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AttachSessionRef binds the provider session to the order. The ref is
// write-once: a second attach (a retried provider call racing a slow first
// one) leaves the original binding in place.
func (r *Repository) AttachSessionRef(ctx context.Context, id uuid.UUID, sessionRef string) error {
	query := `UPDATE orders SET session_ref = $2, updated_at = NOW()
	          WHERE id = $1 AND session_ref = ''`

	result, err := r.db.ExecContext(ctx, query, id, sessionRef)
	if err != nil {
		return fmt.Errorf("attach session ref: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach session ref rows: %w", err)
	}
	if rows == 0 {
		// either the order is missing or the ref is already set
		if _, getErr := r.GetOrderByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// TransitionOrder applies one settlement outcome to one order under a row
// lock, so concurrent redeliveries for the same order serialize here. When
// the state machine says the move changes nothing the current row is
// returned with applied=false; that is the normal replay path, not an
// error. A state-changing transition also queues an outbox event in the
// same transaction.
func (r *Repository) TransitionOrder(ctx context.Context, id uuid.UUID, target domain.OrderStatus, reason string) (*domain.Order, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT id, customer_email, items, total_cents, currency, status, session_ref, failure_reason, created_at, updated_at
	          FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, false, err
	}

	if !domain.CanTransitionTo(order.Status, target) {
		return order, false, nil
	}

	if target != domain.OrderStatusFailed {
		reason = ""
	}
	updated := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, failure_reason = $3, updated_at = $4 WHERE id = $1`,
		id, target, reason, updated)
	if err != nil {
		return nil, false, fmt.Errorf("update order status: %w", err)
	}

	order.Status = target
	order.FailureReason = reason
	order.UpdatedAt = updated

	if err := queueOutboxEvent(ctx, tx, order); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transition: %w", err)
	}
	return order, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CustomerEmail,
		&itemsJSON,
		&order.TotalCents,
		&order.Currency,
		&order.Status,
		&order.SessionRef,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}
