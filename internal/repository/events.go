package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
)

// Processed-events table: one row per provider event id that has been
// fully applied. The ON CONFLICT insert is the durable idempotency gate;
// it stays correct across instances and restarts, unlike anything held in
// process memory.

func (r *Repository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`,
		eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return exists, nil
}

// MarkEventProcessed records the event id and reports whether this call
// was the first to do so.
func (r *Repository) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, processed_at) VALUES ($1, NOW())
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark event processed rows: %w", err)
	}
	return rows > 0, nil
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// queueOutboxEvent runs inside the transition transaction so the state
// change and its outbound notification commit or roll back together.
func queueOutboxEvent(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	eventType := "order.failed"
	if order.Status == domain.OrderStatusPaid {
		eventType = "order.paid"
	}

	payload := map[string]any{
		"order_id":       order.ID,
		"customer_email": order.CustomerEmail,
		"items":          order.Items,
		"total_cents":    order.TotalCents,
		"currency":       order.Currency,
		"status":         order.Status,
		"failure_reason": order.FailureReason,
		"occurred_at":    order.UpdatedAt,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		order.ID.String(), eventType, payloadJSON)
	if err != nil {
		return fmt.Errorf("queue outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox_events WHERE published_at IS NULL
		 ORDER BY id LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}
