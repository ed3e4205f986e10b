package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/Vkt5451/Main-Street-2026-Backend/domain"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/cache"
	"github.com/Vkt5451/Main-Street-2026-Backend/internal/provider"
	r "github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
)

type WebhookService interface {
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

// WebhookServiceImpl folds the provider's at-least-once, possibly
// out-of-order settlement events into the order ledger. Signature failures
// are the only error it returns; everything past verification is absorbed
// and logged, because failing the acknowledgment just makes the provider
// redeliver into the same outcome.
type WebhookServiceImpl struct {
	repo     r.RepoInterface
	provider provider.Client
	seen     cache.EventCache
}

func NewWebhookService(repo r.RepoInterface, client provider.Client, seen cache.EventCache) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		repo:     repo,
		provider: client,
		seen:     seen,
	}
}

func (s *WebhookServiceImpl) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.provider.VerifyEvent(payload, signatureHeader)
	if err != nil {
		return err
	}

	s.reconcile(ctx, event)
	return nil
}

func (s *WebhookServiceImpl) reconcile(ctx context.Context, event *provider.Event) {
	if s.alreadyProcessed(ctx, event.ID) {
		log.Printf("event %v already processed, acknowledging replay", event.ID)
		return
	}

	target, known := settlementOutcome(event.Type)
	if !known {
		// unmodeled provider event types are acknowledged and skipped
		log.Printf("ignoring event %v of unhandled type %v", event.ID, event.Type)
		return
	}

	orderID, err := uuid.Parse(event.OrderID())
	if err != nil {
		log.Printf("event %v carries no usable order id (%q): %v", event.ID, event.OrderID(), err)
		return
	}

	order, applied, err := s.repo.TransitionOrder(ctx, orderID, target, event.Type)
	if errors.Is(err, r.ErrOrderNotFound) {
		// redelivery cannot conjure the order into existence
		log.Printf("event %v references unknown order %v", event.ID, orderID)
		return
	}
	if err != nil {
		// store failure: leave the event unrecorded so the provider's next
		// delivery retries the transition
		log.Printf("failed to apply event %v to order %v: %v", event.ID, orderID, err)
		return
	}

	if applied {
		log.Printf("order %v -> %v (event %v, session %v)", orderID, order.Status, event.ID, event.SessionID)
	}

	s.markProcessed(ctx, event.ID)
}

// alreadyProcessed consults the redis fast path first and falls back to
// the durable gate. A cache error never blocks reconciliation; the
// transition itself is idempotent, so a rare double pass is harmless.
func (s *WebhookServiceImpl) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.seen != nil {
		if seen, err := s.seen.Seen(ctx, eventID); err == nil && seen {
			return true
		}
	}

	processed, err := s.repo.IsEventProcessed(ctx, eventID)
	if err != nil {
		log.Printf("failed to check processed event %v: %v", eventID, err)
		return false
	}
	return processed
}

func (s *WebhookServiceImpl) markProcessed(ctx context.Context, eventID string) {
	if _, err := s.repo.MarkEventProcessed(ctx, eventID); err != nil {
		log.Printf("failed to record processed event %v: %v", eventID, err)
		return
	}
	if s.seen != nil {
		if err := s.seen.MarkSeen(ctx, eventID); err != nil {
			log.Printf("failed to cache processed event %v: %v", eventID, err)
		}
	}
}

// settlementOutcome maps the provider's event vocabulary onto the order
// state machine. Success always maps to PAID, including after a prior
// failure on the same session.
func settlementOutcome(eventType string) (domain.OrderStatus, bool) {
	switch eventType {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded":
		return domain.OrderStatusPaid, true
	case "checkout.session.async_payment_failed",
		"checkout.session.expired":
		return domain.OrderStatusFailed, true
	default:
		return "", false
	}
}
