package publisher

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	r "github.com/Vkt5451/Main-Street-2026-Backend/internal/repository"
)

// MessageWriter is the slice of kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller drains the settlement outbox into Kafka. Rows are written
// in the same transaction as the order transition, so downstream
// consumers (receipts, fulfillment) see exactly the transitions the
// ledger committed. Publish-then-mark gives at-least-once delivery;
// consumers dedupe on the order id key.
type OutboxPoller struct {
	tick   time.Duration
	repo   r.RepoInterface
	writer MessageWriter
}

func NewOutboxPoller(repo r.RepoInterface, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{time.Second, repo, w}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnpublishedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			log.Printf("failed to publish outbox event id = %v with error %v", event.ID, errPublish)
			continue
		}

		if errMark := p.repo.MarkEventPublished(ctx, event.ID); errMark != nil {
			log.Printf("failed to mark outbox event as published id = %v with error %v", event.ID, errMark)
			continue
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id, keeps per-order ordering
		Value: event.Payload,             // already JSON from the transition
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
