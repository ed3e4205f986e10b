package cache

import "context"

// EventCache is a fast-path in front of the durable processed-events
// table. It only saves round-trips on webhook redelivery storms; the
// durable gate in postgres remains the source of truth, so every method
// here is allowed to fail without affecting correctness.
type EventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}
