package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, module, eventType string, payload []byte, metadata map[string]string) error

	// ListByRun retrieves all events of one run in append order.
	ListByRun(ctx context.Context, runID string) ([]Event, error)

	// ListByModule retrieves all events recorded for a module in append order.
	ListByModule(ctx context.Context, module string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent stores a typed event.
func AppendEvent(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.RunID(), e.Module(), e.Type(), e.Payload(), e.Metadata())
}
