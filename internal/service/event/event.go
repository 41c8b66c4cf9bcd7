package event

import "context"

// Emitter records a domain event. Called with a transaction-carrying ctx,
// the event commits or rolls back together with the surrounding writes.
type Emitter interface {
	Emit(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}
