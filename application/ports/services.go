package ports

import (
	"context"
	"time"

	"diary-backend/domain/core/entities"
	"diary-backend/domain/events"
)

// AnalysisProvider is the external service producing emotional analysis.
// Failures are reported as retryable ProviderUnavailable errors.
type AnalysisProvider interface {
	// CreateSession returns a new (or the provider's existing) assistant
	// and thread for the user
	CreateSession(ctx context.Context, userID int64) (entities.SessionHandle, error)

	// Analyze runs the entry text through the user's conversation
	Analyze(ctx context.Context, session entities.SessionHandle, text string) (*entities.AnalysisRecord, error)
}

// Lock is a held lease on a named resource
type Lock interface {
	Release(ctx context.Context) error
}

// SessionLocker serializes session creation for a user across instances.
// It is optional; without it concurrent first requests may create an extra
// provider session, but the stored handle stays consistent.
type SessionLocker interface {
	TryAcquireLock(ctx context.Context, resource, owner string, lease, wait time.Duration) (Lock, error)
}

// EventPublisher publishes domain events after state changes are committed
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
