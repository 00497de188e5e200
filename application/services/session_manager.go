package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/events"
	"diary-backend/pkg/observability"
)

const (
	sessionLockLease = 30 * time.Second
	sessionLockWait  = 5 * time.Second
)

// SessionManager lazily creates and remembers the provider session of each
// user. A stored complete handle is always reused without calling out.
type SessionManager struct {
	sessions  ports.SessionRepository
	provider  ports.AnalysisProvider
	locker    ports.SessionLocker
	publisher ports.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionManager creates a session manager. locker may be nil, in which
// case racing first requests can each create a provider session and the
// first one to be stored wins.
func NewSessionManager(
	sessions ports.SessionRepository,
	provider ports.AnalysisProvider,
	locker ports.SessionLocker,
	publisher ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		sessions:  sessions,
		provider:  provider,
		locker:    locker,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureSession returns the user's stored handle, creating it first when
// the user has none. Provider failures are returned unchanged so callers
// see a retryable ProviderUnavailable error.
func (m *SessionManager) EnsureSession(ctx context.Context, userID int64) (entities.SessionHandle, error) {
	handle, err := m.sessions.ReadSession(ctx, userID)
	if err != nil {
		return entities.SessionHandle{}, err
	}
	if handle.IsComplete() {
		return handle, nil
	}

	if m.locker != nil {
		resource := fmt.Sprintf("session_creation_%d", userID)
		lock, err := m.locker.TryAcquireLock(ctx, resource, uuid.NewString(), sessionLockLease, sessionLockWait)
		if err != nil {
			// The guarded write below keeps the stored handle consistent
			// even without the lock.
			m.logger.Warn("Session lock unavailable, creating without it",
				zap.Int64("userID", userID),
				zap.Error(err),
			)
		} else {
			defer func() {
				if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
					m.logger.Error("Failed to release session lock",
						zap.String("resource", resource),
						zap.Error(releaseErr),
					)
				}
			}()

			// Double-check: another instance may have finished while we waited.
			handle, err = m.sessions.ReadSession(ctx, userID)
			if err != nil {
				return entities.SessionHandle{}, err
			}
			if handle.IsComplete() {
				m.logger.Debug("Session created by another request", zap.Int64("userID", userID))
				return handle, nil
			}
		}
	}

	created, err := m.provider.CreateSession(ctx, userID)
	if err != nil {
		return entities.SessionHandle{}, err
	}

	stored, written, err := m.sessions.WriteSession(context.WithoutCancel(ctx), userID, created)
	if err != nil {
		return entities.SessionHandle{}, err
	}
	if !written {
		m.logger.Info("Discarding provider session, another request stored one first",
			zap.Int64("userID", userID),
			zap.String("discardedThreadID", created.ThreadID),
		)
		return stored, nil
	}

	m.metrics.SessionsCreated.Inc()
	m.logger.Info("Provider session created", zap.Int64("userID", userID))
	if err := m.publisher.Publish(ctx, events.NewSessionCreated(userID, m.now())); err != nil {
		m.logger.Error("Failed to publish domain event",
			zap.String("eventType", events.TypeSessionCreated),
			zap.Error(err),
		)
	}
	return stored, nil
}
