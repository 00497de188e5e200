package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/events"
	pkgerrors "diary-backend/pkg/errors"
)

// AccountService covers the account operations the diary core owns:
// creating a user record and the delete cascade.
type AccountService struct {
	users     ports.UserRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewAccountService(users ports.UserRepository, publisher ports.EventPublisher, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:     users,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateUser registers a user without a provider session
func (s *AccountService) CreateUser(ctx context.Context, nickname, email string) (*entities.User, error) {
	nickname = strings.TrimSpace(nickname)
	email = strings.TrimSpace(email)
	if nickname == "" || email == "" {
		return nil, pkgerrors.NewValidationError("nickname and email are required")
	}

	user := &entities.User{Nickname: nickname, Email: email, CreatedAt: s.now()}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.Int64("userID", user.ID))
	return user, nil
}

// GetUser returns the user with its session handle, if any
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	return s.users.FindByID(ctx, userID)
}

// DeleteUser removes the user with every entry, analysis and session
func (s *AccountService) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	removed, err := s.users.Delete(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("User deleted",
		zap.Int64("userID", userID),
		zap.Int64("entriesRemoved", removed),
	)
	if err := s.publisher.Publish(ctx, events.NewUserDeleted(userID, removed, s.now())); err != nil {
		s.logger.Error("Failed to publish domain event",
			zap.String("eventType", events.TypeUserDeleted),
			zap.Error(err),
		)
	}
	return removed, nil
}
