package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"diary-backend/domain/config"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/domain/events"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

func TestCreateUser(t *testing.T) {
	store := newMemStore()
	svc := NewAccountService(memUsers{store}, &recordingPublisher{}, zap.NewNop())
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, " mina ", "mina@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "mina", user.Nickname)
	assert.Nil(t, user.Session)

	_, err = svc.CreateUser(ctx, "mina", "other@example.com")
	assert.True(t, pkgerrors.IsConflict(err))

	_, err = svc.CreateUser(ctx, "", "x@example.com")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDeleteUserCascades(t *testing.T) {
	store := newMemStore()
	publisher := &recordingPublisher{}
	accounts := NewAccountService(memUsers{store}, publisher, zap.NewNop())
	diary := NewDiaryService(store, store, publisher, config.DefaultDomainConfig(), observability.NewMetrics("test"), zap.NewNop())
	ctx := context.Background()

	user, err := accounts.CreateUser(ctx, "mina", "mina@example.com")
	require.NoError(t, err)
	store.sessions[user.ID] = entities.SessionHandle{AssistantID: "a", ThreadID: "t"}
	date := valueobjects.MustParseDiaryDate("2024.09.05")
	_, err = store.InsertIfAbsent(ctx, &entities.Entry{UserID: user.ID, Date: date, Text: "x"})
	require.NoError(t, err)

	removed, err := accounts.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = diary.GetEntry(ctx, user.ID, date)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.ReadSession(ctx, user.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, publisher.types(), events.TypeUserDeleted)

	_, err = accounts.DeleteUser(ctx, user.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUserNotFound))
}
