package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
)

type fixture struct {
	db       *DB
	entries  *EntryRepository
	analyses *AnalysisRepository
	users    *UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := Open(context.Background(), MemoryPath, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:       db,
		entries:  NewEntryRepository(db),
		analyses: NewAnalysisRepository(db),
		users:    NewUserRepository(db),
	}
}

func (f *fixture) createUser(t *testing.T, nickname string) int64 {
	t.Helper()
	u := &entities.User{Nickname: nickname, Email: nickname + "@example.com", CreatedAt: time.Now()}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u.ID
}

func (f *fixture) saveEntry(t *testing.T, userID int64, date, text string) *entities.Entry {
	t.Helper()
	now := time.Now()
	e := &entities.Entry{UserID: userID, Date: valueobjects.MustParseDiaryDate(date), Text: text, CreatedAt: now, UpdatedAt: now}
	created, err := f.entries.InsertIfAbsent(context.Background(), e)
	require.NoError(t, err)
	require.True(t, created)
	return e
}

func TestMigrationsApplied(t *testing.T) {
	f := newFixture(t)

	version, err := f.db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestInsertIfAbsentKeepsExistingText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	first := f.saveEntry(t, userID, "2024.09.05", "original text")

	dup := &entities.Entry{UserID: userID, Date: first.Date, Text: "replacement", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	created, err := f.entries.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, dup.ID)

	stored, err := f.entries.FindByDate(ctx, userID, first.Date)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "original text", stored.Text)

	dates, err := f.entries.ListDatesInRange(ctx, userID,
		valueobjects.MustParseDiaryDate("2024.09.01"), valueobjects.MustParseDiaryDate("2024.10.01"))
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}

func TestFindMostRecentBefore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	f.saveEntry(t, userID, "2024.08.30", "older")
	f.saveEntry(t, userID, "2024.09.02", "newer")
	f.saveEntry(t, userID, "2024.09.05", "same day")

	e, err := f.entries.FindMostRecentBefore(ctx, userID, valueobjects.MustParseDiaryDate("2024.09.05"))
	require.NoError(t, err)
	assert.Equal(t, "2024.09.02", e.Date.String())

	_, err = f.entries.FindMostRecentBefore(ctx, userID, valueobjects.MustParseDiaryDate("2024.08.30"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEntriesAreScopedToUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.createUser(t, "owner")
	other := f.createUser(t, "other")
	e := f.saveEntry(t, owner, "2024.09.05", "mine")

	err := f.entries.UpdateText(ctx, other, e.ID, "hijack", time.Now())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEntryNotFound))

	err = f.entries.Delete(ctx, other, e.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, f.entries.UpdateText(ctx, owner, e.ID, "edited", time.Now()))
	stored, err := f.entries.FindByID(ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Text)
}

func TestListDatesInRangeOrdersAscending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	for _, d := range []string{"2024.09.30", "2024.09.01", "2024.10.01", "2024.08.31", "2024.09.15"} {
		f.saveEntry(t, userID, d, "text "+d)
	}

	from, until, err := valueobjects.MonthRange(2024, time.September)
	require.NoError(t, err)
	dates, err := f.entries.ListDatesInRange(ctx, userID, from, until)
	require.NoError(t, err)

	var got []string
	for _, d := range dates {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2024.09.01", "2024.09.15", "2024.09.30"}, got)
}

func TestAnalysisRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	e := f.saveEntry(t, userID, "2024.09.05", "text")

	record, err := f.analyses.ReadRecord(ctx, userID, e.ID)
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, f.analyses.UpsertRecord(ctx, userID, &entities.AnalysisRecord{
		EntryID: e.ID, Summary: "s1", Sentiment: "calm", Advice: "a1", AnalyzedAt: time.Now(),
	}))
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, e.Date, valueobjects.NewScore(60)))

	require.NoError(t, f.analyses.UpsertRecord(ctx, userID, &entities.AnalysisRecord{
		EntryID: e.ID, Summary: "s2", Sentiment: "joy", Advice: "a2", AnalyzedAt: time.Now(),
	}))
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, e.Date, valueobjects.NewScore(72)))

	record, err = f.analyses.ReadRecord(ctx, userID, e.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "s2", record.Summary)
	assert.Equal(t, "joy", record.Sentiment)
	score, ok := record.Score.Value()
	assert.True(t, ok)
	assert.Equal(t, 72, score)

	scores, err := f.analyses.ReadWeekScores(ctx, userID, e.Date, e.Date)
	require.NoError(t, err)
	assert.Len(t, scores, 1)
}

func TestUpsertRecordRequiresEntry(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, "mina")

	err := f.analyses.UpsertRecord(context.Background(), userID, &entities.AnalysisRecord{
		EntryID: 999, Summary: "s", Sentiment: "x", Advice: "a", AnalyzedAt: time.Now(),
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReadWeekScoresInclusiveRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")

	for _, d := range []string{"2024.08.31", "2024.09.01", "2024.09.04", "2024.09.07", "2024.09.08"} {
		require.NoError(t, f.analyses.UpsertScore(ctx, userID, valueobjects.MustParseDiaryDate(d), valueobjects.NewScore(50)))
	}
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, valueobjects.MustParseDiaryDate("2024.09.05"), valueobjects.NoScore()))

	scores, err := f.analyses.ReadWeekScores(ctx, userID,
		valueobjects.MustParseDiaryDate("2024.09.01"), valueobjects.MustParseDiaryDate("2024.09.07"))
	require.NoError(t, err)

	var got []string
	for _, s := range scores {
		got = append(got, fmt.Sprintf("%s=%s", s.Date, s.Score))
	}
	assert.Equal(t, []string{"2024.09.01=50", "2024.09.04=50", "2024.09.05=-", "2024.09.07=50"}, got)
}

func TestDeleteEntryRemovesAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	e := f.saveEntry(t, userID, "2024.09.05", "text")
	require.NoError(t, f.analyses.UpsertRecord(ctx, userID, &entities.AnalysisRecord{
		EntryID: e.ID, Summary: "s", Sentiment: "x", Advice: "a", AnalyzedAt: time.Now(),
	}))
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, e.Date, valueobjects.NewScore(40)))

	require.NoError(t, f.entries.Delete(ctx, userID, e.ID))

	_, err := f.entries.FindByDate(ctx, userID, e.Date)
	assert.True(t, pkgerrors.IsNotFound(err))
	record, err := f.analyses.ReadRecord(ctx, userID, e.ID)
	require.NoError(t, err)
	assert.Nil(t, record)
	scores, err := f.analyses.ReadWeekScores(ctx, userID, e.Date, e.Date)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestClearRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	e := f.saveEntry(t, userID, "2024.09.05", "text")
	require.NoError(t, f.analyses.UpsertRecord(ctx, userID, &entities.AnalysisRecord{
		EntryID: e.ID, Summary: "s", Sentiment: "x", Advice: "a", AnalyzedAt: time.Now(),
	}))
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, e.Date, valueobjects.NewScore(40)))

	require.NoError(t, f.analyses.ClearRecord(ctx, userID, e.ID))

	record, err := f.analyses.ReadRecord(ctx, userID, e.ID)
	require.NoError(t, err)
	assert.Nil(t, record)
	scores, err := f.analyses.ReadWeekScores(ctx, userID, e.Date, e.Date)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestWriteSessionFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")

	handle, err := f.users.ReadSession(ctx, userID)
	require.NoError(t, err)
	assert.False(t, handle.IsComplete())

	first := entities.SessionHandle{AssistantID: "asst_1", ThreadID: "thread_1"}
	stored, written, err := f.users.WriteSession(ctx, userID, first)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, first, stored)

	stored, written, err = f.users.WriteSession(ctx, userID, entities.SessionHandle{AssistantID: "asst_2", ThreadID: "thread_2"})
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, first, stored)

	_, _, err = f.users.WriteSession(ctx, userID, entities.SessionHandle{AssistantID: "asst_3"})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.users.ReadSession(ctx, 12345)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.createUser(t, "mina")
	keep := f.createUser(t, "other")
	e := f.saveEntry(t, userID, "2024.09.05", "text")
	f.saveEntry(t, userID, "2024.09.06", "more")
	kept := f.saveEntry(t, keep, "2024.09.05", "stays")
	require.NoError(t, f.analyses.UpsertRecord(ctx, userID, &entities.AnalysisRecord{
		EntryID: e.ID, Summary: "s", Sentiment: "x", Advice: "a", AnalyzedAt: time.Now(),
	}))
	require.NoError(t, f.analyses.UpsertScore(ctx, userID, e.Date, valueobjects.NewScore(40)))
	_, _, err := f.users.WriteSession(ctx, userID, entities.SessionHandle{AssistantID: "a", ThreadID: "t"})
	require.NoError(t, err)

	removed, err := f.users.Delete(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = f.entries.FindByDate(ctx, userID, e.Date)
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = f.users.ReadSession(ctx, userID)
	assert.True(t, pkgerrors.IsNotFound(err))

	var orphans int
	require.NoError(t, f.db.db.QueryRow(`SELECT COUNT(*) FROM analysis_records WHERE user_id = ?`, userID).Scan(&orphans))
	assert.Zero(t, orphans)
	require.NoError(t, f.db.db.QueryRow(`SELECT COUNT(*) FROM emotion_stats WHERE user_id = ?`, userID).Scan(&orphans))
	assert.Zero(t, orphans)

	stillThere, err := f.entries.FindByID(ctx, keep, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "stays", stillThere.Text)

	_, err = f.users.Delete(ctx, userID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "mina")

	err := f.users.Create(context.Background(), &entities.User{Nickname: "mina", Email: "mina@example.com"})
	assert.True(t, pkgerrors.IsConflict(err))
}
