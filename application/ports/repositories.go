package ports

import (
	"context"
	"time"

	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
)

// EntryRepository defines the interface for diary entry persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
//
// Lookups return a NotFound error (code ENTRY_NOT_FOUND) when nothing
// matches. Every operation is scoped to the owning user.
type EntryRepository interface {
	// FindByDate returns the user's entry for exactly this date
	FindByDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error)

	// FindMostRecentBefore returns the latest entry strictly before date
	FindMostRecentBefore(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error)

	// FindByID returns the entry with this id if the user owns it
	FindByID(ctx context.Context, userID, entryID int64) (*entities.Entry, error)

	// ExistsForDate reports whether the user already has an entry on date
	ExistsForDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (bool, error)

	// InsertIfAbsent checks for an existing entry on the same date and
	// inserts only when there is none. Existing text is never touched.
	// On insert the entry's ID is set and created is true.
	InsertIfAbsent(ctx context.Context, entry *entities.Entry) (created bool, err error)

	// UpdateText replaces the text of an owned entry
	UpdateText(ctx context.Context, userID, entryID int64, text string, updatedAt time.Time) error

	// Delete removes an owned entry together with its analysis record and
	// its statistics row
	Delete(ctx context.Context, userID, entryID int64) error

	// ListDatesInRange returns entry dates in [from, until) ascending
	ListDatesInRange(ctx context.Context, userID int64, from, until valueobjects.DiaryDate) ([]valueobjects.DiaryDate, error)
}

// AnalysisRepository persists derived analysis fields and per-day scores
type AnalysisRepository interface {
	// ReadRecord returns the record attached to the entry, or nil when the
	// entry has never been analyzed
	ReadRecord(ctx context.Context, userID, entryID int64) (*entities.AnalysisRecord, error)

	// UpsertRecord writes the text fields of the record, replacing any
	// previous analysis of the same entry
	UpsertRecord(ctx context.Context, userID int64, record *entities.AnalysisRecord) error

	// UpsertScore stores the score for (user, date), replacing an existing row
	UpsertScore(ctx context.Context, userID int64, date valueobjects.DiaryDate, score valueobjects.Score) error

	// ReadWeekScores returns every score row with a date in [start, end]
	ReadWeekScores(ctx context.Context, userID int64, start, end valueobjects.DiaryDate) ([]entities.DailyScore, error)

	// ClearRecord drops the analysis of an entry so it is analyzed again
	ClearRecord(ctx context.Context, userID, entryID int64) error
}

// SessionRepository stores the provider session handle of each user
type SessionRepository interface {
	// ReadSession returns the stored handle, which is incomplete when none
	// has been created yet. Unknown users yield a NotFound error.
	ReadSession(ctx context.Context, userID int64) (entities.SessionHandle, error)

	// WriteSession stores both ids in a single write, only when the user
	// has no complete handle yet. It returns the handle that is stored
	// afterwards and whether this call wrote it.
	WriteSession(ctx context.Context, userID int64, handle entities.SessionHandle) (stored entities.SessionHandle, written bool, err error)
}

// UserRepository manages accounts as far as the diary core needs them
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	FindByID(ctx context.Context, userID int64) (*entities.User, error)

	// Delete removes the user and everything owned by them in one
	// transaction. It returns the number of entries removed.
	Delete(ctx context.Context, userID int64) (int64, error)
}
