package events

import "time"

const (
	TypeEntrySaved        = "diary.entry.saved"
	TypeEntryUpdated      = "diary.entry.updated"
	TypeEntryDeleted      = "diary.entry.deleted"
	TypeAnalysisCompleted = "diary.analysis.completed"
	TypeSessionCreated    = "diary.session.created"
	TypeUserDeleted       = "diary.user.deleted"
)

// EntrySaved is raised when a new entry is stored for a date
type EntrySaved struct {
	BaseEvent
	EntryID int64  `json:"entry_id"`
	Date    string `json:"date"`
}

func NewEntrySaved(userID, entryID int64, date string, timestamp time.Time) EntrySaved {
	return EntrySaved{
		BaseEvent: newBase(TypeEntrySaved, entryAggregate(entryID), userID, timestamp),
		EntryID:   entryID,
		Date:      date,
	}
}

// EntryUpdated is raised when the text of an entry is edited
type EntryUpdated struct {
	BaseEvent
	EntryID         int64 `json:"entry_id"`
	AnalysisCleared bool  `json:"analysis_cleared"`
}

func NewEntryUpdated(userID, entryID int64, analysisCleared bool, timestamp time.Time) EntryUpdated {
	return EntryUpdated{
		BaseEvent:       newBase(TypeEntryUpdated, entryAggregate(entryID), userID, timestamp),
		EntryID:         entryID,
		AnalysisCleared: analysisCleared,
	}
}

// EntryDeleted is raised when an entry and its analysis are removed
type EntryDeleted struct {
	BaseEvent
	EntryID int64 `json:"entry_id"`
}

func NewEntryDeleted(userID, entryID int64, timestamp time.Time) EntryDeleted {
	return EntryDeleted{
		BaseEvent: newBase(TypeEntryDeleted, entryAggregate(entryID), userID, timestamp),
		EntryID:   entryID,
	}
}

// AnalysisCompleted is raised after provider output has been persisted
type AnalysisCompleted struct {
	BaseEvent
	EntryID int64  `json:"entry_id"`
	Date    string `json:"date"`
	Score   *int   `json:"score"`
	Forced  bool   `json:"forced"`
}

func NewAnalysisCompleted(userID, entryID int64, date string, score *int, forced bool, timestamp time.Time) AnalysisCompleted {
	return AnalysisCompleted{
		BaseEvent: newBase(TypeAnalysisCompleted, entryAggregate(entryID), userID, timestamp),
		EntryID:   entryID,
		Date:      date,
		Score:     score,
		Forced:    forced,
	}
}

// SessionCreated is raised when a provider session is stored for a user
type SessionCreated struct {
	BaseEvent
}

func NewSessionCreated(userID int64, timestamp time.Time) SessionCreated {
	return SessionCreated{BaseEvent: newBase(TypeSessionCreated, userAggregate(userID), userID, timestamp)}
}

// UserDeleted is raised after the account cascade has removed all user data
type UserDeleted struct {
	BaseEvent
	EntriesRemoved int64 `json:"entries_removed"`
}

func NewUserDeleted(userID, entriesRemoved int64, timestamp time.Time) UserDeleted {
	return UserDeleted{
		BaseEvent:      newBase(TypeUserDeleted, userAggregate(userID), userID, timestamp),
		EntriesRemoved: entriesRemoved,
	}
}
