package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"diary-backend/domain/config"
	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
)

// Entry is one diary text for a user on one calendar date
type Entry struct {
	ID        int64
	UserID    int64
	Date      valueobjects.DiaryDate
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntry validates the inputs of a diary save
func NewEntry(userID int64, date valueobjects.DiaryDate, text string, rules *config.DomainConfig, now time.Time) (*Entry, error) {
	if userID <= 0 {
		return nil, pkgerrors.NewValidationError("user id must be positive")
	}
	if date.IsZero() {
		return nil, pkgerrors.NewValidationError("date is required").WithCode(pkgerrors.CodeInvalidDate)
	}
	if !rules.AllowFutureDates && date.After(valueobjects.DiaryDateFromTime(now)) {
		return nil, pkgerrors.NewValidationError("date cannot be in the future").WithCode(pkgerrors.CodeInvalidDate)
	}
	if err := ValidateEntryText(text, rules); err != nil {
		return nil, err
	}
	return &Entry{
		UserID:    userID,
		Date:      date,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateEntryText enforces the text rules shared by save and edit
func ValidateEntryText(text string, rules *config.DomainConfig) error {
	if strings.TrimSpace(text) == "" {
		return pkgerrors.NewValidationError("contents cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > rules.MaxEntryLength {
		return pkgerrors.NewValidationError("contents too long").
			WithDetail("max_length", rules.MaxEntryLength).
			WithDetail("length", n)
	}
	return nil
}
