package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"diary-backend/application/ports"
	"diary-backend/domain/config"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/domain/events"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

// Messages reported by SaveEntry
const (
	MessageEntryExists = "entry already exists for this date"
	MessageEntrySaved  = "entry saved successfully"
)

// SaveResult reports the outcome of a save. A duplicate date is not an
// error: Created is false and the stored text is left untouched.
type SaveResult struct {
	Created bool   `json:"created"`
	EntryID int64  `json:"diary_id,omitempty"`
	Message string `json:"message"`
}

// DiaryService provides the entry operations used by the HTTP and CLI
// surfaces. Store failures are returned to the caller.
type DiaryService struct {
	entries   ports.EntryRepository
	analyses  ports.AnalysisRepository
	publisher ports.EventPublisher
	rules     *config.DomainConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewDiaryService creates a new diary service
func NewDiaryService(
	entries ports.EntryRepository,
	analyses ports.AnalysisRepository,
	publisher ports.EventPublisher,
	rules *config.DomainConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DiaryService {
	return &DiaryService{
		entries:   entries,
		analyses:  analyses,
		publisher: publisher,
		rules:     rules,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// SaveEntry stores a new entry unless the user already has one for date
func (s *DiaryService) SaveEntry(ctx context.Context, userID int64, date valueobjects.DiaryDate, text string) (*SaveResult, error) {
	now := s.now()
	entry, err := entities.NewEntry(userID, date, text, s.rules, now)
	if err != nil {
		return nil, err
	}

	created, err := s.entries.InsertIfAbsent(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !created {
		s.metrics.EntriesSaved.WithLabelValues("duplicate").Inc()
		s.logger.Debug("Entry already exists",
			zap.Int64("userID", userID),
			zap.String("date", date.String()),
		)
		return &SaveResult{Created: false, Message: MessageEntryExists}, nil
	}

	s.metrics.EntriesSaved.WithLabelValues("created").Inc()
	s.publish(ctx, events.NewEntrySaved(userID, entry.ID, date.String(), now))
	s.logger.Info("Entry saved",
		zap.Int64("userID", userID),
		zap.Int64("entryID", entry.ID),
		zap.String("date", date.String()),
	)
	return &SaveResult{Created: true, EntryID: entry.ID, Message: MessageEntrySaved}, nil
}

// GetEntry returns the user's entry for exactly this date
func (s *DiaryService) GetEntry(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	return s.entries.FindByDate(ctx, userID, date)
}

// UpdateEntry replaces the text of an owned entry. The analysis is kept
// unless the domain is configured to re-analyze edited entries.
func (s *DiaryService) UpdateEntry(ctx context.Context, userID, entryID int64, text string) error {
	if err := entities.ValidateEntryText(text, s.rules); err != nil {
		return err
	}

	now := s.now()
	if err := s.entries.UpdateText(ctx, userID, entryID, text, now); err != nil {
		return err
	}

	cleared := false
	if s.rules.ReanalyzeOnEdit {
		if err := s.analyses.ClearRecord(ctx, userID, entryID); err != nil {
			return pkgerrors.Wrap(err, "entry updated but analysis was not cleared")
		}
		cleared = true
	}

	s.publish(ctx, events.NewEntryUpdated(userID, entryID, cleared, now))
	return nil
}

// DeleteEntry removes an owned entry with its analysis and score
func (s *DiaryService) DeleteEntry(ctx context.Context, userID, entryID int64) error {
	if err := s.entries.Delete(ctx, userID, entryID); err != nil {
		return err
	}
	s.metrics.EntriesDeleted.Inc()
	s.publish(ctx, events.NewEntryDeleted(userID, entryID, s.now()))
	return nil
}

// GetMonthDates lists the dates in the month that have an entry, ascending
func (s *DiaryService) GetMonthDates(ctx context.Context, userID int64, year int, month time.Month) ([]valueobjects.DiaryDate, error) {
	from, until, err := valueobjects.MonthRange(year, month)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidDate)
	}
	dates, err := s.entries.ListDatesInRange(ctx, userID, from, until)
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []valueobjects.DiaryDate{}
	}
	return dates, nil
}

func (s *DiaryService) publish(ctx context.Context, event events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
