package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"diary-backend/application/ports"
	"diary-backend/domain/config"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/domain/events"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

// Outcome labels recorded for each analysis request
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeAnalyzed = "analyzed"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// AnalysisOrchestrator decides whether an entry needs analysis, runs the
// provider when it does, persists the output and assembles the week trend.
type AnalysisOrchestrator struct {
	entries    ports.EntryRepository
	analyses   ports.AnalysisRepository
	sessions   *SessionManager
	provider   ports.AnalysisProvider
	aggregator *WeeklyAggregator
	publisher  ports.EventPublisher
	rules      *config.DomainConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalysisOrchestrator creates a new orchestrator
func NewAnalysisOrchestrator(
	entries ports.EntryRepository,
	analyses ports.AnalysisRepository,
	sessions *SessionManager,
	provider ports.AnalysisProvider,
	aggregator *WeeklyAggregator,
	publisher ports.EventPublisher,
	rules *config.DomainConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		entries:    entries,
		analyses:   analyses,
		sessions:   sessions,
		provider:   provider,
		aggregator: aggregator,
		publisher:  publisher,
		rules:      rules,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// GetEmotionAdvice always returns a well-formed result. On failure the
// result is the empty shape and the error is returned alongside it so the
// caller can decide whether to surface it.
func (o *AnalysisOrchestrator) GetEmotionAdvice(ctx context.Context, userID int64, date valueobjects.DiaryDate) (entities.AnalysisResult, error) {
	result, err := o.Analyze(ctx, userID, date)
	if err != nil {
		o.logger.Warn("Emotion advice degraded to empty result",
			zap.Int64("userID", userID),
			zap.String("date", date.String()),
			zap.Bool("retryable", pkgerrors.IsRetryable(err)),
			zap.Error(err),
		)
		return entities.EmptyAnalysisResult(), err
	}
	return result, nil
}

// Analyze is the typed form of GetEmotionAdvice: a missing entry yields the
// empty result with a nil error, every other failure is returned.
func (o *AnalysisOrchestrator) Analyze(ctx context.Context, userID int64, date valueobjects.DiaryDate) (entities.AnalysisResult, error) {
	return o.run(ctx, userID, date, false)
}

// Reanalyze runs the provider even when a complete record exists and
// overwrites it
func (o *AnalysisOrchestrator) Reanalyze(ctx context.Context, userID int64, date valueobjects.DiaryDate) (entities.AnalysisResult, error) {
	return o.run(ctx, userID, date, true)
}

func (o *AnalysisOrchestrator) run(ctx context.Context, userID int64, date valueobjects.DiaryDate, force bool) (entities.AnalysisResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "orchestrator.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("diary.date", date.String()),
		attribute.Bool("analysis.forced", force),
	)

	result, outcome, err := o.analyze(ctx, userID, date, force)
	o.metrics.RecordAnalysis(outcome)
	span.SetAttributes(attribute.String("analysis.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return entities.EmptyAnalysisResult(), err
	}
	return result, nil
}

func (o *AnalysisOrchestrator) analyze(ctx context.Context, userID int64, date valueobjects.DiaryDate, force bool) (entities.AnalysisResult, string, error) {
	entry, err := o.effectiveEntry(ctx, userID, date)
	if err != nil {
		return entities.AnalysisResult{}, OutcomeFailed, err
	}
	if entry == nil {
		return entities.EmptyAnalysisResult(), OutcomeNotFound, nil
	}

	record, err := o.analyses.ReadRecord(ctx, userID, entry.ID)
	if err != nil {
		return entities.AnalysisResult{}, OutcomeFailed, err
	}

	outcome := OutcomeCacheHit
	state := entities.StateOf(entry, record)
	if force || state.NeedsAnalysis() {
		o.logger.Debug("Analyzing entry",
			zap.Int64("userID", userID),
			zap.Int64("entryID", entry.ID),
			zap.String("state", state.String()),
			zap.Bool("forced", force),
		)
		record, err = o.runProvider(ctx, entry, force)
		if err != nil {
			return entities.AnalysisResult{}, OutcomeFailed, err
		}
		outcome = OutcomeAnalyzed
	}

	start, end := entry.Date.WeekRange(o.rules.WeekStart)
	week, err := o.aggregator.WeekVector(ctx, userID, start, end)
	if err != nil {
		return entities.AnalysisResult{}, OutcomeFailed, err
	}

	return entities.NewAnalysisResult(entry, record, week), outcome, nil
}

// effectiveEntry returns the entry for date, else the latest one before
// it, else nil
func (o *AnalysisOrchestrator) effectiveEntry(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	entry, err := o.entries.FindByDate(ctx, userID, date)
	if err == nil {
		return entry, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	entry, err = o.entries.FindMostRecentBefore(ctx, userID, date)
	if err == nil {
		return entry, nil
	}
	if pkgerrors.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func (o *AnalysisOrchestrator) runProvider(ctx context.Context, entry *entities.Entry, force bool) (*entities.AnalysisRecord, error) {
	session, err := o.sessions.EnsureSession(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}

	record, err := o.provider.Analyze(ctx, session, entry.Text)
	if err != nil {
		return nil, err
	}
	record.EntryID = entry.ID
	record.AnalyzedAt = o.now()

	// The provider has already been paid for; keep its output even if the
	// caller went away.
	writeCtx := context.WithoutCancel(ctx)
	if err := o.analyses.UpsertRecord(writeCtx, entry.UserID, record); err != nil {
		return nil, err
	}
	if err := o.analyses.UpsertScore(writeCtx, entry.UserID, entry.Date, record.Score); err != nil {
		return nil, err
	}

	var score *int
	if v, ok := record.Score.Value(); ok {
		score = &v
	}
	event := events.NewAnalysisCompleted(entry.UserID, entry.ID, entry.Date.String(), score, force, o.now())
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Error("Failed to publish domain event",
			zap.String("eventType", events.TypeAnalysisCompleted),
			zap.Error(err),
		)
	}
	return record, nil
}
