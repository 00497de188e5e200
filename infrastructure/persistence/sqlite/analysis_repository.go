package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
)

// AnalysisRepository stores analysis records and the emotion_stats scores
type AnalysisRepository struct {
	db *DB
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// ReadRecord returns the record attached to the entry, or nil when the
// entry has never been analyzed. The score comes from emotion_stats.
func (r *AnalysisRepository) ReadRecord(ctx context.Context, userID, entryID int64) (*entities.AnalysisRecord, error) {
	var (
		summary, sentiment, advice sql.NullString
		analyzedAt                 string
		score                      sql.NullInt64
	)
	err := r.db.db.QueryRowContext(ctx,
		`SELECT a.summary, a.emotion_analysis, a.advice, a.analyzed_at, s.total_score
		FROM analysis_records a
		JOIN entries e ON e.entry_id = a.entry_id
		LEFT JOIN emotion_stats s ON s.user_id = e.user_id AND s.entry_date = e.entry_date
		WHERE a.entry_id = ? AND e.user_id = ?`,
		entryID, userID).Scan(&summary, &sentiment, &advice, &analyzedAt, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStoreError("read analysis record", err)
	}

	record := &entities.AnalysisRecord{
		EntryID:    entryID,
		Summary:    summary.String,
		Sentiment:  sentiment.String,
		Advice:     advice.String,
		AnalyzedAt: parseTime(analyzedAt),
	}
	if score.Valid {
		record.Score = valueobjects.NewScore(int(score.Int64))
	}
	return record, nil
}

// UpsertRecord writes the text fields of the record. The insert only
// happens while the owning entry exists, so a record is never orphaned.
func (r *AnalysisRepository) UpsertRecord(ctx context.Context, userID int64, record *entities.AnalysisRecord) error {
	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO analysis_records (entry_id, user_id, summary, emotion_analysis, advice, analyzed_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM entries WHERE entry_id = ? AND user_id = ?)
		ON CONFLICT (entry_id) DO UPDATE SET
			summary = excluded.summary,
			emotion_analysis = excluded.emotion_analysis,
			advice = excluded.advice,
			analyzed_at = excluded.analyzed_at`,
		record.EntryID, userID, record.Summary, record.Sentiment, record.Advice, formatTime(record.AnalyzedAt),
		record.EntryID, userID)
	if err != nil {
		return pkgerrors.NewStoreError("upsert analysis record", err)
	}
	return requireAffected(res, "upsert analysis record")
}

// UpsertScore stores the score for (user, date), replacing an existing row.
// An absent score is kept as NULL.
func (r *AnalysisRepository) UpsertScore(ctx context.Context, userID int64, date valueobjects.DiaryDate, score valueobjects.Score) error {
	var value interface{}
	if v, ok := score.Value(); ok {
		value = v
	}
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO emotion_stats (user_id, entry_date, total_score)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, entry_date) DO UPDATE SET total_score = excluded.total_score`,
		userID, date.String(), value)
	if err != nil {
		return pkgerrors.NewStoreError("upsert score", err)
	}
	return nil
}

// ReadWeekScores returns every score row with a date in [start, end]
func (r *AnalysisRepository) ReadWeekScores(ctx context.Context, userID int64, start, end valueobjects.DiaryDate) ([]entities.DailyScore, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT entry_date, total_score FROM emotion_stats
		WHERE user_id = ? AND entry_date BETWEEN ? AND ?
		ORDER BY entry_date ASC`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, pkgerrors.NewStoreError("read week scores", err)
	}
	defer rows.Close()

	var scores []entities.DailyScore
	for rows.Next() {
		var (
			date  string
			score sql.NullInt64
		)
		if err := rows.Scan(&date, &score); err != nil {
			return nil, pkgerrors.NewStoreError("scan week score", err)
		}
		d, err := valueobjects.ParseDiaryDate(date)
		if err != nil {
			return nil, pkgerrors.NewStoreError("parse score date", err)
		}
		row := entities.DailyScore{Date: d}
		if score.Valid {
			row.Score = valueobjects.NewScore(int(score.Int64))
		}
		scores = append(scores, row)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStoreError("read week scores", err)
	}
	return scores, nil
}

// ClearRecord drops the analysis and score of an entry
func (r *AnalysisRepository) ClearRecord(ctx context.Context, userID, entryID int64) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM emotion_stats
			WHERE user_id = ? AND entry_date = (SELECT entry_date FROM entries WHERE entry_id = ? AND user_id = ?)`,
			userID, entryID, userID); err != nil {
			return pkgerrors.NewStoreError("clear score", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analysis_records WHERE entry_id = ? AND user_id = ?`, entryID, userID); err != nil {
			return pkgerrors.NewStoreError("clear analysis record", err)
		}
		return nil
	})
}
