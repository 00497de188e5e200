package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
)

// EntryRepository stores diary entries in the entries table
type EntryRepository struct {
	db *DB
}

var _ ports.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `entry_id, user_id, entry_date, contents, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*entities.Entry, error) {
	var (
		e                      entities.Entry
		date, created, updated string
	)
	if err := row.Scan(&e.ID, &e.UserID, &date, &e.Text, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := valueobjects.ParseDiaryDate(date)
	if err != nil {
		return nil, err
	}
	e.Date = parsed
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

func (r *EntryRepository) findOne(ctx context.Context, op, query string, args ...interface{}) (*entities.Entry, error) {
	entry, err := scanEntry(r.db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewEntryNotFoundError()
	}
	if err != nil {
		return nil, pkgerrors.NewStoreError(op, err)
	}
	return entry, nil
}

// FindByDate returns the user's entry for exactly this date
func (r *EntryRepository) FindByDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	return r.findOne(ctx, "find entry by date",
		`SELECT `+entryColumns+` FROM entries WHERE user_id = ? AND entry_date = ?`,
		userID, date.String())
}

// FindMostRecentBefore returns the latest entry strictly before date
func (r *EntryRepository) FindMostRecentBefore(ctx context.Context, userID int64, date valueobjects.DiaryDate) (*entities.Entry, error) {
	return r.findOne(ctx, "find previous entry",
		`SELECT `+entryColumns+` FROM entries
		WHERE user_id = ? AND entry_date < ?
		ORDER BY entry_date DESC
		LIMIT 1`,
		userID, date.String())
}

// FindByID returns the entry with this id if the user owns it
func (r *EntryRepository) FindByID(ctx context.Context, userID, entryID int64) (*entities.Entry, error) {
	return r.findOne(ctx, "find entry by id",
		`SELECT `+entryColumns+` FROM entries WHERE entry_id = ? AND user_id = ?`,
		entryID, userID)
}

// ExistsForDate reports whether the user already has an entry on date
func (r *EntryRepository) ExistsForDate(ctx context.Context, userID int64, date valueobjects.DiaryDate) (bool, error) {
	return existsForDate(ctx, r.db.db, userID, date)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func existsForDate(ctx context.Context, q queryer, userID int64, date valueobjects.DiaryDate) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE user_id = ? AND entry_date = ?`, userID, date.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.NewStoreError("check entry exists", err)
	}
	return true, nil
}

// InsertIfAbsent checks for an entry on the same date and inserts only when
// there is none. The unique index on (user_id, entry_date) catches writers
// that interleave between the check and the insert.
func (r *EntryRepository) InsertIfAbsent(ctx context.Context, entry *entities.Entry) (bool, error) {
	created := false
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := existsForDate(ctx, tx, entry.UserID, entry.Date)
		if err != nil || exists {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO entries (user_id, entry_date, contents, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			entry.UserID, entry.Date.String(), entry.Text,
			formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt))
		if isUniqueViolation(err) {
			return nil
		}
		if err != nil {
			return pkgerrors.NewStoreError("insert entry", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return pkgerrors.NewStoreError("insert entry", err)
		}
		entry.ID = id
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// UpdateText replaces the text of an owned entry
func (r *EntryRepository) UpdateText(ctx context.Context, userID, entryID int64, text string, updatedAt time.Time) error {
	res, err := r.db.db.ExecContext(ctx,
		`UPDATE entries SET contents = ?, updated_at = ? WHERE entry_id = ? AND user_id = ?`,
		text, formatTime(updatedAt), entryID, userID)
	if err != nil {
		return pkgerrors.NewStoreError("update entry", err)
	}
	return requireAffected(res, "update entry")
}

// Delete removes an owned entry together with its analysis and score
func (r *EntryRepository) Delete(ctx context.Context, userID, entryID int64) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		var date string
		err := tx.QueryRowContext(ctx,
			`SELECT entry_date FROM entries WHERE entry_id = ? AND user_id = ?`, entryID, userID).Scan(&date)
		if errors.Is(err, sql.ErrNoRows) {
			return pkgerrors.NewEntryNotFoundError()
		}
		if err != nil {
			return pkgerrors.NewStoreError("delete entry", err)
		}

		stmts := []struct {
			query string
			args  []interface{}
		}{
			{`DELETE FROM analysis_records WHERE entry_id = ?`, []interface{}{entryID}},
			{`DELETE FROM emotion_stats WHERE user_id = ? AND entry_date = ?`, []interface{}{userID, date}},
			{`DELETE FROM entries WHERE entry_id = ?`, []interface{}{entryID}},
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
				return pkgerrors.NewStoreError("delete entry", err)
			}
		}
		return nil
	})
}

// ListDatesInRange returns entry dates in [from, until) ascending
func (r *EntryRepository) ListDatesInRange(ctx context.Context, userID int64, from, until valueobjects.DiaryDate) ([]valueobjects.DiaryDate, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT entry_date FROM entries
		WHERE user_id = ? AND entry_date >= ? AND entry_date < ?
		ORDER BY entry_date ASC`,
		userID, from.String(), until.String())
	if err != nil {
		return nil, pkgerrors.NewStoreError("list entry dates", err)
	}
	defer rows.Close()

	dates := []valueobjects.DiaryDate{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, pkgerrors.NewStoreError("scan entry date", err)
		}
		d, err := valueobjects.ParseDiaryDate(s)
		if err != nil {
			return nil, pkgerrors.NewStoreError("parse entry date", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStoreError("list entry dates", err)
	}
	return dates, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewStoreError(op, err)
	}
	if n == 0 {
		return pkgerrors.NewEntryNotFoundError()
	}
	return nil
}
