package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	pkgerrors "diary-backend/pkg/errors"
)

// UserRepository stores accounts and their provider session handles
type UserRepository struct {
	db *DB
}

var (
	_ ports.UserRepository    = (*UserRepository)(nil)
	_ ports.SessionRepository = (*UserRepository)(nil)
)

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and sets its ID
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.Nickname == "" || user.Email == "" {
		return pkgerrors.NewValidationError("nickname and email are required")
	}
	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO users (nickname, email, created_at) VALUES (?, ?, ?)`,
		user.Nickname, user.Email, formatTime(user.CreatedAt))
	if isUniqueViolation(err) {
		return pkgerrors.NewConflictError("nickname or email already registered")
	}
	if err != nil {
		return pkgerrors.NewStoreError("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.NewStoreError("create user", err)
	}
	user.ID = id
	return nil
}

// FindByID returns the user with its session handle, if any
func (r *UserRepository) FindByID(ctx context.Context, userID int64) (*entities.User, error) {
	var (
		u                     entities.User
		assistantID, threadID sql.NullString
		created               string
	)
	err := r.db.db.QueryRowContext(ctx,
		`SELECT user_id, nickname, email, assistant_id, thread_id, created_at FROM users WHERE user_id = ?`,
		userID).Scan(&u.ID, &u.Nickname, &u.Email, &assistantID, &threadID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewUserNotFoundError()
	}
	if err != nil {
		return nil, pkgerrors.NewStoreError("find user", err)
	}
	u.CreatedAt = parseTime(created)
	handle := entities.SessionHandle{AssistantID: assistantID.String, ThreadID: threadID.String}
	if handle.IsComplete() {
		u.Session = &handle
	}
	return &u, nil
}

// Delete removes the user with every entry, analysis record, score and
// the session handle in one transaction
func (r *UserRepository) Delete(ctx context.Context, userID int64) (int64, error) {
	var removed int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entries WHERE user_id = ?`, userID).Scan(&removed); err != nil {
			return pkgerrors.NewStoreError("count user entries", err)
		}

		for _, query := range []string{
			`DELETE FROM emotion_stats WHERE user_id = ?`,
			`DELETE FROM analysis_records WHERE user_id = ?`,
			`DELETE FROM entries WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, query, userID); err != nil {
				return pkgerrors.NewStoreError("delete user data", err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
		if err != nil {
			return pkgerrors.NewStoreError("delete user", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.NewStoreError("delete user", err)
		}
		if n == 0 {
			return pkgerrors.NewUserNotFoundError()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ReadSession returns the stored handle; it is incomplete when none exists yet
func (r *UserRepository) ReadSession(ctx context.Context, userID int64) (entities.SessionHandle, error) {
	return readSession(ctx, r.db.db, userID)
}

func readSession(ctx context.Context, q queryer, userID int64) (entities.SessionHandle, error) {
	var assistantID, threadID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT assistant_id, thread_id FROM users WHERE user_id = ?`, userID).Scan(&assistantID, &threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.SessionHandle{}, pkgerrors.NewUserNotFoundError()
	}
	if err != nil {
		return entities.SessionHandle{}, pkgerrors.NewStoreError("read session", err)
	}
	return entities.SessionHandle{AssistantID: assistantID.String, ThreadID: threadID.String}, nil
}

// WriteSession stores both ids with one UPDATE guarded by "no complete
// handle yet", so the first writer wins and a handle is never half written.
func (r *UserRepository) WriteSession(ctx context.Context, userID int64, handle entities.SessionHandle) (entities.SessionHandle, bool, error) {
	if !handle.IsComplete() {
		return entities.SessionHandle{}, false, pkgerrors.NewValidationError("session handle requires both assistant and thread ids")
	}

	var (
		stored  entities.SessionHandle
		written bool
	)
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET assistant_id = ?, thread_id = ?
			WHERE user_id = ?
			AND (assistant_id IS NULL OR assistant_id = '' OR thread_id IS NULL OR thread_id = '')`,
			handle.AssistantID, handle.ThreadID, userID)
		if err != nil {
			return pkgerrors.NewStoreError("write session", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.NewStoreError("write session", err)
		}
		if n == 1 {
			stored, written = handle, true
			return nil
		}
		stored, err = readSession(ctx, tx, userID)
		return err
	})
	if err != nil {
		return entities.SessionHandle{}, false, err
	}
	return stored, written, nil
}
