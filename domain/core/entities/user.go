package entities

import "time"

// SessionHandle identifies the provider-side conversation kept for a user
type SessionHandle struct {
	AssistantID string `json:"assistant_id"`
	ThreadID    string `json:"thread_id"`
}

// IsComplete reports whether both identifiers are set. A handle is only
// trusted, stored, or reused when complete.
func (h SessionHandle) IsComplete() bool {
	return h.AssistantID != "" && h.ThreadID != ""
}

// User is the account owning entries and at most one session handle
type User struct {
	ID        int64
	Nickname  string
	Email     string
	Session   *SessionHandle
	CreatedAt time.Time
}
