package assistant

import "time"

// Conversation represents one user's thread with the AI assistant.
// Created lazily on first contact; never deleted by this service.
type Conversation struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}
