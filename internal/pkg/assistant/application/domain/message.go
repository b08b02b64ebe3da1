package assistant

import (
	"errors"
	"strings"
	"time"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Domain-level errors for assistant behaviors
var (
	ErrEmptyMessage   = errors.New("assistant: empty message")
	ErrNoConversation = errors.New("assistant: conversation_id is required")
)

// Message is an immutable log entry in a conversation.
// Messages are totally ordered by CreatedAt within their conversation;
// history retrieval must preserve this order.
type Message struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Role           Role      `db:"role"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}

// NewMessage validates and normalizes a message before persistence.
// Whitespace-only content is rejected so a blank turn never reaches the store.
func NewMessage(conversationID string, role Role, content string) (*Message, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	if role == "" {
		role = RoleUser
	}

	return &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        trimmed,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
