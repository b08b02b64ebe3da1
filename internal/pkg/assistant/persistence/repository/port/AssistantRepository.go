package repository

import (
	"context"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
)

// AssistantRepository defines persistence operations for the assistant domain.
// Note: SearchQuery is append-only from this service's perspective; there is
// deliberately no read operation for it.
type AssistantRepository interface {
	// GetOrCreateConversation returns the conversation with the given id,
	// creating it owned by userID when absent.
	GetOrCreateConversation(ctx context.Context, id string, userID string) (*assistant.Conversation, error)

	// SaveMessage persists a message and returns the store-generated id.
	SaveMessage(ctx context.Context, m assistant.Message) (string, error)

	// GetRecentMessages returns up to limit messages of the conversation,
	// most recent first. Callers needing chronological order must reverse.
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]assistant.Message, error)

	// LogSearchQuery appends an audit record of a user query.
	LogSearchQuery(ctx context.Context, q assistant.SearchQuery) error
}
