package usecase

import (
	"context"
	"fmt"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	repository "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/port"
)

// GetOrCreateConversationInput identifies the conversation and its owner.
type GetOrCreateConversationInput struct {
	ConversationID string
	UserID         string
}

// GetOrCreateConversationUseCase resolves a conversation lazily: the first
// message to an unknown id creates it owned by the requesting user.
// One class per use case (own file)
type GetOrCreateConversationUseCase struct {
	Repo repository.AssistantRepository
}

func NewGetOrCreateConversationUseCase(repo repository.AssistantRepository) *GetOrCreateConversationUseCase {
	return &GetOrCreateConversationUseCase{Repo: repo}
}

func (uc *GetOrCreateConversationUseCase) Execute(ctx context.Context, in GetOrCreateConversationInput) (*assistant.Conversation, error) {
	if in.ConversationID == "" || in.UserID == "" {
		return nil, fmt.Errorf("conversation_id and user_id are required")
	}

	conv, err := uc.Repo.GetOrCreateConversation(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return conv, nil
}
