package usecase

import (
	"context"
	"fmt"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	repository "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/port"
)

// SaveMessageInput carries the data needed to persist one message turn half.
// Validation (non-empty content) is delegated to assistant.NewMessage to
// preserve domain integrity.
type SaveMessageInput struct {
	ConversationID string
	Role           assistant.Role
	Content        string
}

// SaveMessageUseCase persists a single message of a conversation.
// Hexagonal: depends on repository port, returns domain entity
// One class per use case (own file)
type SaveMessageUseCase struct {
	Repo repository.AssistantRepository
}

func NewSaveMessageUseCase(repo repository.AssistantRepository) *SaveMessageUseCase {
	return &SaveMessageUseCase{Repo: repo}
}

// Execute validates and persists a new message for a conversation
func (uc *SaveMessageUseCase) Execute(ctx context.Context, in SaveMessageInput) (*assistant.Message, error) {
	msg, err := assistant.NewMessage(in.ConversationID, in.Role, in.Content)
	if err != nil {
		return nil, err
	}

	// Persist letting DB generate the ID
	id, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id
	return msg, nil
}
