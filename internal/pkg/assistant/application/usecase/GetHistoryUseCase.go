package usecase

import (
	"context"
	"fmt"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	repository "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/port"
)

// GetHistoryInput bounds the history window of a conversation.
type GetHistoryInput struct {
	ConversationID string
	Limit          int
}

// GetHistoryUseCase fetches the recent messages of a conversation in
// chronological order. The store returns them most recent first (that is the
// cheap query with a LIMIT); this use case restores oldest-first order so
// callers can replay history directly into a model prompt.
type GetHistoryUseCase struct {
	Repo repository.AssistantRepository
}

func NewGetHistoryUseCase(repo repository.AssistantRepository) *GetHistoryUseCase {
	return &GetHistoryUseCase{Repo: repo}
}

func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]assistant.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}

	msgs, err := uc.Repo.GetRecentMessages(ctx, in.ConversationID, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Reverse in place: most-recent-first -> chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
