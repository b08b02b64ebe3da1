package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/usecase"
	repoAdapter "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateConversationController handles conversation creation for the chat
// widget (one controller per endpoint). The widget stores the returned id
// and reuses it for the websocket route.
type CreateConversationController struct {
	UC *usecase.GetOrCreateConversationUseCase
}

func NewCreateConversationController(pool *pgxpool.Pool) *CreateConversationController {
	repo := repoAdapter.NewPgAssistantRepository(pool)
	return &CreateConversationController{UC: usecase.NewGetOrCreateConversationUseCase(repo)}
}

func (h *CreateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := requestUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		conv, err := h.UC.Execute(ctx, usecase.GetOrCreateConversationInput{
			ConversationID: uuid.NewString(),
			UserID:         userID,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"status": "error", "message": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":          "success",
			"conversation_id": conv.ID,
		})
	}
}
