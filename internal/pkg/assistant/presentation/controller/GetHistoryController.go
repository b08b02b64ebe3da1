package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/usecase"
	repoAdapter "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetHistoryController serves the chronological message history of a
// conversation so the widget can re-render it on reconnect
// (one controller per endpoint).
type GetHistoryController struct {
	UC *usecase.GetHistoryUseCase
}

func NewGetHistoryController(pool *pgxpool.Pool) *GetHistoryController {
	repo := repoAdapter.NewPgAssistantRepository(pool)
	return &GetHistoryController{UC: usecase.NewGetHistoryUseCase(repo)}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestUserID(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "conversationId is required"})
			return
		}

		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{
			ConversationID: conversationID,
			Limit:          limit,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"status": "error", "message": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, gin.H{
				"role":       m.Role,
				"content":    m.Content,
				"created_at": m.CreatedAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"messages": out,
		})
	}
}
