package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NurzhauganovA/aishop/internal/infrastructure/realtime"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/ai"
	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/usecase"
	repoAdapter "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SendMessageController runs one chat turn over plain HTTP for clients that
// do not hold a websocket. The turn is the same pipeline as the socket path
// and its events still fan out to the conversation room, so socket members
// see HTTP-sent messages too; the reply additionally comes back in the
// response body.
type SendMessageController struct {
	router        *realtime.Router
	getOrCreateUC *usecase.GetOrCreateConversationUseCase
	saveMessageUC *usecase.SaveMessageUseCase
	getHistoryUC  *usecase.GetHistoryUseCase
	responder     Responder
	opTimeout     time.Duration
	historyLimit  int
}

func NewSendMessageController(pool *pgxpool.Pool, router *realtime.Router, responder Responder) *SendMessageController {
	repo := repoAdapter.NewPgAssistantRepository(pool)
	return &SendMessageController{
		router:        router,
		getOrCreateUC: usecase.NewGetOrCreateConversationUseCase(repo),
		saveMessageUC: usecase.NewSaveMessageUseCase(repo),
		getHistoryUC:  usecase.NewGetHistoryUseCase(repo),
		responder:     responder,
		opTimeout:     5 * time.Second,
		historyLimit:  10,
	}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := requestUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": msgBadPayload})
			return
		}
		if req.ConversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "conversation_id is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opTimeout)
		_, err := h.getOrCreateUC.Execute(ctx, usecase.GetOrCreateConversationInput{
			ConversationID: req.ConversationID,
			UserID:         userID,
		})
		cancel()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgTurnFailed})
			return
		}

		userMsg, err := h.persist(req.ConversationID, assistant.RoleUser, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, assistant.ErrEmptyMessage):
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": msgEmptyMessage})
			case errors.Is(err, usecase.ErrPersistence):
				c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgPersistFailed})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgTurnFailed})
			}
			return
		}

		broadcastEvent(h.router, req.ConversationID, chatEvent{
			Message:   userMsg.Content,
			Role:      "user",
			MessageID: userMsg.ID,
			Timestamp: userMsg.CreatedAt.Format(time.RFC3339),
		})

		history, err := h.recentHistory(req.ConversationID, userMsg.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgTurnFailed})
			return
		}

		reply, err := h.responder.Respond(c.Request.Context(), userID, userMsg.Content, history)
		if err != nil {
			var rle *ai.RateLimitError
			if errors.As(err, &rle) {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"status":  "error",
					"message": fmt.Sprintf(msgRateLimitedFmt, int(rle.Wait.Seconds()+0.5)),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgTurnFailed})
			return
		}

		aiMsg, err := h.persist(req.ConversationID, assistant.RoleAssistant, reply)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msgPersistFailed})
			return
		}

		broadcastEvent(h.router, req.ConversationID, chatEvent{
			Message:   aiMsg.Content,
			Role:      "ai",
			MessageID: aiMsg.ID,
			Timestamp: aiMsg.CreatedAt.Format(time.RFC3339),
		})

		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"response": reply,
		})
	}
}

func (h *SendMessageController) persist(conversationID string, role assistant.Role, content string) (*assistant.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()
	return h.saveMessageUC.Execute(ctx, usecase.SaveMessageInput{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
}

func (h *SendMessageController) recentHistory(conversationID string, excludeID string) ([]assistant.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	msgs, err := h.getHistoryUC.Execute(ctx, usecase.GetHistoryInput{
		ConversationID: conversationID,
		Limit:          h.historyLimit,
	})
	if err != nil {
		return nil, err
	}

	history := msgs[:0]
	for _, m := range msgs {
		if m.ID == excludeID {
			continue
		}
		history = append(history, m)
	}
	return history, nil
}
