package controller

import (
	"context"
	"encoding/json"
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
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Responder produces the assistant's reply for one turn. Implemented by
// ai.Client; tests inject fakes.
type Responder interface {
	Respond(ctx context.Context, userID string, message string, history []assistant.Message) (string, error)
}

// AssistantSocketController handles the websocket endpoint for assistant chat.
// Each connection runs its own read loop; a turn executes synchronously inside
// that loop, so concurrent connections never block each other and a
// disconnect mid-turn lets the in-flight turn finish and broadcast to the
// remaining room members.
type AssistantSocketController struct {
	router          *realtime.Router
	getOrCreateUC   *usecase.GetOrCreateConversationUseCase
	saveMessageUC   *usecase.SaveMessageUseCase
	getHistoryUC    *usecase.GetHistoryUseCase
	responder       Responder
	inflightTimeout time.Duration
	historyLimit    int
}

func NewAssistantSocketController(pool *pgxpool.Pool, router *realtime.Router, responder Responder) *AssistantSocketController {
	repo := repoAdapter.NewPgAssistantRepository(pool)
	return &AssistantSocketController{
		router:          router,
		getOrCreateUC:   usecase.NewGetOrCreateConversationUseCase(repo),
		saveMessageUC:   usecase.NewSaveMessageUseCase(repo),
		getHistoryUC:    usecase.NewGetHistoryUseCase(repo),
		responder:       responder,
		inflightTimeout: 5 * time.Second,
		historyLimit:    10,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The host proxy enforces origin; accept here.
		return true
	},
}

type inboundFrame struct {
	Message string `json:"message"`
}

// chatEvent fans out to every room member, the sender included; the echo is
// the authoritative copy of the sender's own message.
type chatEvent struct {
	Message   string `json:"message"`
	Role      string `json:"role"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// errorFrame is unicast to the originating connection only.
type errorFrame struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	msgEmptyMessage   = "Сообщение не может быть пустым."
	msgBadPayload     = "Некорректный формат сообщения."
	msgPersistFailed  = "Не удалось сохранить сообщение. Попробуйте ещё раз."
	msgTurnFailed     = "Произошла ошибка при обработке вашего сообщения."
	msgWelcome        = "Здравствуйте! Я AISha, ассистент маркетплейса. Чем могу помочь?"
	msgRateLimitedFmt = "Превышен лимит запросов. Попробуйте снова через %d секунд."
)

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes messages until
// the client disconnects. Unauthenticated connections are refused before the
// upgrade; nothing is created for them.
func (ctl *AssistantSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := requestUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "conversationId is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just return.
			return
		}

		// Conversation is created lazily on first contact with this id.
		// This runs before the connection is attached so a failure can be
		// reported synchronously instead of racing the write loop shutdown.
		ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
		_, err = ctl.getOrCreateUC.Execute(ctx, usecase.GetOrCreateConversationInput{
			ConversationID: conversationID,
			UserID:         userID,
		})
		cancel()
		if err != nil {
			writeErrorAndClose(ws, msgTurnFailed)
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ctl.router.Join(conversationID, conn)
		_ = conn.SendJSON(chatEvent{Message: msgWelcome, Role: "system", Timestamp: time.Now().UTC().Format(time.RFC3339)})

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, msgBadPayload)
				continue
			}

			ctl.handleTurn(conn, conversationID, userID, frame.Message)
		}
	}
}

// handleTurn runs one message turn: persist and broadcast the user message,
// obtain the assistant reply, persist and broadcast it. Every failure is
// reported to the originating connection only; the session stays usable.
func (ctl *AssistantSocketController) handleTurn(conn *realtime.Connection, conversationID string, userID string, message string) {
	userMsg, err := ctl.persist(conversationID, assistant.RoleUser, message)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrEmptyMessage):
			ctl.replyError(conn, msgEmptyMessage)
		case errors.Is(err, usecase.ErrPersistence):
			ctl.replyError(conn, msgPersistFailed)
		default:
			ctl.replyError(conn, msgTurnFailed)
		}
		return
	}

	ctl.broadcast(conversationID, chatEvent{
		Message:   userMsg.Content,
		Role:      "user",
		MessageID: userMsg.ID,
		Timestamp: userMsg.CreatedAt.Format(time.RFC3339),
	})

	history, err := ctl.recentHistory(conversationID, userMsg.ID)
	if err != nil {
		ctl.replyError(conn, msgTurnFailed)
		return
	}

	// The model call carries no extra deadline (the backend enforces its own)
	// and is detached from the request context so a disconnect does not abort
	// the in-flight turn.
	reply, err := ctl.responder.Respond(context.Background(), userID, userMsg.Content, history)
	if err != nil {
		var rle *ai.RateLimitError
		if errors.As(err, &rle) {
			ctl.replyError(conn, fmt.Sprintf(msgRateLimitedFmt, int(rle.Wait.Seconds()+0.5)))
			return
		}
		ctl.replyError(conn, msgTurnFailed)
		return
	}

	aiMsg, err := ctl.persist(conversationID, assistant.RoleAssistant, reply)
	if err != nil {
		ctl.replyError(conn, msgPersistFailed)
		return
	}

	ctl.broadcast(conversationID, chatEvent{
		Message:   aiMsg.Content,
		Role:      "ai",
		MessageID: aiMsg.ID,
		Timestamp: aiMsg.CreatedAt.Format(time.RFC3339),
	})
}

func (ctl *AssistantSocketController) persist(conversationID string, role assistant.Role, content string) (*assistant.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
	defer cancel()
	return ctl.saveMessageUC.Execute(ctx, usecase.SaveMessageInput{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
}

// recentHistory returns the bounded chronological history excluding the
// just-persisted user message (the responder appends the new message itself).
func (ctl *AssistantSocketController) recentHistory(conversationID string, excludeID string) ([]assistant.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
	defer cancel()

	msgs, err := ctl.getHistoryUC.Execute(ctx, usecase.GetHistoryInput{
		ConversationID: conversationID,
		Limit:          ctl.historyLimit,
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

func (ctl *AssistantSocketController) broadcast(conversationID string, event chatEvent) {
	broadcastEvent(ctl.router, conversationID, event)
}

func broadcastEvent(router *realtime.Router, conversationID string, event chatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	router.Broadcast(conversationID, payload)
}

func (ctl *AssistantSocketController) replyError(conn *realtime.Connection, message string) {
	_ = conn.SendJSON(errorFrame{Status: "error", Message: message})
}

// writeErrorAndClose reports a setup failure straight on the raw socket. Used
// only before the connection's write loop starts; once the loop runs, errors
// go through the send queue instead.
func writeErrorAndClose(ws *websocket.Conn, message string) {
	if payload, err := json.Marshal(errorFrame{Status: "error", Message: message}); err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = ws.WriteMessage(websocket.TextMessage, payload)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "setup failed"),
		time.Now().Add(5*time.Second))
	_ = ws.Close()
}

// requestUserID resolves the host-authenticated user: the auth proxy sets
// X-User-ID; the query parameter kept as a fallback for local development.
func requestUserID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}
