package http

import (
	"github.com/NurzhauganovA/aishop/internal/infrastructure/realtime"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/presentation/controller"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes registers assistant endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, pool *pgxpool.Pool, router *realtime.Router, responder controller.Responder, descGen controller.DescriptionGenerator) {
	createCtl := controller.NewCreateConversationController(pool)
	historyCtl := controller.NewGetHistoryController(pool)
	sendCtl := controller.NewSendMessageController(pool, router, responder)
	descCtl := controller.NewGenerateDescriptionController(descGen)
	socketCtl := controller.NewAssistantSocketController(pool, router, responder)

	// POST /api/v1/assistant/conversations -> create a conversation for the widget
	g.POST("/assistant/conversations", createCtl.Handle())

	// GET /api/v1/assistant/conversations/:conversationId/messages -> history replay
	g.GET("/assistant/conversations/:conversationId/messages", historyCtl.Handle())

	// POST /api/v1/assistant/messages -> one chat turn over plain HTTP
	g.POST("/assistant/messages", sendCtl.Handle())

	// POST /api/v1/assistant/products/description -> AI product description for sellers
	g.POST("/assistant/products/description", descCtl.Handle())

	// GET /api/v1/assistant/ws/:conversationId -> websocket endpoint for the chat session
	g.GET("/assistant/ws/:conversationId", socketCtl.Handle())
}
