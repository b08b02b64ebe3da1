package v1

import (
	"github.com/NurzhauganovA/aishop/internal/infrastructure/realtime"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/presentation/controller"
	httpHandler "github.com/NurzhauganovA/aishop/internal/pkg/assistant/presentation/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, pool *pgxpool.Pool, router *realtime.Router, responder controller.Responder, descGen controller.DescriptionGenerator) {
	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, pool, router, responder, descGen)
}
