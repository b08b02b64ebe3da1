package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/NurzhauganovA/aishop/cmd/api/router/v1"
	cacheAdapter "github.com/NurzhauganovA/aishop/internal/infrastructure/cache/adapter"
	"github.com/NurzhauganovA/aishop/internal/infrastructure/database"
	queueAdapter "github.com/NurzhauganovA/aishop/internal/infrastructure/queue/adapter"
	"github.com/NurzhauganovA/aishop/internal/infrastructure/realtime"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/ai"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/task"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/search"
	catalogAdapter "github.com/NurzhauganovA/aishop/internal/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// Connect to the database on startup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := database.NewPoolFromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	cache, err := cacheAdapter.NewRedisAdapter()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer cache.Close()

	queueClient, err := queueAdapter.NewAsynqClientFromEnv()
	if err != nil {
		log.Fatalf("failed to create queue client: %v", err)
	}
	defer queueClient.Close()

	queueServer, err := queueAdapter.NewAsynqServer()
	if err != nil {
		log.Fatalf("failed to create queue server: %v", err)
	}
	task.RegisterLogSearchQueryTask(queueServer, pool)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = ai.DefaultModel
	}

	// One limiter shared by every session: a global admission budget for the
	// external API. Description generation carries its own budget.
	limiter := ai.NewRateLimiter(15, time.Minute)
	descLimiter := ai.NewRateLimiter(15, time.Minute)

	backend := openai.NewClient(apiKey)
	catalog := catalogAdapter.NewPgCatalogRepository(pool)
	executor := search.NewExecutor(catalog, cache)
	responder := ai.NewClient(backend, limiter, executor, task.NewQueryAuditEnqueuer(queueClient), model)
	descGen := ai.NewDescriptionGenerator(backend, descLimiter, model)

	rtRouter := realtime.NewRouter()
	defer rtRouter.Close()

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, pool, rtRouter, responder, descGen)

	// Background worker for queued tasks
	workerCtx, stopWorker := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopWorker()
	go func() {
		if err := queueServer.Run(workerCtx); err != nil {
			log.Printf("queue server stopped: %v", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
