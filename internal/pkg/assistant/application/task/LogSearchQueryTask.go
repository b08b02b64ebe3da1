package task

import (
	"context"
	"encoding/json"
	"time"

	qport "github.com/NurzhauganovA/aishop/internal/infrastructure/queue/port"
	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	repoAdapter "github.com/NurzhauganovA/aishop/internal/pkg/assistant/persistence/repository/adapter"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LogSearchQueryTaskType is the queue task name for the search-query audit log.
const LogSearchQueryTaskType = "assistant:log_search_query"

// LogSearchQueryTaskPayload is the JSON payload transported via the queue.
// UserID is empty for unauthenticated queries.
type LogSearchQueryTaskPayload struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

// RegisterLogSearchQueryTask binds the audit task handler to the provided server.
// The audit log is append-only; a failed write is retried per adapter policy.
func RegisterLogSearchQueryTask(srv qport.Server, pool *pgxpool.Pool) {
	srv.Register(LogSearchQueryTaskType, func(ctx context.Context, t qport.Task) error {
		var p LogSearchQueryTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		repo := repoAdapter.NewPgAssistantRepository(pool)

		q := assistant.SearchQuery{Query: p.Query}
		if p.UserID != "" {
			q.UserID = &p.UserID
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		return repo.LogSearchQuery(ctx, q)
	})
}

// QueryAuditEnqueuer satisfies the assistant client's audit port by pushing
// the write onto the queue, keeping it off the hot path of a chat turn.
type QueryAuditEnqueuer struct {
	Q qport.Client
}

func NewQueryAuditEnqueuer(client qport.Client) *QueryAuditEnqueuer {
	return &QueryAuditEnqueuer{Q: client}
}

func (e *QueryAuditEnqueuer) Record(ctx context.Context, userID string, query string) error {
	payload := LogSearchQueryTaskPayload{UserID: userID, Query: query}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = e.Q.Enqueue(ctx, qport.Task{Type: LogSearchQueryTaskType, Payload: b}, qport.EnqueueOption{
		Queue:    "assistant",
		MaxRetry: 3,
	})
	return err
}
