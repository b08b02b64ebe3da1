package adapter

import (
	"context"
	"errors"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgAssistantRepository struct {
	pool *pgxpool.Pool
}

func NewPgAssistantRepository(pool *pgxpool.Pool) *PgAssistantRepository {
	return &PgAssistantRepository{pool: pool}
}

func (r *PgAssistantRepository) GetOrCreateConversation(ctx context.Context, id string, userID string) (*assistant.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgAssistantRepository: nil pool")
	}
	var conv assistant.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, created_at
		FROM assistant.conversation
		WHERE id = $1::uuid
	`, id).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Lazy creation on first contact. ON CONFLICT covers a concurrent
	// connection creating the same conversation between our two queries.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO assistant.conversation (id, user_id, created_at)
		VALUES ($1::uuid, $2::uuid, now())
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id::text, user_id::text, created_at
	`, id, userID).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *PgAssistantRepository) SaveMessage(ctx context.Context, m assistant.Message) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgAssistantRepository: nil pool")
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assistant.message (conversation_id, role, content, created_at)
		VALUES ($1::uuid, $2, $3, $4)
		RETURNING id::text
	`, m.ConversationID, string(m.Role), m.Content, m.CreatedAt).Scan(&id)
	return id, err
}

func (r *PgAssistantRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]assistant.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgAssistantRepository: nil pool")
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, role, content, created_at
		FROM assistant.message
		WHERE conversation_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []assistant.Message
	for rows.Next() {
		var (
			msg  assistant.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = assistant.Role(role)
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgAssistantRepository) LogSearchQuery(ctx context.Context, q assistant.SearchQuery) error {
	if r == nil || r.pool == nil {
		return errors.New("PgAssistantRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assistant.search_query (user_id, query, created_at)
		VALUES (NULLIF($1, '')::uuid, $2, now())
	`, derefOrEmpty(q.UserID), q.Query)
	return err
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
