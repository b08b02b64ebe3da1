package ai

import (
	"context"
	"errors"
	"log/slog"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"

	"github.com/sashabaranov/go-openai"
)

// systemPrompt fixes the assistant persona and the contract for structured
// search requests: a single marked JSON object with no surrounding prose.
const systemPrompt = `Ты AISha - умный ассистент маркетплейса. Твоя задача - помогать пользователям находить нужные товары,
отвечать на их вопросы и давать рекомендации. Говори на русском языке, будь дружелюбной,
полезной и информативной.

Если пользователь просит найти или подобрать товар, ответь ТОЛЬКО одним JSON-объектом
без пояснений и окружающего текста, строго в формате:
{"search_request": true, "categories": ["категория"], "keywords": ["ключевое_слово"],
"price_range": {"min": число или null, "max": число или null}, "filters": {"параметр": "значение"}}
Если какой-то параметр не удалось определить, оставь его пустым или null.`

// apologyReply is returned whenever the backend call itself fails; the
// session protocol relies on every turn producing displayable content.
const apologyReply = "Извините, произошла ошибка при обработке вашего запроса. Попробуйте позже."

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 800
)

// DefaultModel is used when OPENAI_MODEL is not configured.
const DefaultModel = "gpt-4o-mini"

// Completer is the slice of the OpenAI client this wrapper needs.
// *openai.Client satisfies it; tests inject fakes.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Searcher executes an extracted search intent and formats the result text.
type Searcher interface {
	Search(ctx context.Context, intent assistant.SearchIntent, userID string) (string, error)
}

// QueryAudit records inbound user queries for the write-only audit log.
type QueryAudit interface {
	Record(ctx context.Context, userID string, query string) error
}

// Client turns a user message plus conversation history into either plain
// assistant text or the formatted result of a recognized search intent.
type Client struct {
	completer Completer
	limiter   *RateLimiter
	searcher  Searcher
	audit     QueryAudit
	model     string
}

func NewClient(completer Completer, limiter *RateLimiter, searcher Searcher, audit QueryAudit, model string) *Client {
	return &Client{
		completer: completer,
		limiter:   limiter,
		searcher:  searcher,
		audit:     audit,
		model:     model,
	}
}

// Respond runs one assistant turn. History must be chronological (oldest
// first). The returned error is non-nil only for admission denial
// (*RateLimitError); every backend failure is absorbed into an apology so the
// caller always has something to display.
func (c *Client) Respond(ctx context.Context, userID string, message string, history []assistant.Message) (string, error) {
	// Audit the query regardless of how the model call goes.
	if c.audit != nil {
		if err := c.audit.Record(ctx, userID, message); err != nil {
			slog.Warn("search query audit failed", "error", err)
		}
	}

	if err := c.limiter.Allow(); err != nil {
		var rle *RateLimitError
		if errors.As(err, &rle) {
			return "", rle
		}
		return "", err
	}

	resp, err := c.completer.CreateChatCompletion(ctx, c.buildRequest(message, history))
	if err != nil {
		slog.Error("model call failed", "error", err)
		return apologyReply, nil
	}
	if len(resp.Choices) == 0 {
		slog.Error("model returned no choices", "model", c.model)
		return apologyReply, nil
	}

	text := resp.Choices[0].Message.Content

	intent, ok := ExtractSearchIntent(text)
	if !ok {
		// No marked JSON object: the reply is plain text, pass it through.
		return text, nil
	}

	formatted, err := c.searcher.Search(ctx, *intent, userID)
	if err != nil {
		slog.Error("search execution failed", "error", err)
		return apologyReply, nil
	}
	return formatted, nil
}

func (c *Client) buildRequest(message string, history []assistant.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, msg := range history {
		role := openai.ChatMessageRoleAssistant
		if msg.Role == assistant.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}
