package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// descriptionSystemPrompt fixes the copywriter persona for generated
// product descriptions.
const descriptionSystemPrompt = "Ты - опытный копирайтер, специализирующийся на описаниях товаров"

const descriptionPromptFmt = `Создай подробное и привлекательное описание для товара "%s" на основе следующих характеристик:

%s

Описание должно быть привлекательным для покупателей, подчеркивать преимущества товара
и включать информацию о характеристиках. Используй маркетинговый стиль,
но будь честным и точным. Пиши на русском языке, 3-4 абзаца текста.`

var ErrEmptyProductName = errors.New("ai: product name is required")

// DescriptionGenerator produces marketing copy for a catalog item. It holds
// its own rate limiter: description generation and chat turns have separate
// admission budgets against the external API.
type DescriptionGenerator struct {
	completer Completer
	limiter   *RateLimiter
	model     string
}

func NewDescriptionGenerator(completer Completer, limiter *RateLimiter, model string) *DescriptionGenerator {
	return &DescriptionGenerator{
		completer: completer,
		limiter:   limiter,
		model:     model,
	}
}

// Generate returns a description for the named product based on its
// attributes. Admission denial returns *RateLimitError; a backend failure is
// returned as an error, never as displayable text.
func (g *DescriptionGenerator) Generate(ctx context.Context, productName string, attributes map[string]string) (string, error) {
	if strings.TrimSpace(productName) == "" {
		return "", ErrEmptyProductName
	}

	if err := g.limiter.Allow(); err != nil {
		return "", err
	}

	rendered, err := json.MarshalIndent(attributes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ai: render attributes: %w", err)
	}

	resp, err := g.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: descriptionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(descriptionPromptFmt, productName, rendered)},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		slog.Error("description generation failed", "product", productName, "error", err)
		return "", fmt.Errorf("ai: generate description: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: model returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
