package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply   string
	err     error
	lastReq openai.ChatCompletionRequest
	calls   int
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

type fakeSearcher struct {
	result     string
	err        error
	lastIntent assistant.SearchIntent
	calls      int
}

func (f *fakeSearcher) Search(_ context.Context, intent assistant.SearchIntent, _ string) (string, error) {
	f.calls++
	f.lastIntent = intent
	return f.result, f.err
}

type fakeAudit struct {
	queries []string
	err     error
}

func (f *fakeAudit) Record(_ context.Context, _ string, query string) error {
	f.queries = append(f.queries, query)
	return f.err
}

func newTestClient(completer *fakeCompleter, searcher *fakeSearcher, audit *fakeAudit) *Client {
	return NewClient(completer, NewRateLimiter(100, time.Minute), searcher, audit, DefaultModel)
}

func TestRespondPassesPlainTextThrough(t *testing.T) {
	completer := &fakeCompleter{reply: "Рекомендую посмотреть новинки."}
	searcher := &fakeSearcher{}
	c := newTestClient(completer, searcher, &fakeAudit{})

	got, err := c.Respond(context.Background(), "u1", "посоветуй что-нибудь", nil)
	require.NoError(t, err)
	assert.Equal(t, "Рекомендую посмотреть новинки.", got)
	assert.Zero(t, searcher.calls)
}

func TestRespondExecutesSearchIntent(t *testing.T) {
	completer := &fakeCompleter{reply: `{"search_request": true, "keywords": ["телефон"], "price_range": {"max": 20000}}`}
	searcher := &fakeSearcher{result: "Вот что я нашла по вашему запросу:\n\n1. Телефон — 15000 ₸"}
	c := newTestClient(completer, searcher, &fakeAudit{})

	got, err := c.Respond(context.Background(), "u1", "Найди телефон до 20000", nil)
	require.NoError(t, err)
	assert.Equal(t, searcher.result, got)
	require.Equal(t, 1, searcher.calls)
	assert.Equal(t, []string{"телефон"}, searcher.lastIntent.Keywords)
	require.NotNil(t, searcher.lastIntent.PriceRange.Max)
	assert.Equal(t, 20000.0, *searcher.lastIntent.PriceRange.Max)
}

func TestRespondAbsorbsBackendError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("insufficient_quota")}
	c := newTestClient(completer, &fakeSearcher{}, &fakeAudit{})

	got, err := c.Respond(context.Background(), "u1", "привет", nil)
	require.NoError(t, err)
	assert.Equal(t, apologyReply, got)
}

func TestRespondAbsorbsSearchFailure(t *testing.T) {
	completer := &fakeCompleter{reply: `{"search_request": true, "keywords": ["телефон"]}`}
	searcher := &fakeSearcher{err: errors.New("catalog down")}
	c := newTestClient(completer, searcher, &fakeAudit{})

	got, err := c.Respond(context.Background(), "u1", "найди телефон", nil)
	require.NoError(t, err)
	assert.Equal(t, apologyReply, got)
}

func TestRespondRateLimited(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	c := NewClient(completer, NewRateLimiter(1, time.Minute), &fakeSearcher{}, &fakeAudit{}, "gpt-4o-mini")

	_, err := c.Respond(context.Background(), "u1", "раз", nil)
	require.NoError(t, err)

	_, err = c.Respond(context.Background(), "u1", "два", nil)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Greater(t, rle.Wait, time.Duration(0))
	assert.Equal(t, 1, completer.calls, "denied call must not reach the backend")
}

func TestRespondAuditsQueryEvenIfAuditFails(t *testing.T) {
	completer := &fakeCompleter{reply: "ответ"}
	audit := &fakeAudit{err: errors.New("queue unavailable")}
	c := newTestClient(completer, &fakeSearcher{}, audit)

	got, err := c.Respond(context.Background(), "u1", "вопрос", nil)
	require.NoError(t, err)
	assert.Equal(t, "ответ", got)
	assert.Equal(t, []string{"вопрос"}, audit.queries)
}

func TestRespondBuildsChronologicalPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: "ок"}
	c := newTestClient(completer, &fakeSearcher{}, &fakeAudit{})

	history := []assistant.Message{
		{Role: assistant.RoleUser, Content: "первый вопрос"},
		{Role: assistant.RoleAssistant, Content: "первый ответ"},
		{Role: assistant.RoleSystem, Content: "служебное"},
	}

	_, err := c.Respond(context.Background(), "u1", "новый вопрос", history)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, completer.lastReq.Model)

	msgs := completer.lastReq.Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	assert.Equal(t, "первый вопрос", msgs[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	// Anything that is not a user turn replays as assistant.
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[3].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[4].Role)
	assert.Equal(t, "новый вопрос", msgs[4].Content)
}
