package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NurzhauganovA/aishop/internal/infrastructure/realtime"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/ai"
	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	"github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistantRepo struct {
	mu               sync.Mutex
	messages         []assistant.Message
	next             int
	failConversation error
}

func (f *fakeAssistantRepo) GetOrCreateConversation(_ context.Context, id string, userID string) (*assistant.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failConversation != nil {
		return nil, f.failConversation
	}
	return &assistant.Conversation{ID: id, UserID: userID, CreatedAt: time.Now()}, nil
}

func (f *fakeAssistantRepo) SaveMessage(_ context.Context, m assistant.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	m.ID = strconv.Itoa(f.next)
	f.messages = append(f.messages, m)
	return m.ID, nil
}

func (f *fakeAssistantRepo) GetRecentMessages(_ context.Context, conversationID string, limit int) ([]assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []assistant.Message
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if f.messages[i].ConversationID == conversationID {
			out = append(out, f.messages[i])
		}
	}
	return out, nil
}

func (f *fakeAssistantRepo) LogSearchQuery(_ context.Context, _ assistant.SearchQuery) error {
	return nil
}

func (f *fakeAssistantRepo) saved() []assistant.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]assistant.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

type fakeResponder struct {
	mu      sync.Mutex
	history []assistant.Message
	reply   string
	err     error
}

func (f *fakeResponder) Respond(_ context.Context, _ string, _ string, history []assistant.Message) (string, error) {
	f.mu.Lock()
	f.history = history
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeResponder) seenHistory() []assistant.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

func newSocketTestServer(t *testing.T, responder Responder) (*httptest.Server, *fakeAssistantRepo) {
	t.Helper()

	repo := &fakeAssistantRepo{}
	rtRouter := realtime.NewRouter()
	ctl := &AssistantSocketController{
		router:          rtRouter,
		getOrCreateUC:   usecase.NewGetOrCreateConversationUseCase(repo),
		saveMessageUC:   usecase.NewSaveMessageUseCase(repo),
		getHistoryUC:    usecase.NewGetHistoryUseCase(repo),
		responder:       responder,
		inflightTimeout: time.Second,
		historyLimit:    10,
	}
	sendCtl := &SendMessageController{
		router:        rtRouter,
		getOrCreateUC: usecase.NewGetOrCreateConversationUseCase(repo),
		saveMessageUC: usecase.NewSaveMessageUseCase(repo),
		getHistoryUC:  usecase.NewGetHistoryUseCase(repo),
		responder:     responder,
		opTimeout:     time.Second,
		historyLimit:  10,
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/:conversationId", ctl.Handle())
	r.POST("/messages", sendCtl.Handle())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(rtRouter.Close)
	return srv, repo
}

func dialSocket(t *testing.T, srv *httptest.Server, conversationID string, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + conversationID
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-ID", userID)
	}
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// drainWelcome consumes the system greeting every fresh connection receives.
func drainWelcome(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	frame := readFrame(t, ws)
	require.Equal(t, "system", frame["role"])
	_, present := frame["message_id"]
	require.False(t, present, "greeting must not carry a message_id")
}

func sendFrame(t *testing.T, ws *websocket.Conn, message string) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]string{"message": message}))
}

func TestHandleRejectsUnauthenticated(t *testing.T) {
	srv, _ := newSocketTestServer(t, &fakeResponder{reply: "ок"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conv-1"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Nil(t, ws)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationSetupFailureIsReportedBeforeClose(t *testing.T) {
	srv, repo := newSocketTestServer(t, &fakeResponder{reply: "ок"})
	repo.failConversation = errors.New("connection refused")

	ws := dialSocket(t, srv, "conv-1", "user-1")

	// The error frame arrives before the server closes the socket.
	frame := readFrame(t, ws)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, msgTurnFailed, frame["message"])

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
}

func TestChatEventCarriesMessageID(t *testing.T) {
	srv, _ := newSocketTestServer(t, &fakeResponder{reply: "ок"})

	ws := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, ws)

	sendFrame(t, ws, "привет")
	echo := readFrame(t, ws)
	assert.NotEmpty(t, echo["message_id"])
	reply := readFrame(t, ws)
	assert.NotEmpty(t, reply["message_id"])
}

func TestTurnBroadcastsUserEchoThenReply(t *testing.T) {
	responder := &fakeResponder{reply: "Могу помочь с выбором."}
	srv, repo := newSocketTestServer(t, responder)

	ws := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, ws)

	sendFrame(t, ws, "Привет!")

	echo := readFrame(t, ws)
	assert.Equal(t, "user", echo["role"])
	assert.Equal(t, "Привет!", echo["message"])
	assert.NotEmpty(t, echo["message_id"])

	reply := readFrame(t, ws)
	assert.Equal(t, "ai", reply["role"])
	assert.Equal(t, "Могу помочь с выбором.", reply["message"])

	saved := repo.saved()
	require.Len(t, saved, 2)
	assert.Equal(t, assistant.RoleUser, saved[0].Role)
	assert.Equal(t, assistant.RoleAssistant, saved[1].Role)
}

func TestHistoryExcludesCurrentMessage(t *testing.T) {
	responder := &fakeResponder{reply: "ок"}
	srv, _ := newSocketTestServer(t, responder)

	ws := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, ws)

	sendFrame(t, ws, "первый вопрос")
	readFrame(t, ws) // user echo
	readFrame(t, ws) // ai reply
	assert.Empty(t, responder.seenHistory())

	sendFrame(t, ws, "второй вопрос")
	readFrame(t, ws)
	readFrame(t, ws)

	history := responder.seenHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "первый вопрос", history[0].Content)
	assert.Equal(t, assistant.RoleAssistant, history[1].Role)
}

func TestEmptyMessageKeepsSessionUsable(t *testing.T) {
	srv, repo := newSocketTestServer(t, &fakeResponder{reply: "ок"})

	ws := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, ws)

	sendFrame(t, ws, "   ")
	frame := readFrame(t, ws)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, msgEmptyMessage, frame["message"])
	assert.Empty(t, repo.saved())

	// Same connection still processes the next turn.
	sendFrame(t, ws, "а теперь нормально")
	echo := readFrame(t, ws)
	assert.Equal(t, "user", echo["role"])
}

func TestMalformedPayloadReportsError(t *testing.T) {
	srv, _ := newSocketTestServer(t, &fakeResponder{reply: "ок"})

	ws := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame := readFrame(t, ws)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, msgBadPayload, frame["message"])
}

func TestRoomFanOutToAllParticipants(t *testing.T) {
	srv, _ := newSocketTestServer(t, &fakeResponder{reply: "ответ"})

	sender := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, sender)
	peer := dialSocket(t, srv, "conv-1", "user-2")
	drainWelcome(t, peer)

	sendFrame(t, sender, "всем привет")

	for _, ws := range []*websocket.Conn{sender, peer} {
		echo := readFrame(t, ws)
		assert.Equal(t, "user", echo["role"])
		assert.Equal(t, "всем привет", echo["message"])

		reply := readFrame(t, ws)
		assert.Equal(t, "ai", reply["role"])
		assert.Equal(t, "ответ", reply["message"])
	}
}

func TestRateLimitErrorUnicastToSender(t *testing.T) {
	responder := &fakeResponder{err: &ai.RateLimitError{Wait: 30 * time.Second}}
	srv, repo := newSocketTestServer(t, responder)

	sender := dialSocket(t, srv, "conv-1", "user-1")
	drainWelcome(t, sender)
	peer := dialSocket(t, srv, "conv-1", "user-2")
	drainWelcome(t, peer)

	sendFrame(t, sender, "много вопросов подряд")

	// The user message is echoed to everyone before the limit is hit.
	echo := readFrame(t, sender)
	assert.Equal(t, "user", echo["role"])

	frame := readFrame(t, sender)
	assert.Equal(t, "error", frame["status"])
	assert.Contains(t, frame["message"], "30")

	peerEcho := readFrame(t, peer)
	assert.Equal(t, "user", peerEcho["role"])
	// No assistant reply reaches anyone.
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := peer.ReadMessage()
	assert.Error(t, err)

	saved := repo.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, assistant.RoleUser, saved[0].Role)
}
