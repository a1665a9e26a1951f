package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadcart/threadcart/internal/chat"
	"github.com/threadcart/threadcart/internal/log"
	"github.com/threadcart/threadcart/internal/session"
	"github.com/threadcart/threadcart/internal/testutil"
	"github.com/threadcart/threadcart/internal/tools"
)

type testEnv struct {
	server   *Server
	sessions *session.Registry
	ts       *httptest.Server
}

func newTestEnv(t *testing.T, sessionCfg session.Config, rps float64, burst int) *testEnv {
	t.Helper()

	if sessionCfg.Factory == nil {
		registry := tools.NewRegistry(log.NewNop())
		sessionCfg.Factory = func() *chat.Engine {
			return chat.NewEngine(chat.Config{
				Client:   testutil.NewMockClient("ok"),
				Registry: registry,
				Logger:   log.NewNop(),
			})
		}
	}
	if sessionCfg.Logger == nil {
		sessionCfg.Logger = log.NewNop()
	}

	sessions := session.NewRegistry(sessionCfg)
	t.Cleanup(sessions.Close)

	srv := NewServer(sessions, rps, burst, log.NewNop())
	t.Cleanup(srv.limiter.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, sessions: sessions, ts: ts}
}

func postChat(t *testing.T, env *testEnv, body ChatRequest, header http.Header) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/v1/chat", bytes.NewReader(raw))
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeChat(t *testing.T, resp *http.Response) ChatResponse {
	t.Helper()
	var out ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestChatTurn(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	resp := postChat(t, env, ChatRequest{Message: "hello"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeChat(t, resp)
	assert.Equal(t, "ok", out.Response)
	assert.NotEmpty(t, out.SessionID, "server must mint a session id when none is given")
	assert.Len(t, out.ActionButtons, 3, "a generic reply offers the default quick replies")
}

func TestChatReusesSession(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	first := decodeChat(t, postChat(t, env, ChatRequest{Message: "hello"}, nil))
	require.NotEmpty(t, first.SessionID)

	second := decodeChat(t, postChat(t, env,
		ChatRequest{SessionID: first.SessionID, Message: "hello again"}, nil))

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, env.sessions.Len(), "both turns share one session")
}

func TestChatRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	t.Run("malformed JSON", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/v1/chat",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		resp, err := env.ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("empty message", func(t *testing.T) {
		resp := postChat(t, env, ChatRequest{Message: "   "}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		header := http.Header{"Authorization": []string{"Basic dXNlcjpwYXNz"}}
		resp := postChat(t, env, ChatRequest{Message: "hello"}, header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestChatBearerTokenForwarded(t *testing.T) {
	var seenToken string
	registry := tools.NewRegistry(log.NewNop())

	client := testutil.NewMockClient("done")
	client.EnqueueToolCall("call_1", "probe", map[string]any{})
	client.EnqueueText("done")

	require.NoError(t, registry.Register(tools.Descriptor{
		Name:        "probe",
		Description: "records the caller token",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		RequiresAuth: true,
		Handler: func(_ context.Context, args tools.Args) (string, error) {
			seenToken = args.Token()
			return "recorded", nil
		},
	}))

	env := newTestEnv(t, session.Config{
		Factory: func() *chat.Engine {
			return chat.NewEngine(chat.Config{
				Client:   client,
				Registry: registry,
				Logger:   log.NewNop(),
			})
		},
	}, 0, 0)

	header := http.Header{"Authorization": []string{"Bearer secret-token"}}
	resp := postChat(t, env, ChatRequest{Message: "do the thing"}, header)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "secret-token", seenToken)
}

func TestChatCapacityReturns503(t *testing.T) {
	env := newTestEnv(t, session.Config{Capacity: 1}, 0, 0)

	// Pin the only slot with a busy session so the handler cannot evict it.
	_, release, err := env.sessions.Acquire("busy")
	require.NoError(t, err)
	defer release()

	resp := postChat(t, env, ChatRequest{SessionID: "other", Message: "hello"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0.01, 2)

	for i := 0; i < 2; i++ {
		resp, err := env.ts.Client().Get(env.ts.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebsocketTurn(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/chat/ws-session"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, "ok", string(data))

	assert.Equal(t, 1, env.sessions.Len(), "the socket turn ran in its session")

	// A second frame reuses the same session.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("again")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, 1, env.sessions.Len())
}

func TestWebsocketIgnoresBlankFrames(t *testing.T) {
	env := newTestEnv(t, session.Config{}, 0, 0)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/chat/blank"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data), "blank frames are skipped, not answered")
}
