package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"a2ui-agent/internal/usecase"
)

func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	h, err := NewHandler(svc)
	require.NoError(t, err)
	stream, err := NewStreamHandler(svc, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(NewMux(h, stream, NewAgentCard("http://agent.test", "claude-sonnet-4-5", true)))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStream_WritesOneFramePerEvent(t *testing.T) {
	svc := &stubService{
		sessionID: "s",
		events: []usecase.Event{
			usecase.Progress{Message: "Generating your UI..."},
			usecase.Progress{Message: "Generating your UI..."},
			usecase.Success{Content: "done", Attempts: 2},
		},
	}
	conn := dial(t, newTestServer(t, svc))

	require.NoError(t, conn.WriteJSON(map[string]string{"query": "a pricing table"}))

	var frames []usecase.EventPayload
	for {
		var p usecase.EventPayload
		if err := conn.ReadJSON(&p); err != nil {
			break
		}
		frames = append(frames, p)
	}

	require.Equal(t, "a pricing table", svc.input().Query)
	require.Len(t, frames, 3)
	require.Equal(t, usecase.EventPayload{Done: false, Message: "Generating your UI..."}, frames[0])
	require.Equal(t, usecase.EventPayload{Done: true, Content: "done"}, frames[2])
}

func TestStream_RejectedRequest(t *testing.T) {
	svc := &stubService{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_query"}}
	conn := dial(t, newTestServer(t, svc))

	require.NoError(t, conn.WriteJSON(map[string]string{"query": ""}))

	var out errorResponse
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "empty_query", out.Message)
}

func TestStream_InvalidFrame(t *testing.T) {
	conn := dial(t, newTestServer(t, &stubService{}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))

	var out errorResponse
	require.NoError(t, conn.ReadJSON(&out))
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestMux_GenerateOverHTTP(t *testing.T) {
	svc := &stubService{sessionID: "s", events: []usecase.Event{usecase.Success{Content: "ok", Attempts: 1}}}
	srv := newTestServer(t, svc)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/generate", strings.NewReader(`{"query":"a card"}`))
	require.NoError(t, err)
	req.Header.Set("X-Correlation-Id", "corr-9")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-9", resp.Header.Get("X-Correlation-Id"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := parseBody[generateResponse](t, string(raw))
	require.Equal(t, "ok", out.Content)
}

func TestMux_AgentCard(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Get(srv.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.Equal(t, "http://agent.test", card.URL)
	require.Equal(t, "claude-sonnet-4-5", card.Model)
	require.True(t, card.StructuredOutput)
	require.Equal(t, []string{"text", "text/plain"}, card.DefaultInputModes)
	require.True(t, card.Capabilities.Streaming)
}
