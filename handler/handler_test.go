package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"a2ui-agent/internal/domain"
	"a2ui-agent/internal/usecase"
)

type stubService struct {
	mu        sync.Mutex
	sessionID string
	events    []usecase.Event
	err       error
	in        usecase.GenerateRequest
}

func (s *stubService) Start(_ context.Context, req usecase.GenerateRequest) (string, <-chan usecase.Event, error) {
	s.mu.Lock()
	s.in = req
	s.mu.Unlock()
	if s.err != nil {
		return "", nil, s.err
	}
	ch := make(chan usecase.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return s.sessionID, ch, nil
}

func (s *stubService) input() usecase.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in
}

type statusErr struct{ code int }

func (e statusErr) Error() string       { return "status" }
func (e statusErr) HTTPStatusCode() int { return e.code }

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/generate",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	svc := &stubService{
		sessionID: "sess-1",
		events: []usecase.Event{
			usecase.Progress{Message: "Generating your UI..."},
			usecase.Success{Content: "ui\n---a2ui_JSON---\n[]", Attempts: 1},
		},
	}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"query":"a login form","sessionId":"sess-1","history":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.GenerateRequest{
		Query:     "a login form",
		SessionID: "sess-1",
		History:   []domain.Turn{{Role: "user", Content: "hi"}},
	}, svc.input())

	out := parseBody[generateResponse](t, resp.Body)
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, "ui\n---a2ui_JSON---\n[]", out.Content)
	require.Len(t, out.Events, 2)
	require.False(t, out.Events[0].Done)
	require.Equal(t, "Generating your UI...", out.Events[0].Message)
	require.True(t, out.Events[1].Done)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_InvalidBody(t *testing.T) {
	h, err := NewHandler(&stubService{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_query"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "dynamodb_generation_count_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(&stubService{err: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"query":"a form"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_MapsTerminalFailures(t *testing.T) {
	cases := []struct {
		name    string
		failure usecase.Failure
		status  int
		code    string
	}{
		{
			name:    "schema missing",
			failure: usecase.Failure{Kind: usecase.KindFatalPrecondition, Error: "Schema not loaded."},
			status:  http.StatusServiceUnavailable,
			code:    string(usecase.ErrorSchemaUnavailable),
		},
		{
			name:    "exhausted",
			failure: usecase.Failure{Kind: usecase.KindValidation, Error: "Unable to generate UI. Please try again.", Attempts: 2},
			status:  http.StatusBadGateway,
			code:    string(usecase.ErrorUpstream),
		},
		{
			name:    "rate limited upstream",
			failure: usecase.Failure{Kind: usecase.KindTransport, Error: "API error: status", Attempts: 2, Cause: statusErr{code: 429}},
			status:  http.StatusTooManyRequests,
			code:    string(usecase.ErrorRateLimited),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{sessionID: "s", events: []usecase.Event{tc.failure}}
			h, err := NewHandler(svc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"query":"a form"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.Equal(t, tc.failure.Error, out.Message)
			require.Len(t, out.Events, 1)
			require.True(t, out.Events[0].Done)
			require.Equal(t, tc.failure.Error, out.Events[0].Error)
		})
	}
}

func TestHandle_StreamWithoutTerminal(t *testing.T) {
	svc := &stubService{sessionID: "s", events: []usecase.Event{usecase.Progress{Message: "Generating your UI..."}}}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"query":"a form"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	svc := &stubService{sessionID: "s", events: []usecase.Event{usecase.Success{Content: "ok", Attempts: 1}}}
	h, err := NewHandler(svc)
	require.NoError(t, err)

	event := makeEvent(`{"query":"a form"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
