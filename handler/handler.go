package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"a2ui-agent/internal/domain"
	"a2ui-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Service starts a generation stream for a validated request.
// *usecase.GenerateService satisfies it.
type Service interface {
	Start(ctx context.Context, req usecase.GenerateRequest) (string, <-chan usecase.Event, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(svc Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	h := &Handler{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type turnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateRequest struct {
	Query     string        `json:"query"`
	SessionID string        `json:"sessionId"`
	History   []turnRequest `json:"history"`
}

func (r generateRequest) toUseCase() usecase.GenerateRequest {
	history := make([]domain.Turn, 0, len(r.History))
	for _, t := range r.History {
		history = append(history, domain.Turn{Role: t.Role, Content: t.Content})
	}
	return usecase.GenerateRequest{Query: r.Query, SessionID: r.SessionID, History: history}
}

type generateResponse struct {
	SessionID string                 `json:"sessionId"`
	Events    []usecase.EventPayload `json:"events"`
	Content   string                 `json:"content"`
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Events  []usecase.EventPayload `json:"events,omitempty"`
}

// Handle serves one API Gateway proxy request. The whole event stream is
// buffered and returned in a single response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID)

	var body generateRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		logger.Warn("invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
			Error:   string(usecase.ErrorInvalidInput),
			Message: "request body must be a JSON object",
		}), nil
	}

	sessionID, stream, err := h.svc.Start(ctx, body.toUseCase())
	if err != nil {
		status, code := mapError(err)
		logger.Warn("generation rejected", "code", code, "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: string(code), Message: reasonOf(err)}), nil
	}

	collected := usecase.Collect(stream)
	payloads := make([]usecase.EventPayload, 0, len(collected))
	for _, ev := range collected {
		payloads = append(payloads, usecase.Payload(ev))
	}

	var last usecase.Event
	if len(collected) > 0 {
		last = collected[len(collected)-1]
	}
	switch ev := last.(type) {
	case usecase.Success:
		logger.Info("generation succeeded", "session_id", sessionID, "attempts", ev.Attempts)
		return jsonResponse(http.StatusOK, corrID, generateResponse{
			SessionID: sessionID,
			Events:    payloads,
			Content:   ev.Content,
		}), nil
	case usecase.Failure:
		code := ev.Code()
		logger.Error("generation failed", "session_id", sessionID, "kind", ev.Kind, "attempts", ev.Attempts, "err", ev.Cause)
		return jsonResponse(statusForCode(code), corrID, errorResponse{
			Error:   string(code),
			Message: ev.Error,
			Events:  payloads,
		}), nil
	default:
		// Only reachable if a stream closes without its terminal event.
		logger.Error("generation stream ended without a result", "session_id", sessionID, "ctx_err", ctx.Err())
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{
			Error:   string(usecase.ErrorInternal),
			Message: "generation ended without a result",
			Events:  payloads,
		}), nil
	}
}

func mapError(err error) (int, usecase.ErrorCode) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return statusForCode(ucErr.Code), ucErr.Code
	}
	return http.StatusInternalServerError, usecase.ErrorInternal
}

func reasonOf(err error) string {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return ucErr.Reason
	}
	return ""
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	case usecase.ErrorSchemaUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// correlationID echoes the caller's correlation id, matching the header name
// case-insensitively, or mints a new one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}
