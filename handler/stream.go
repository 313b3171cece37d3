package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"a2ui-agent/internal/usecase"
)

const (
	requestReadTimeout = 30 * time.Second
	writeTimeout       = 10 * time.Second
	maxFrameBytes      = 1 << 20
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves live generation over a WebSocket. The client sends one
// request frame; every event is written back as its own JSON text frame.
type StreamHandler struct {
	svc    Service
	logger *slog.Logger
}

func NewStreamHandler(svc Service, logger *slog.Logger) (*StreamHandler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{svc: svc, logger: logger}, nil
}

func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	corrID := correlationID(map[string]string{correlationHeader: r.Header.Get(correlationHeader)})
	logger := s.logger.With("correlation_id", corrID)

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Warn("failed to read request frame", "err", err)
		return
	}

	var body generateRequest
	if err := json.Unmarshal(data, &body); err != nil {
		s.writeError(conn, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "request frame must be a JSON object"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID, stream, err := s.svc.Start(ctx, body.toUseCase())
	if err != nil {
		_, code := mapError(err)
		logger.Warn("generation rejected", "code", code, "err", err)
		s.writeError(conn, errorResponse{Error: string(code), Message: reasonOf(err)})
		return
	}
	logger = logger.With("session_id", sessionID)

	for ev := range stream {
		frame, err := usecase.MarshalEvent(ev)
		if err != nil {
			logger.Error("failed to encode event", "err", err)
			cancel()
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Warn("client went away", "err", err)
			cancel()
			continue
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (s *StreamHandler) writeError(conn *websocket.Conn, resp errorResponse) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("failed to write error frame", "err", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}
