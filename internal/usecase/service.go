package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"a2ui-agent/internal/domain"
)

const defaultMaxQuery = 4000

// Streamer starts one generation invocation. *Generator satisfies it.
type Streamer interface {
	Generate(ctx context.Context, in GenerateInput) <-chan Event
}

// Recorder persists successful generations per session.
type Recorder interface {
	GetSessionGenerationCount(ctx context.Context, sessionID string) (int, error)
	SaveGeneration(ctx context.Context, sessionID, query, content string, attempts, generations int) error
}

type GenerateRequest struct {
	Query     string
	SessionID string
	History   []domain.Turn
}

type ServiceOption func(*GenerateService)

// WithRecorder enables persistence of successful generations.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *GenerateService) {
		s.recorder = r
	}
}

func WithMaxQueryLength(n int) ServiceOption {
	return func(s *GenerateService) {
		if n > 0 {
			s.maxQueryLen = n
		}
	}
}

// WithMaxSessionGenerations caps successful generations per session. Zero
// disables the cap. The cap needs a recorder.
func WithMaxSessionGenerations(n int) ServiceOption {
	return func(s *GenerateService) {
		if n >= 0 {
			s.maxSessionGenerations = n
		}
	}
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *GenerateService) {
		if l != nil {
			s.logger = l
		}
	}
}

// GenerateService validates inbound requests, runs the generation stream and
// records its successful outcome.
type GenerateService struct {
	gen                   Streamer
	recorder              Recorder
	maxQueryLen           int
	maxSessionGenerations int
	logger                *slog.Logger
}

func NewGenerateService(gen Streamer, opts ...ServiceOption) (*GenerateService, error) {
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	s := &GenerateService{
		gen:         gen,
		maxQueryLen: defaultMaxQuery,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start validates req and begins generating. It returns the effective session
// id and the event stream; request-level problems are returned as *Error
// before any event is produced. The stream must be read until it is closed.
func (s *GenerateService) Start(ctx context.Context, req GenerateRequest) (string, <-chan Event, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", nil, newError(ErrorInvalidInput, "empty_query", nil)
	}
	if len(query) > s.maxQueryLen {
		return "", nil, newError(ErrorInvalidInput, "query_too_long", nil)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	existing := 0
	if sessionID == "" {
		sessionID = newUUID()
	} else if s.recorder != nil {
		count, err := s.recorder.GetSessionGenerationCount(ctx, sessionID)
		if err != nil {
			return "", nil, newError(ErrorInternal, "dynamodb_generation_count_error", err)
		}
		existing = count
		if s.maxSessionGenerations > 0 && existing >= s.maxSessionGenerations {
			return "", nil, newError(ErrorInvalidInput, "session_generation_limit", nil)
		}
	}

	events := s.gen.Generate(ctx, GenerateInput{
		Query:     query,
		SessionID: sessionID,
		History:   req.History,
	})

	out := make(chan Event)
	go func() {
		defer close(out)
		// Drain every event so the generator can always deliver its terminal one.
		for ev := range events {
			if success, ok := ev.(Success); ok {
				s.record(ctx, sessionID, query, success, existing+1)
			}
			if ev.Terminal() {
				out <- ev
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()
	return sessionID, out, nil
}

func (s *GenerateService) record(ctx context.Context, sessionID, query string, ev Success, generations int) {
	if s.recorder == nil {
		return
	}
	// A generation that succeeded is recorded even if the caller went away.
	if err := s.recorder.SaveGeneration(context.WithoutCancel(ctx), sessionID, query, ev.Content, ev.Attempts, generations); err != nil {
		s.logger.Error("failed to record generation", "session_id", sessionID, "err", err)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
