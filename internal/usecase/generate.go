package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"a2ui-agent/internal/domain"
)

const (
	defaultMaxTokens   = 4096
	defaultMaxAttempts = 2
	previewLength      = 200
)

// Completer is the outbound completion service. One call per attempt.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// SchemaValidator validates a JSON-encoded UI description. Available reports
// false when the schema failed to load.
type SchemaValidator interface {
	Available() bool
	Validate(instance []byte) error
}

type GeneratorConfig struct {
	Model               string
	MaxTokens           int
	MaxAttempts         int
	SystemPrompt        string
	UseStructuredOutput bool
	// BaseURL is the public URL of the agent. It is not used by generation.
	BaseURL string
}

type GeneratorOption func(*Generator)

func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// Generator turns a query into a validated UI description by calling the
// completion service until a response passes extraction and validation or
// the attempt budget runs out.
type Generator struct {
	llm       Completer
	validator SchemaValidator
	cfg       GeneratorConfig
	logger    *slog.Logger
}

func NewGenerator(llm Completer, validator SchemaValidator, cfg GeneratorConfig, opts ...GeneratorOption) (*Generator, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt(DefaultExamples())
	}
	g := &Generator{
		llm:       llm,
		validator: validator,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the effective configuration after defaults were applied.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

type GenerateInput struct {
	Query     string
	SessionID string
	History   []domain.Turn
}

// Generate starts one invocation and returns its event stream. The stream
// carries zero or more Progress events followed by exactly one Success or
// Failure, after which it is closed. Cancelling ctx stops further attempts;
// the terminal event is still emitted, so callers must read until close.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) <-chan Event {
	sink := newEventSink(ctx)
	r := &run{
		g:      g,
		in:     in,
		logger: g.logger.With("session_id", in.SessionID),
	}
	go func() {
		defer sink.closeIfOpen()
		r.drive(ctx, sink)
	}()
	return sink.events()
}

type state int

const (
	stateStart state = iota
	stateAttempting
	// stateRetryPrep appends the rejected response and a correction.
	stateRetryPrep
	// stateResend retries after a transport failure with unchanged messages.
	stateResend
	stateValidated
	stateExhausted
	stateDone
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateAttempting:
		return "attempting"
	case stateRetryPrep:
		return "retry_prep"
	case stateResend:
		return "resend"
	case stateValidated:
		return "validated"
	case stateExhausted:
		return "exhausted"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// run is the private, per-invocation state of the generation loop.
type run struct {
	g      *Generator
	in     GenerateInput
	logger *slog.Logger

	messages []domain.ChatMessage
	attempt  int

	response    string
	errorDetail string
	failure     FailureKind
	lastErr     error
	content     string
}

func (r *run) drive(ctx context.Context, sink *eventSink) {
	for st := stateStart; st != stateDone; {
		st = r.step(ctx, st, sink)
	}
}

func (r *run) step(ctx context.Context, st state, sink *eventSink) state {
	switch st {
	case stateStart:
		return r.start(sink)
	case stateAttempting:
		return r.attemptOnce(ctx, sink)
	case stateRetryPrep:
		r.messages = append(r.messages,
			domain.ChatMessage{Role: domain.RoleAssistant, Content: r.response},
			domain.ChatMessage{Role: domain.RoleUser, Content: correctionPrompt(r.errorDetail, r.in.Query)},
		)
		return stateAttempting
	case stateResend:
		return stateAttempting
	case stateValidated:
		sink.finish(Success{Content: r.content, Attempts: r.attempt})
		return stateDone
	case stateExhausted:
		r.logger.Error("all generation attempts exhausted", "attempts", r.attempt, "last_failure", r.failure)
		msg := exhaustedMessage
		if r.failure == KindTransport && r.lastErr != nil {
			msg = "API error: " + r.lastErr.Error()
		}
		sink.finish(Failure{Kind: r.failure, Error: msg, Attempts: r.attempt, Cause: r.lastErr})
		return stateDone
	default:
		return stateDone
	}
}

func (r *run) start(sink *eventSink) state {
	if r.g.cfg.UseStructuredOutput && (r.g.validator == nil || !r.g.validator.Available()) {
		r.logger.Error("structured output requested but schema is not loaded")
		sink.finish(Failure{Kind: KindFatalPrecondition, Error: schemaUnavailableMessage})
		return stateDone
	}

	var dropped int
	r.messages, dropped = buildMessages(r.in.Query, r.in.History)
	if dropped > 0 {
		r.logger.Warn("dropped history turns with unknown role or empty content", "dropped", dropped)
	}
	return stateAttempting
}

func (r *run) attemptOnce(ctx context.Context, sink *eventSink) state {
	if err := ctx.Err(); err != nil {
		r.logger.Info("generation cancelled by caller", "attempt", r.attempt)
		r.failure = KindTransport
		r.lastErr = err
		return stateExhausted
	}
	r.attempt++
	r.logger.Info("generation attempt",
		"attempt", r.attempt,
		"max_attempts", r.g.cfg.MaxAttempts,
		"history_turns", len(r.in.History),
	)
	sink.progress(processingMessage)

	text, err := r.g.llm.Complete(ctx, domain.CompletionRequest{
		Model:     r.g.cfg.Model,
		MaxTokens: r.g.cfg.MaxTokens,
		System:    r.g.cfg.SystemPrompt,
		Messages:  slices.Clone(r.messages),
	})
	if err != nil {
		r.logger.Error("completion call failed", "attempt", r.attempt, "err", err)
		r.failure = KindTransport
		r.lastErr = err
		if r.attemptsLeft() {
			return stateResend
		}
		return stateExhausted
	}
	r.logger.Info("completion response", "attempt", r.attempt, "preview", preview(text))

	if !r.g.cfg.UseStructuredOutput {
		r.content = text
		return stateValidated
	}

	x, err := extractUI(text)
	if err != nil {
		detail := "Response missing " + Delimiter + " delimiter or valid JSON array"
		var xe *ExtractError
		if errors.As(err, &xe) {
			detail = xe.Detail()
		}
		r.logger.Warn("extraction failed", "attempt", r.attempt, "err", err)
		return r.reject(KindExtraction, text, detail, err)
	}

	payload := x.Payload()
	if err := r.g.validator.Validate(payload); err != nil {
		r.logger.Warn("schema validation failed", "attempt", r.attempt, "err", err)
		return r.reject(KindValidation, text, "Schema error: "+err.Error(), err)
	}

	r.logger.Info("A2UI JSON validated", "attempt", r.attempt, "messages", len(x.Items))
	r.content = x.Render()
	return stateValidated
}

func (r *run) reject(kind FailureKind, response, detail string, cause error) state {
	r.failure = kind
	r.lastErr = cause
	r.response = response
	r.errorDetail = detail
	if r.attemptsLeft() {
		return stateRetryPrep
	}
	return stateExhausted
}

func (r *run) attemptsLeft() bool {
	return r.attempt < r.g.cfg.MaxAttempts
}

func preview(s string) string {
	if len(s) <= previewLength {
		return s
	}
	return s[:previewLength]
}
