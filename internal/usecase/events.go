package usecase

import (
	"context"
	"encoding/json"
)

// Event is one item of a generation stream: a Progress notification or one of
// the terminal outcomes Success and Failure.
type Event interface {
	Terminal() bool
	isEvent()
}

// Progress is a non-terminal, purely informational event.
type Progress struct {
	Message string
}

// Success terminates a stream with generated content.
type Success struct {
	Content  string
	Attempts int
}

// Failure terminates a stream with an error message.
type Failure struct {
	Kind     FailureKind
	Error    string
	Attempts int
	// Cause is the last underlying error, if any. It is not part of the
	// wire shape.
	Cause error
}

// Code is the request-level error code for the failure.
func (f Failure) Code() ErrorCode {
	if f.Kind == KindTransport {
		if status, ok := upstreamStatusCode(f.Cause); ok && status == 429 {
			return ErrorRateLimited
		}
	}
	return f.Kind.Code()
}

func (Progress) Terminal() bool { return false }
func (Success) Terminal() bool  { return true }
func (Failure) Terminal() bool  { return true }

func (Progress) isEvent() {}
func (Success) isEvent()  {}
func (Failure) isEvent()  {}

// EventPayload is the wire shape of an event.
type EventPayload struct {
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON writes exactly the field its shape carries: message while
// in progress, error on failure, content otherwise. Content is written even
// when empty.
func (p EventPayload) MarshalJSON() ([]byte, error) {
	switch {
	case !p.Done:
		return json.Marshal(struct {
			Done    bool   `json:"done"`
			Message string `json:"message"`
		}{Done: false, Message: p.Message})
	case p.Error != "":
		return json.Marshal(struct {
			Done  bool   `json:"done"`
			Error string `json:"error"`
		}{Done: true, Error: p.Error})
	default:
		return json.Marshal(struct {
			Done    bool   `json:"done"`
			Content string `json:"content"`
		}{Done: true, Content: p.Content})
	}
}

// Payload converts an event to its wire shape.
func Payload(ev Event) EventPayload {
	switch e := ev.(type) {
	case Progress:
		return EventPayload{Done: false, Message: e.Message}
	case Success:
		return EventPayload{Done: true, Content: e.Content}
	case Failure:
		return EventPayload{Done: true, Error: e.Error}
	default:
		return EventPayload{}
	}
}

// MarshalEvent encodes an event in its wire shape.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(Payload(ev))
}

// Collect drains a stream and returns every event in emission order.
func Collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

// eventSink owns the producer side of a stream. It emits at most one terminal
// event, always last, and closes the channel right after it. Progress is
// dropped once ctx is done; the terminal event is always delivered, so the
// consumer must drain the channel until it is closed.
type eventSink struct {
	ctx  context.Context
	ch   chan Event
	done bool
}

func newEventSink(ctx context.Context) *eventSink {
	return &eventSink{ctx: ctx, ch: make(chan Event)}
}

func (s *eventSink) events() <-chan Event {
	return s.ch
}

func (s *eventSink) progress(msg string) {
	if s.done || s.ctx.Err() != nil {
		return
	}
	select {
	case s.ch <- Progress{Message: msg}:
	case <-s.ctx.Done():
	}
}

func (s *eventSink) finish(ev Event) {
	if s.done || !ev.Terminal() {
		return
	}
	s.done = true
	s.ch <- ev
	close(s.ch)
}

// closeIfOpen guarantees the channel is closed even if the producer returns
// without a terminal event (only possible on a programming error).
func (s *eventSink) closeIfOpen() {
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
