// Package schema loads the A2UI message schema and validates generated UI
// descriptions against it.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed a2ui_message.json
var defaultSource []byte

// ErrUnavailable is returned when validation is requested from a schema that
// failed to load.
var ErrUnavailable = errors.New("schema: unavailable")

// ValidationError carries the human-readable reason an instance does not
// match the schema.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Schema is a compiled "array of A2UI messages" schema. A nil *Schema is the
// unusable state left behind by a failed load.
type Schema struct {
	compiled *gojsonschema.Schema
}

// DefaultSource returns the embedded single-message schema definition.
func DefaultSource() []byte {
	out := make([]byte, len(defaultSource))
	copy(out, defaultSource)
	return out
}

// Load parses source as the schema of one UI message and compiles the array
// schema whose items must match it.
func Load(source []byte) (*Schema, error) {
	var single map[string]any
	if err := json.Unmarshal(source, &single); err != nil {
		return nil, fmt.Errorf("schema: parse message schema: %w", err)
	}
	if single == nil {
		return nil, errors.New("schema: message schema must be a JSON object")
	}

	wrapped := map[string]any{
		"type":  "array",
		"items": single,
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(wrapped))
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// LoadOrDegrade loads source and logs instead of failing. The returned schema
// is nil when loading failed.
func LoadOrDegrade(source []byte, logger *slog.Logger) *Schema {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := Load(source)
	if err != nil {
		logger.Error("failed to load A2UI schema, validation disabled", "err", err)
		return nil
	}
	logger.Info("A2UI schema loaded for validation")
	return s
}

// Available reports whether the schema can be used for validation.
func (s *Schema) Available() bool {
	return s != nil && s.compiled != nil
}

// Validate checks a JSON-encoded instance against the schema.
func (s *Schema) Validate(instance []byte) error {
	if !s.Available() {
		return ErrUnavailable
	}
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(instance))
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("instance is not valid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return &ValidationError{Message: strings.Join(msgs, "; ")}
}
