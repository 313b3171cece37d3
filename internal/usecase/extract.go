package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Delimiter separates the prose sentence from the A2UI JSON payload in a model
// response.
const Delimiter = "---a2ui_JSON---"

const fenceMarker = "```"

type ExtractReason string

const (
	ReasonDelimiterMissing ExtractReason = "delimiter_missing"
	ReasonMalformedJSON    ExtractReason = "malformed_json"
	ReasonNotArray         ExtractReason = "not_non_empty_array"
)

// ExtractError explains why a response carried no usable UI payload.
type ExtractError struct {
	Reason ExtractReason
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract: %s", e.Reason)
	}
	return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Detail is the reason phrased for a corrective prompt.
func (e *ExtractError) Detail() string {
	switch e.Reason {
	case ReasonDelimiterMissing:
		return "Response missing " + Delimiter + " delimiter."
	case ReasonMalformedJSON:
		return fmt.Sprintf("The text after %s is not valid JSON: %v.", Delimiter, e.Err)
	case ReasonNotArray:
		return fmt.Sprintf("The JSON after %s must be a non-empty array.", Delimiter)
	default:
		return "Response missing " + Delimiter + " delimiter or valid JSON array."
	}
}

// Extraction is a successfully parsed response.
type Extraction struct {
	Prose string
	Items []json.RawMessage

	payload []byte
}

// Payload returns the compact JSON encoding of the extracted array. Member
// order inside each message is preserved.
func (x Extraction) Payload() []byte {
	return x.payload
}

// Render formats the extraction in the downstream wire convention.
func (x Extraction) Render() string {
	return renderWire(x.Prose, x.payload)
}

func renderWire(prose string, payload []byte) string {
	return prose + "\n" + Delimiter + "\n" + string(payload)
}

// extractUI splits a model response at the first delimiter and parses the
// remainder as a non-empty JSON array.
func extractUI(text string) (Extraction, error) {
	prose, payload, found := strings.Cut(text, Delimiter)
	if !found {
		return Extraction{}, &ExtractError{Reason: ReasonDelimiterMissing}
	}

	payload = stripFences(strings.TrimSpace(payload))

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(payload)); err != nil {
		return Extraction{}, &ExtractError{Reason: ReasonMalformedJSON, Err: err}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(compact.Bytes(), &items); err != nil || len(items) == 0 {
		return Extraction{}, &ExtractError{Reason: ReasonNotArray, Err: err}
	}

	return Extraction{Prose: strings.TrimSpace(prose), Items: items, payload: compact.Bytes()}, nil
}

// stripFences drops every line that is a code-fence marker once the payload
// opens with one. Lines are matched after trimming, anywhere in the payload.
func stripFences(payload string) string {
	if !strings.HasPrefix(payload, fenceMarker) {
		return payload
	}
	lines := strings.Split(payload, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), fenceMarker) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
