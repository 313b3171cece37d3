package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

const maxBodyBytes = 1 << 20

// AgentCard describes the agent to discovery clients.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	Model              string       `json:"model"`
	StructuredOutput   bool         `json:"structuredOutput"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Capabilities       Capabilities `json:"capabilities"`
}

type Capabilities struct {
	Streaming bool `json:"streaming"`
}

var supportedContentTypes = []string{"text", "text/plain"}

func NewAgentCard(baseURL, model string, structured bool) AgentCard {
	return AgentCard{
		Name:               "a2ui-agent",
		Description:        "Generates A2UI interface descriptions from natural-language requests.",
		URL:                baseURL,
		Version:            "1.0.0",
		Model:              model,
		StructuredOutput:   structured,
		DefaultInputModes:  supportedContentTypes,
		DefaultOutputModes: supportedContentTypes,
		Capabilities:       Capabilities{Streaming: true},
	}
}

// NewMux routes the local server: buffered generation, live streaming and
// the agent card.
func NewMux(h *Handler, stream *StreamHandler, card AgentCard) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", h.ServeHTTP)
	mux.Handle("GET /stream", stream)
	mux.HandleFunc("GET /.well-known/agent.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(card)
	})
	return mux
}

// ServeHTTP adapts a plain HTTP request to Handle so the local server and
// Lambda share one code path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
