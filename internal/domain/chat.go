package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is the provider-agnostic chat message shape sent to the
// completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one prior conversation turn supplied by the caller. Turns are read
// only; their order is chronological.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the single request shape issued per generation attempt.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []ChatMessage
}
