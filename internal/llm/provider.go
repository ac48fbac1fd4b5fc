package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r may appear in a client transcript.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one transcript entry forwarded upstream.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes one streaming completion.
type Request struct {
	Model       string
	Instruction string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Stream yields text deltas in arrival order. Recv returns io.EOF once the
// upstream has finished.
type Stream interface {
	Recv() (string, error)
	Close() error
	// Ignored is the number of upstream events that carried no text.
	Ignored() int
}

// Provider opens streaming completions against one upstream API. Any
// connection or status failure is returned by Stream, before the first delta.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// NewProvider creates a provider for kind ("openai" or "anthropic").
func NewProvider(kind, apiKey, baseURL string, httpClient *http.Client) (Provider, error) {
	switch kind {
	case "openai":
		return NewOpenAIProvider(apiKey, baseURL, httpClient), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, baseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", kind)
	}
}

// UpstreamError is a non-success answer from the upstream API.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s api status %d: %s", e.Provider, e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
