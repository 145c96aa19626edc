// Package provider calls the upstream chat-completion API.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyChoices indicates the upstream returned no completion choice.
var ErrEmptyChoices = errors.New("provider: empty choices in response")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a non-streaming chat-completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// Usage holds the token counters reported by the upstream.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is the generated text plus usage counters.
type Response struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// Provider is a black-box chat-completion API.
type Provider interface {
	ChatCompletion(ctx context.Context, req Request) (*Response, error)
}

// APIError is a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("provider: status %d: %s", e.StatusCode, e.Message)
}
