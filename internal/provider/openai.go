package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultOpenAIBaseURL is the public OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI is an OpenAI-compatible chat-completion adapter.
type OpenAI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Provider = (*OpenAI)(nil)

// Option configures the OpenAI adapter.
type Option func(*OpenAI)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *OpenAI) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithBaseURL points the adapter at another OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(p *OpenAI) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			p.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewOpenAI creates an adapter authenticated with apiKey.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	p := &OpenAI{
		baseURL:    DefaultOpenAIBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// apiRequest is the chat completion request format.
type apiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// apiResponse is the chat completion response format.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// ChatCompletion sends one non-streaming completion request.
func (p *OpenAI) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	body, errMarshal := json.Marshal(apiRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if errMarshal != nil {
		return nil, fmt.Errorf("provider: encode request: %w", errMarshal)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if errReq != nil {
		return nil, fmt.Errorf("provider: create request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, errDo := p.httpClient.Do(httpReq)
	if errDo != nil {
		return nil, fmt.Errorf("provider: do request: %w", errDo)
	}
	defer httpResp.Body.Close()

	if errStatus := mapHTTPError(httpResp); errStatus != nil {
		return nil, errStatus
	}

	var resp apiResponse
	if errDecode := json.NewDecoder(httpResp.Body).Decode(&resp); errDecode != nil {
		return nil, fmt.Errorf("provider: decode response: %w", errDecode)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyChoices
	}

	return &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// mapHTTPError converts non-2xx responses into *APIError using the upstream error object.
func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Type:       gjson.GetBytes(raw, "error.type").String(),
		Message:    gjson.GetBytes(raw, "error.message").String(),
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
