package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))
}

func TestChatCompletionSendsRequestAndParsesResponse(t *testing.T) {
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization %q", auth)
		}
		if errDecode := json.NewDecoder(r.Body).Decode(&got); errDecode != nil {
			t.Errorf("decode body: %v", errDecode)
		}
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"model": "gpt-3.5-turbo-0125",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "A---B"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`)
	})

	temperature := 0.5
	resp, err := p.ChatCompletion(context.Background(), Request{
		Model:       "gpt-3.5-turbo",
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		Temperature: &temperature,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}

	if resp.Content != "A---B" || resp.Model != "gpt-3.5-turbo-0125" || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if want := (Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}); resp.Usage != want {
		t.Fatalf("expected usage %+v, got %+v", want, resp.Usage)
	}

	if got["model"] != "gpt-3.5-turbo" || got["temperature"] != 0.5 || got["max_tokens"] != float64(1000) {
		t.Fatalf("unexpected request payload %v", got)
	}
	if messages, ok := got["messages"].([]any); !ok || len(messages) != 2 {
		t.Fatalf("expected two messages, got %v", got["messages"])
	}
}

func TestChatCompletionMapsUpstreamError(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "Rate limit reached", "type": "requests"}}`)
	})

	_, err := p.ChatCompletion(context.Background(), Request{Model: "gpt-3.5-turbo"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "Rate limit reached" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "Rate limit reached") {
		t.Fatalf("expected upstream message in error, got %q", err.Error())
	}
}

func TestChatCompletionNonJSONErrorBody(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.ChatCompletion(context.Background(), Request{Model: "gpt-3.5-turbo"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("expected status text message, got %q", apiErr.Message)
	}
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": "x", "choices": []}`)
	})

	if _, err := p.ChatCompletion(context.Background(), Request{Model: "gpt-3.5-turbo"}); !errors.Is(err, ErrEmptyChoices) {
		t.Fatalf("expected ErrEmptyChoices, got %v", err)
	}
}

func TestChatCompletionHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.ChatCompletion(ctx, Request{Model: "gpt-3.5-turbo"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
