package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

func TestCompleteSendsSystemAndJSONMode(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":" {\"status\":\"approved\"} "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1", Model: "gpt-4o-mini"}, nil)
	got, err := client.Complete(context.Background(), domain.CompletionRequest{
		System:      "be careful",
		User:        "review this",
		Temperature: 0.3,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"status":"approved"}` {
		t.Fatalf("unexpected content %q", got)
	}

	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", captured["messages"])
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be careful" {
		t.Fatalf("unexpected system message %v", first)
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", captured["response_format"])
	}
	if captured["max_tokens"] != float64(2000) {
		t.Fatalf("expected max_tokens 2000, got %v", captured["max_tokens"])
	}
}

func TestCompleteMarksServerErrorsTemporary(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Policy{}, resilience.Hooks{})
	client := New(Config{APIKey: "k", BaseURL: server.URL + "/v1", Model: "gpt-4o-mini"}, exec)
	_, err := client.Complete(context.Background(), domain.CompletionRequest{User: "x"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single provider call, got %d", calls)
	}
}

func TestCompleteKeepsAuthErrorsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "bad", BaseURL: server.URL + "/v1", Model: "gpt-4o-mini"}, nil)
	_, err := client.Complete(context.Background(), domain.CompletionRequest{User: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("401 must not be temporary: %v", err)
	}
}

func TestChatRequestUsesCompletionTokensForReasoningModels(t *testing.T) {
	client := New(Config{APIKey: "k", Model: "o3-mini"}, nil)
	req := client.chatRequest(domain.CompletionRequest{User: "x", MaxTokens: 1500, Temperature: 0.2})
	if req.MaxCompletionTokens != 1500 || req.MaxTokens != 0 {
		t.Fatalf("unexpected token settings: %+v", req)
	}
}
