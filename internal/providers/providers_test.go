package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockClient(t *testing.T) {
	ctx := context.Background()

	t.Run("static response", func(t *testing.T) {
		c := NewMockClient()
		c.ResponseText = `[{"surfaceForm":"a","proposedCode":"A.1","confidence":0.8}]`
		res, err := c.Chat(ctx, &ChatRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hello"}}})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !res.Success || res.Content != c.ResponseText || res.ModelUsed != "m" {
			t.Errorf("Chat() = %+v", res)
		}
		if c.RequestCount() != 1 || len(c.Requests()) != 1 {
			t.Errorf("RequestCount() = %d", c.RequestCount())
		}
	})

	t.Run("responder", func(t *testing.T) {
		c := NewMockClient()
		c.Responder = func(req *ChatRequest) (string, error) { return req.Messages[0].Content + "!", nil }
		res, err := c.Chat(ctx, &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if err != nil || res.Content != "x!" {
			t.Errorf("Chat() = %v, %v", res, err)
		}
	})

	t.Run("fail after", func(t *testing.T) {
		c := NewMockClient()
		c.FailAfter = 1
		if _, err := c.Chat(ctx, &ChatRequest{}); err != nil {
			t.Fatalf("first Chat() error = %v", err)
		}
		res, err := c.Chat(ctx, &ChatRequest{})
		if err == nil || res.Success {
			t.Errorf("second Chat() should fail")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = time.Second
		_, err := c.Chat(ctx, &ChatRequest{Timeout: 10 * time.Millisecond})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Chat() error = %v, want deadline exceeded", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("consumes and refills", func(t *testing.T) {
		now := time.Unix(0, 0)
		r := NewRateLimiter(2)
		r.now = func() time.Time { return now }
		r.lastRefill = now

		if !r.TryConsume() || !r.TryConsume() {
			t.Fatal("expected two tokens")
		}
		if r.TryConsume() {
			t.Fatal("expected empty bucket")
		}
		now = now.Add(30 * time.Second)
		if !r.TryConsume() {
			t.Fatal("expected a refilled token after 30s at 2 rpm")
		}
		if got := r.Status().TotalConsumed; got != 3 {
			t.Errorf("TotalConsumed = %d, want 3", got)
		}
	})

	t.Run("429 blocks until retry after", func(t *testing.T) {
		now := time.Unix(0, 0)
		r := NewRateLimiter(600)
		r.now = func() time.Time { return now }
		r.lastRefill = now

		r.Record429(5 * time.Second)
		if r.TryConsume() {
			t.Fatal("bucket should be closed after 429")
		}
		now = now.Add(6 * time.Second)
		if !r.TryConsume() {
			t.Fatal("bucket should reopen after retry-after")
		}
		if r.Status().Last429Time.IsZero() {
			t.Error("Last429Time not recorded")
		}
	})

	t.Run("wait honors context", func(t *testing.T) {
		r := NewRateLimiter(1)
		if err := r.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v", err)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}

func TestOpenAIClientChat(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "[]"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	c := NewOpenRouterClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, DefaultModel: "gpt-test"})
	res, err := c.Chat(context.Background(), &ChatRequest{
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !res.Success || res.Content != "[]" || res.Provider != OpenRouterName {
		t.Errorf("Chat() = %+v", res)
	}
	if res.PromptTokens != 12 || res.CompletionTokens != 3 {
		t.Errorf("tokens = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
	if got, _ := payload["model"].(string); got != "gpt-test" {
		t.Errorf("model = %q", got)
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", payload["messages"])
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v", role)
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-test", "choices": []}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL, DefaultModel: "gpt-test"})
	res, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat() error = %v, want nil for an empty completion", err)
	}
	if res.Content != "" || res.ErrorType != "empty_response" {
		t.Errorf("Chat() = %+v, want empty content tagged empty_response", res)
	}
	if _, err := ParseJSON(res.Content); err == nil {
		t.Error("ParseJSON(empty) error = nil")
	}
}

func TestOpenAIClientRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	res, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("Chat() error = %v, want RateLimitError", err)
	}
	if rle.RetryAfter != 3*time.Second || res.ErrorType != "rate_limited" {
		t.Errorf("RetryAfter = %v, ErrorType = %q", rle.RetryAfter, res.ErrorType)
	}
	if c.Limiter().Status().Last429Time.IsZero() {
		t.Error("limiter did not record 429")
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: `[1,2]`, want: `[1,2]`},
		{name: "fenced", in: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "commentary", in: "Here you go: [1] done", want: `[1]`},
		{name: "object", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "garbage", in: "no json", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("ParseJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	s := MustCompileSchema(json.RawMessage(`{
		"type": "array",
		"items": {"type": "object", "required": ["n"], "properties": {"n": {"type": "number", "maximum": 1}}}
	}`))
	if err := s.Validate(json.RawMessage(`[{"n": 0.5}]`)); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := s.Validate(json.RawMessage(`[{"n": 2}]`)); err == nil {
		t.Error("Validate() expected bound violation")
	}
	if err := s.Validate(json.RawMessage(`{"n": 0.5}`)); err == nil {
		t.Error("Validate() expected type violation for object")
	}
}
