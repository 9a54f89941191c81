package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func okResponse(content string, promptTokens, completionTokens int) string {
	return fmt.Sprintf(`{
		"choices": [{"message": {"role": "assistant", "content": %q}}],
		"usage": {"prompt_tokens": %d, "completion_tokens": %d}
	}`, content, promptTokens, completionTokens)
}

func TestChat_Success(t *testing.T) {
	var gotAuth, gotPath string
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		fmt.Fprint(w, okResponse("hello", 100, 50))
	})

	c := NewClient(Config{
		BaseURL:             srv.URL,
		APIKey:              "sk-test",
		Model:               "test-model",
		CostPer1KPrompt:     0.01,
		CostPer1KCompletion: 0.03,
	})
	content, usage, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if content != "hello" {
		t.Errorf("content = %q", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if usage.PromptTokens != 100 || usage.CompletionTokens != 50 {
		t.Errorf("usage = %+v", usage)
	}
	wantCost := 100.0/1000*0.01 + 50.0/1000*0.03
	if usage.Cost != wantCost {
		t.Errorf("Cost = %f, want %f", usage.Cost, wantCost)
	}
}

func TestChat_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, okResponse("recovered", 1, 1))
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 2})
	content, _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if content != "recovered" || calls != 2 {
		t.Errorf("content = %q, calls = %d", content, calls)
	}
}

func TestChat_DoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "bad request body"}`)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 3})
	_, _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "bad request body") {
		t.Errorf("Body = %q", apiErr.Body)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls)
	}
}

func TestChat_RateLimitExhaustsRetries(t *testing.T) {
	calls := 0
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 2})
	_, _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("err = %v, want wrapped 429 APIError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestChat_TimeoutReturnsErrTimeout(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, okResponse("too late", 1, 1))
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 1, Timeout: 50 * time.Millisecond})
	_, _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": [], "usage": {"prompt_tokens": 1, "completion_tokens": 0}}`)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 1})
	_, _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError for empty choices", err)
	}
}
