package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/upb/manual-share/services/providers"
)

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: "https://example.com/"})

	if adapter.Name() != "anthropic" {
		t.Errorf("Name() = %s, want anthropic", adapter.Name())
	}
	if adapter.config.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", adapter.config.BaseURL)
	}
	if adapter.config.DefaultModel != defaultModel {
		t.Errorf("DefaultModel = %s, want %s", adapter.config.DefaultModel, defaultModel)
	}

	adapter = NewAdapter(providers.ProviderConfig{})
	if adapter.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", adapter.config.BaseURL, defaultBaseURL)
	}
}

func TestAdapter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("anthropic-version = %s", r.Header.Get("anthropic-version"))
		}

		body, _ := io.ReadAll(r.Body)
		var req MessagesRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if req.MaxTokens != 2048 {
			t.Errorf("max_tokens = %d, want 2048", req.MaxTokens)
		}
		if req.Model != "claude-test" {
			t.Errorf("model = %s, want claude-test", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "{\"questions\":"},
				{"type": "tool_use"},
				{"type": "text", "text": "[]}"}
			],
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "claude-test",
	})

	resp, err := adapter.Complete(context.Background(), providers.UserPrompt("hello", 2048))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != `{"questions":[]}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("Provider = %s", resp.Provider)
	}
}

func TestAdapter_ErrorResponse(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantRetryable bool
	}{
		{
			name:     "invalid request",
			status:   http.StatusBadRequest,
			body:     `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`,
			wantCode: "invalid_request_error",
		},
		{
			name:          "overloaded",
			status:        529,
			body:          `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantCode:      "overloaded_error",
			wantRetryable: true,
		},
		{
			name:          "non json body",
			status:        http.StatusBadGateway,
			body:          `<html>bad gateway</html>`,
			wantCode:      "UNKNOWN_ERROR",
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := NewAdapter(providers.ProviderConfig{APIKey: "k", BaseURL: server.URL})
			_, err := adapter.Complete(context.Background(), providers.UserPrompt("hi", 10))
			if err == nil {
				t.Fatal("expected error")
			}

			provErr, ok := err.(*providers.ProviderError)
			if !ok {
				t.Fatalf("error type = %T, want *providers.ProviderError", err)
			}
			if provErr.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", provErr.Code, tt.wantCode)
			}
			if provErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", provErr.StatusCode, tt.status)
			}
			if provErr.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", provErr.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestAdapter_Retry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	t.Run("no retries by default", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		adapter := NewAdapter(providers.ProviderConfig{APIKey: "k", BaseURL: server.URL})
		if _, err := adapter.Complete(context.Background(), providers.UserPrompt("hi", 10)); err == nil {
			t.Fatal("expected error without retries")
		}
		if atomic.LoadInt32(&calls) != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retries 5xx when configured", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		adapter := NewAdapter(providers.ProviderConfig{
			APIKey:     "k",
			BaseURL:    server.URL,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		})
		resp, err := adapter.Complete(context.Background(), providers.UserPrompt("hi", 10))
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.Text != "ok" {
			t.Errorf("Text = %q", resp.Text)
		}
		if atomic.LoadInt32(&calls) != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})
}

func TestAdapter_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	adapter := NewAdapter(providers.ProviderConfig{APIKey: "k", BaseURL: url})
	_, err := adapter.Complete(context.Background(), providers.UserPrompt("hi", 10))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !providers.IsRetryable(err) {
		t.Error("transport errors should be retryable")
	}
}
