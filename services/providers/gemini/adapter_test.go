package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/upb/manual-share/services/providers"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewAdapter(context.Background(), providers.ProviderConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "gemini-test",
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return adapter
}

func TestAdapter_Complete(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("x-goog-api-key = %s", r.Header.Get("x-goog-api-key"))
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		genConfig, _ := req["generationConfig"].(map[string]interface{})
		if genConfig["maxOutputTokens"] != float64(200) {
			t.Errorf("maxOutputTokens = %v, want 200", genConfig["maxOutputTokens"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Xin chào"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3},
			"modelVersion": "gemini-test-001"
		}`))
	})

	if adapter.Name() != "gemini" {
		t.Errorf("Name() = %s, want gemini", adapter.Name())
	}

	resp, err := adapter.Complete(context.Background(), providers.UserPrompt("こんにちは", 200))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "Xin chào" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "gemini-test-001" {
		t.Errorf("Model = %s", resp.Model)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.Provider != "gemini" {
		t.Errorf("Provider = %s", resp.Provider)
	}
}

func TestAdapter_CompleteError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	})

	_, err := adapter.Complete(context.Background(), providers.UserPrompt("hello", 10))
	if err == nil {
		t.Fatal("Complete() error = nil, want error")
	}
	if providers.IsRetryable(err) {
		t.Errorf("400 should not be retryable: %v", err)
	}
}
