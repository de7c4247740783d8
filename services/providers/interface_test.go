package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("anthropic", "HTTP_ERROR", "HTTP request failed", 0, true, cause)

	assert.Equal(t, "anthropic: HTTP request failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", err)))

	plain := NewProviderError("gemini", "invalid_request", "bad model", 400, false, nil)
	assert.Equal(t, "gemini: bad model", plain.Error())
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsRetryable(errors.New("other")))
}

func TestUserPrompt(t *testing.T) {
	req := UserPrompt("hello", 200)
	assert.Equal(t, 200, req.MaxTokens)
	assert.Equal(t, []Message{{Role: "user", Content: "hello"}}, req.Messages)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence on one line", in: "```json{\"a\":1}```", want: `{"a":1}`},
		{name: "no fence", in: "  {\"a\":1}  ", want: `{"a":1}`},
		{name: "fence without info string", in: "```{\"a\":1}\n```", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}
