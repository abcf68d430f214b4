package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test", Timeout: 2 * time.Second}, nil)
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"skills\":[]}"},"finish_reason":"stop"}]}`))
	})

	out, err := c.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		SchemaHint:   "JSON Schema:\n{}",
		JSONMode:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"skills":[]}`, out)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "JSON Schema:\n{}", got.Messages[2].Content)
}

func TestCompleteOmitsOptionalParts(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	_, err := c.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "s", UserPrompt: "u"})
	require.NoError(t, err)
	assert.NotContains(t, got, "response_format")
	assert.Len(t, got["messages"], 2)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, common.CodeRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, common.CodeCompletionFailed},
		{"unauthorized", http.StatusUnauthorized, `{}`, common.CodeCompletionFailed},
		{"no choices", http.StatusOK, `{"choices":[]}`, common.CodeCompletionFailed},
		{"not json", http.StatusOK, `<html>`, common.CodeCompletionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), llm.CompletionRequest{UserPrompt: "u"})
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, common.CodeOf(err))
		})
	}
}

func TestCompleteUnreachable(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	_, err := c.Complete(context.Background(), llm.CompletionRequest{UserPrompt: "u"})
	require.Error(t, err)
	assert.Equal(t, common.CodeCompletionFailed, common.CodeOf(err))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, nil)
	assert.Equal(t, "gpt-4o-mini", c.ModelName())
	assert.Equal(t, "https://api.openai.com/v1", c.cfg.BaseURL)
	assert.Equal(t, 45*time.Second, c.http.Timeout)
}
