package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/config"
	"qnabot/rag"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4.1-nano",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "  Annual leave is 20 days.  "}
	}],
	"usage": {"prompt_tokens": 50, "completion_tokens": 8, "total_tokens": 58}
}`

func newTestGenerator(url string, timeout time.Duration) *Generator {
	return NewGenerator(config.LLMConfig{
		APIKey:      "sk-test",
		BaseURL:     url,
		Model:       "gpt-4.1-nano",
		Temperature: 0.1,
		MaxTokens:   800,
		Timeout:     timeout,
	}, option.WithMaxRetries(0))
}

func TestGenerator_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	g := newTestGenerator(srv.URL, 0)
	answer, err := g.Generate(context.Background(), rag.Prompt{System: "rules", User: "Context: ... Question: leave?"})
	require.NoError(t, err)
	assert.Equal(t, "Annual leave is 20 days.", answer)

	assert.Equal(t, "gpt-4.1-nano", body["model"])
	assert.InDelta(t, 0.1, body["temperature"], 1e-9)
	assert.EqualValues(t, 800, body["max_tokens"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded", "type": "insufficient_quota"}}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL, 0).Generate(context.Background(), rag.Prompt{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m", "choices": []}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv.URL, 0).Generate(context.Background(), rag.Prompt{User: "q"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestGenerator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestGenerator(srv.URL, 0).Generate(ctx, rag.Prompt{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model request")
}
