package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL))
}

// messageWire is the request body shape the SDK puts on the wire.
type messageWire struct {
	Model       string   `json:"model"`
	MaxTokens   int64    `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	System      []struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		CacheControl *struct {
			Type string `json:"type"`
			TTL  string `json:"ttl"`
		} `json:"cache_control"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func stubMessage(id, text string) map[string]any {
	return map[string]any{
		"id":    id,
		"type":  "message",
		"role":  "assistant",
		"model": "claude-haiku-4-5-20251001",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                410,
			"output_tokens":               22,
			"cache_creation_input_tokens": 5000,
			"cache_read_input_tokens":     1200,
		},
	}
}

func TestCreateMessage(t *testing.T) {
	t.Parallel()

	bodies := make(chan messageWire, 1)
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body messageWire
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(stubMessage("msg_test_001", `{"roastLevel":"medium","beanType":"arabica"}`)))
	})

	temp := 0.1
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   512,
		System:      BuildCachedSystemBlocks("You classify coffee products."),
		Messages:    []Message{{Role: "user", Content: "Classify this coffee."}},
		Temperature: &temp,
	})
	require.NoError(t, err)

	body := <-bodies
	assert.Equal(t, "claude-haiku-4-5-20251001", body.Model)
	assert.Equal(t, int64(512), body.MaxTokens)
	if assert.NotNil(t, body.Temperature) {
		assert.Equal(t, 0.1, *body.Temperature)
	}
	require.Len(t, body.System, 1)
	assert.Equal(t, "You classify coffee products.", body.System[0].Text)
	require.NotNil(t, body.System[0].CacheControl, "the system prompt must carry its cache breakpoint")
	assert.Equal(t, "ephemeral", body.System[0].CacheControl.Type)
	assert.Equal(t, "5m", body.System[0].CacheControl.TTL)

	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, `{"roastLevel":"medium","beanType":"arabica"}`, resp.Content[0].Text)
	assert.Equal(t, int64(410), resp.Usage.InputTokens)
	assert.Equal(t, int64(22), resp.Usage.OutputTokens)
	assert.Equal(t, int64(5000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(1200), resp.Usage.CacheReadInputTokens)
}

func TestCreateMessage_RoleMapping(t *testing.T) {
	t.Parallel()

	bodies := make(chan messageWire, 1)
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body messageWire
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(stubMessage("msg_roles", "{}")))
	})

	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 64,
		Messages: []Message{
			{Role: "user", Content: "Classify this coffee."},
			{Role: "assistant", Content: `{"roastLevel":"medium"}`},
			{Role: "system", Content: "stray role from a transcript"},
		},
	})
	require.NoError(t, err)

	body := <-bodies
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, "user", body.Messages[2].Role, "unknown roles are sent as user")
}

func TestCreateMessage_APIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		errType string
	}{
		{"throttled", http.StatusTooManyRequests, "rate_limit_error"},
		{"upstream outage", http.StatusInternalServerError, "api_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
				// The SDK retries 429 and 5xx internally before surfacing.
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(tt.status)
				assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
					"type":  "error",
					"error": map[string]any{"type": tt.errType, "message": "upstream unhappy"},
				}))
			})

			_, err := client.CreateMessage(context.Background(), MessageRequest{
				Model:     "claude-haiku-4-5-20251001",
				MaxTokens: 64,
				Messages:  []Message{{Role: "user", Content: "Classify this coffee."}},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "anthropic: create message")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.status, apiErr.HTTPStatus())
		})
	}
}
