package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Generate(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"erDiagram\n"},{"text":"A ||--o{ B : x"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{BaseURL: srv.URL + "/", Model: "test-model", APIKey: "secret"}, nil)
	text, err := c.Generate(context.Background(), Prompt{Text: "hello", Temperature: 0.4})
	require.NoError(t, err)

	assert.Equal(t, "erDiagram\nA ||--o{ B : x", text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "hello", got.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.4, got.GenerationConfig.Temperature)
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`, "status 429: quota exceeded"},
		{"html error", http.StatusBadGateway, `<html>bad gateway</html>`, "status 502"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no text"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "no text"},
		{"not json", http.StatusOK, `nope`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, APIKey: "k"}, nil)
			_, err := c.Generate(context.Background(), Prompt{Text: "p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(GeminiConfig{}, nil).Generate(context.Background(), Prompt{Text: "p"})
	assert.ErrorContains(t, err, "api key")
}

func TestGeminiClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Generate(context.Background(), Prompt{Text: "p"})
	assert.Error(t, err)
}

func TestNewGeminiClient_Defaults(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{APIKey: "k"}, nil)
	assert.Equal(t, DefaultGeminiBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultGeminiModel, c.cfg.Model)
	assert.Equal(t, DefaultGeminiTimeout, c.client.Timeout)
}
