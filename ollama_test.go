package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubOllama(t *testing.T, response string) (*OllamaClient, *string) {
	t.Helper()
	var lastPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		lastPrompt = req.Prompt

		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
	t.Cleanup(srv.Close)

	return newOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "test-model", Timeout: "5s"}), &lastPrompt
}

func TestOllamaExtract(t *testing.T) {
	client, lastPrompt := newStubOllama(t, "  TASK_START\nTask: x\nTime: 8pm\nTASK_END\n  ")

	got, err := client.Extract(context.Background(), "remind me at 8pm")
	require.NoError(t, err)
	assert.Equal(t, "TASK_START\nTask: x\nTime: 8pm\nTASK_END", got, "response is trimmed")

	// The utterance is embedded in the prompt and the format contract is stated.
	assert.Contains(t, *lastPrompt, `"remind me at 8pm"`)
	assert.Contains(t, *lastPrompt, "NO_TASKS_FOUND")
	assert.Contains(t, *lastPrompt, "EXACTLY as mentioned")
}

func TestOllamaConverse(t *testing.T) {
	client, lastPrompt := newStubOllama(t, "Hello Ana!")

	got, err := client.Converse(context.Background(), "how do I sleep better?", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana!", got)
	assert.Contains(t, *lastPrompt, "Ana")
	assert.Contains(t, *lastPrompt, "how do I sleep better?")
}

func TestOllamaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	client := newOllamaClient(OllamaConfig{BaseURL: srv.URL})

	_, err := client.Extract(context.Background(), "remind me at 8pm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestOllamaUnreachable(t *testing.T) {
	client := newOllamaClient(OllamaConfig{BaseURL: "http://127.0.0.1:1", Timeout: "1s"})
	_, err := client.Converse(context.Background(), "hi", "Ana")
	assert.Error(t, err)
}
