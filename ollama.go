package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// --- Generative Backend (Ollama) ---

// Extractor asks the generative backend to propose tasks for an utterance.
// The response is an opaque blob; parsing it belongs to extract.go.
type Extractor interface {
	Extract(ctx context.Context, text string) (string, error)
}

// Converser produces a free-form conversational reply.
type Converser interface {
	Converse(ctx context.Context, text, userName string) (string, error)
}

// OllamaClient talks to a local Ollama instance over its generate API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllamaClient(cfg OllamaConfig) *OllamaClient {
	return &OllamaClient{
		baseURL: cfg.baseURLOrDefault(),
		model:   cfg.modelOrDefault(),
		client:  &http.Client{Timeout: cfg.timeoutOrDefault()},
	}
}

// generate posts a prompt to /api/generate and returns the raw response text.
func (c *OllamaClient) generate(ctx context.Context, prompt string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama decode: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// extractionPrompt instructs the model to emit TASK_START/TASK_END blocks
// with times copied verbatim. The model loves to "helpfully" convert times
// or append explanations; the prompt forbids it and timeparse.go strips
// what slips through anyway.
const extractionPrompt = `Extract reminders from this message. If NO reminders are requested, respond with "NO_TASKS_FOUND".

For valid reminders, extract each in this format:
TASK_START
Task: [exact task name as user said it]
Time: [EXACT time as mentioned - do not convert or add explanations]
Urgency: [Relaxed/General/Urgent]
Category: [Medication/Exercise/Appointment/Other]
TASK_END

IMPORTANT:
- Keep the Time field EXACTLY as mentioned by the user
- Do NOT add explanations like "(Assuming 14:05 is a 24-hour clock format)"
- Do NOT convert times - copy them exactly

Examples:
- If user says "14:05", Time should be: 14:05
- If user says "10:30am", Time should be: 10:30am
- If user says "in 30 minutes", Time should be: in 30 minutes

Message: %q
`

// Extract runs the task-extraction prompt.
func (c *OllamaClient) Extract(ctx context.Context, text string) (string, error) {
	return c.generate(ctx, fmt.Sprintf(extractionPrompt, text))
}

const conversePrompt = `You are a helpful, empathetic health assistant. The user's name is %s.
Provide warm, supportive responses about health topics, wellness tips, or general conversation.
Keep responses brief and encouraging. Always suggest consulting healthcare providers for medical decisions.

User: %s
Assistant:`

// Converse runs the conversational prompt.
func (c *OllamaClient) Converse(ctx context.Context, text, userName string) (string, error) {
	if userName == "" {
		userName = "there"
	}
	return c.generate(ctx, fmt.Sprintf(conversePrompt, userName, text))
}
