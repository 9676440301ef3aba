package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const summarizerSystemPrompt = "You are a research assistant. Given a question and a set of web " +
	"sources, write a concise, factual summary that answers the question. " +
	"Cite sources by title where relevant. Do not invent facts."

// Summarizer turns a question and its sources into a prose summary.
type Summarizer interface {
	Summarize(ctx context.Context, question string, sources []sourceDigest) (string, error)
}

// sourceDigest is the per-source material handed to the model.
type sourceDigest struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// ChatSummarizer implements Summarizer backed by OpenAI-compatible chat APIs.
type ChatSummarizer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Summarizer = (*ChatSummarizer)(nil)

// NewChatSummarizer builds a summarizer client.
func NewChatSummarizer(endpoint, model, apiKey string) *ChatSummarizer {
	return &ChatSummarizer{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize posts the question and source digests as one user message and
// returns the model's answer.
func (c *ChatSummarizer) Summarize(ctx context.Context, question string, sources []sourceDigest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("summarizer client misconfigured")
	}

	payload, err := json.Marshal(map[string]any{
		"question": question,
		"sources":  sources,
	})
	if err != nil {
		return "", fmt.Errorf("marshal summarizer payload: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarizerSystemPrompt},
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode summarizer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("summarizer returned no choices")
	}
	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("summarizer returned an empty answer")
	}
	return answer, nil
}
