package provider

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

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4"

	// DefaultSystemPrompt frames every general-purpose model call.
	DefaultSystemPrompt = "You are a compassionate assistant for dementia support. Answer with empathy and simplicity."

	// EmptyCompletionReply stands in for a completion with no content.
	EmptyCompletionReply = "I'm here for you."

	defaultOpenAITimeout = 60 * time.Second
)

// OpenAIClient talks to an OpenAI-compatible chat completions API. It
// satisfies Generator.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// NewOpenAI creates a client with the given API key and model. An empty
// model selects DefaultOpenAIModel.
func NewOpenAI(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		baseURL:      DefaultOpenAIBaseURL,
		model:        model,
		systemPrompt: DefaultSystemPrompt,
		httpClient:   &http.Client{Timeout: defaultOpenAITimeout},
	}
}

// NewOpenAIWithBaseURL creates a client pointing at a custom base URL.
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) *OpenAIClient {
	c := NewOpenAI(apiKey, model)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Generate sends prompt as the user turn and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai: no API key configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: response has no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return EmptyCompletionReply, nil
	}
	return content, nil
}
