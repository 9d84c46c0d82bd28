// Package translate bridges English and French around providers that only
// speak English. Translation is best effort: on any failure the original
// text is returned.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/solace/internal/lang"
)

const (
	DefaultBaseURL = "https://libretranslate.de"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks to a LibreTranslate-compatible service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. An empty baseURL selects DefaultBaseURL; apiKey
// may be empty for public instances.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Translate converts text from one language to another. It is the identity
// when from == to and returns text unchanged if the service fails.
func (c *Client) Translate(ctx context.Context, text string, from, to lang.Tag) string {
	if from == to || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := c.translate(ctx, text, from, to)
	if err != nil {
		c.logger.Warn("translation failed, using original text", "from", from, "to", to, "error", err)
		return text
	}
	return out
}

func (c *Client) translate(ctx context.Context, text string, from, to lang.Tag) (string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: string(from),
		Target: string(to),
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out.TranslatedText, nil
}
