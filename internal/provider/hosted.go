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

	"github.com/kalambet/solace/internal/lang"
)

const (
	DefaultPrimaryURL   = "https://obx0x3-conversation-response.hf.space/generate"
	DefaultSecondaryURL = "https://obx0x3-empathy-api.hf.space/generate"

	defaultHostedTimeout = 30 * time.Second
	maxErrorBodySize     = 4 << 10
)

// Hosted calls a hosted inference endpoint that accepts a tagged prompt and
// returns a single reply.
type Hosted struct {
	id         ID
	url        string
	httpClient *http.Client
}

// NewHosted creates a client for the endpoint at url. A non-positive
// timeout selects the default of 30s.
func NewHosted(id ID, url string, timeout time.Duration) *Hosted {
	if timeout <= 0 {
		timeout = defaultHostedTimeout
	}
	return &Hosted{
		id:         id,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ID returns the provider this client serves.
func (h *Hosted) ID() ID {
	return h.id
}

// Reply posts prompt and returns the trimmed reply. A missing reply field
// yields an empty string and no error.
func (h *Hosted) Reply(ctx context.Context, prompt string, language lang.Tag) (string, error) {
	body, err := json.Marshal(hostedRequest{Message: prompt, Lang: string(language)})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: executing request: %w", h.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("%s: unexpected status %d: %s", h.id, resp.StatusCode, string(respBody))
	}

	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", h.id, err)
	}
	if out.Reply == nil {
		return "", nil
	}
	return strings.TrimSpace(*out.Reply), nil
}
