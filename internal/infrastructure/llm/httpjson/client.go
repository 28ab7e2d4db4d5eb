// Package httpjson is the shared transport of the REST-only model providers.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
)

// maxResponseBytes caps a decoded model answer. Analyses are a few KiB.
const maxResponseBytes = 8 << 20

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts a JSON body to one provider and decodes its JSON answer.
// Non-2xx answers become resilience.HTTPStatusError so the executor can
// classify them.
type Client struct {
	provider string
	baseURL  string
	header   http.Header
	doer     Doer
}

func New(provider, baseURL string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		header:   header,
		doer:     &http.Client{Timeout: timeout},
	}
}

// WithDoer swaps the HTTP client; tests use it to count calls.
func (c *Client) WithDoer(doer Doer) *Client {
	c.doer = doer
	return c
}

func (c *Client) Post(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", c.provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(c.provider, operation, resp)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", c.provider, operation, err)
	}
	return nil
}
