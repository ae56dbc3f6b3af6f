// Package bundler is the HTTP client for the permanent-store bundling
// service (Turbo-compatible upload API).
package bundler

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

// Receipt is the bundler's acknowledgment of a submitted dataitem. The
// bundle carrying it settles on the permanent ledger under the same id.
type Receipt struct {
	ID                  string   `json:"id"`
	Owner               string   `json:"owner"`
	DataCaches          []string `json:"dataCaches"`
	FastFinalityIndexes []string `json:"fastFinalityIndexes"`
	DeadlineHeight      int64    `json:"deadlineHeight"`
	Timestamp           int64    `json:"timestamp"`
	Version             string   `json:"version"`
}

// Submitter is what the migration service needs from the bundler.
type Submitter interface {
	// Submit posts signed dataitem bytes and returns the raw receipt JSON
	// together with its parsed form.
	Submit(ctx context.Context, dataitem []byte) (*Receipt, []byte, error)
}

// Client talks to a Turbo-style bundler over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) Submit(ctx context.Context, dataitem []byte) (*Receipt, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tx", bytes.NewReader(dataitem))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("bundler request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("reading bundler response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("bundler returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, nil, fmt.Errorf("decoding bundler receipt: %w", err)
	}
	if receipt.ID == "" {
		return nil, nil, fmt.Errorf("bundler receipt missing transaction id")
	}
	return &receipt, body, nil
}
