// Package upload pushes legacy exports to a remote Physcio server's admin
// import endpoint.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/physcio/internal/importer"
)

// Client sends exports to the Physcio server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	// backoff is the wait before the second attempt; it doubles after that.
	backoff time.Duration
}

// NewClient creates a new HTTP client for the Physcio server. apiKey is the
// server's admin API key.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendExport POSTs a raw export to the server's import endpoint and returns
// the server's import stats. Network errors and 5xx responses are retried up
// to 3 times with exponential backoff; other failures return immediately.
func (c *Client) SendExport(ctx context.Context, source string, data []byte, dryRun bool) (*importer.Stats, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("dryRun", strconv.FormatBool(dryRun))
	endpoint := c.serverURL + "/api/v1/admin/import?" + q.Encode()

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		stats, retry, err := c.send(ctx, endpoint, data)
		if err == nil {
			return stats, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) send(ctx context.Context, endpoint string, data []byte) (*importer.Stats, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= http.StatusInternalServerError,
			fmt.Errorf("import failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var stats importer.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, false, fmt.Errorf("decoding import stats: %w", err)
	}
	return &stats, false, nil
}
