package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/tracker"
)

// HTTPClient implements DataSource by calling the Physcio REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func userPath(userID, suffix string) string {
	return "/api/v1/users/" + url.PathEscape(userID) + suffix
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
	}

	return data, nil
}

func decode[T any](data []byte, what string) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("httpclient: decode %s: %w", what, err)
	}
	return v, nil
}

func (c *HTTPClient) Program(ctx context.Context, userID string) (*tracker.ProgramView, error) {
	body, err := c.get(ctx, userPath(userID, "/program"))
	if err != nil {
		return nil, err
	}
	view, err := decode[tracker.ProgramView](body, "program")
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) LogSession(ctx context.Context, userID string) (*models.UserRecord, program.Outcome, error) {
	body, err := c.post(ctx, userPath(userID, "/program/sessions"), nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := decode[struct {
		Outcome program.Outcome   `json:"outcome"`
		User    models.UserRecord `json:"user"`
	}](body, "session")
	if err != nil {
		return nil, "", err
	}
	return &resp.User, resp.Outcome, nil
}

func (c *HTTPClient) CompletePlan(ctx context.Context, userID string) (*models.UserRecord, error) {
	body, err := c.post(ctx, userPath(userID, "/program/complete"), nil)
	if err != nil {
		return nil, err
	}
	u, err := decode[models.UserRecord](body, "user")
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) History(ctx context.Context, userID string) ([]models.PlanHistoryItem, error) {
	body, err := c.get(ctx, userPath(userID, "/history"))
	if err != nil {
		return nil, err
	}
	return decode[[]models.PlanHistoryItem](body, "history")
}

func (c *HTTPClient) Messages(ctx context.Context, userID string) ([]models.AdminMessage, error) {
	body, err := c.get(ctx, userPath(userID, "/messages"))
	if err != nil {
		return nil, err
	}
	return decode[[]models.AdminMessage](body, "messages")
}

func (c *HTTPClient) Announcements(ctx context.Context) ([]models.Announcement, error) {
	body, err := c.get(ctx, "/api/v1/announcements")
	if err != nil {
		return nil, err
	}
	return decode[[]models.Announcement](body, "announcements")
}

func (c *HTTPClient) Journals(ctx context.Context) ([]models.Journal, error) {
	body, err := c.get(ctx, "/api/v1/journals")
	if err != nil {
		return nil, err
	}
	return decode[[]models.Journal](body, "journals")
}
