package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Classified errors for organization-list fetches. FetchUsageSnapshot never
// returns an error; every failure path there terminates in an error-variant
// snapshot.
var (
	ErrUnauthorized = errors.New("claude: unauthorized")
	ErrRateLimited  = errors.New("claude: rate limited")
	ErrFetchFailed  = errors.New("claude: fetch failed")
)

const webUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ClaudeClient is an HTTP client for the claude.ai web API, authenticated
// with a session-key cookie.
type ClaudeClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// ClaudeOption configures a ClaudeClient.
type ClaudeOption func(*ClaudeClient)

// WithClaudeBaseURL sets a custom base URL (for testing).
func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *ClaudeClient) {
		c.baseURL = url
	}
}

// WithClaudeTimeout sets a custom timeout (for testing).
func WithClaudeTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeClient) {
		c.httpClient.Timeout = d
	}
}

// NewClaudeClient creates a new claude.ai web API client.
func NewClaudeClient(logger *slog.Logger, opts ...ClaudeOption) *ClaudeClient {
	if logger == nil {
		logger = slog.Default()
	}
	client := &ClaudeClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          1,
				MaxIdleConnsPerHost:   1,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		},
		baseURL: "https://claude.ai/api",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// get issues an authenticated GET. The client-level timeout bounds the whole
// exchange including the body read, so no per-request context deadline here.
func (c *ClaudeClient) get(ctx context.Context, url, sessionKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("claude: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", "sessionKey="+sessionKey)
	req.Header.Set("User-Agent", webUserAgent)
	req.Header.Set("Origin", "https://claude.ai")
	req.Header.Set("Referer", "https://claude.ai/")

	return c.httpClient.Do(req)
}

// FetchOrganizations retrieves the organization list for the session key.
// Failures are classified: ErrUnauthorized, ErrRateLimited, or ErrFetchFailed.
func (c *ClaudeClient) FetchOrganizations(ctx context.Context, sessionKey string) ([]Organization, error) {
	c.logger.Debug("fetching organizations", "key", RedactKey(sessionKey))

	resp, err := c.get(ctx, c.baseURL+"/organizations", sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, RedactSecrets(err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch MapHTTPStatus(resp.StatusCode) {
		case StatusUnauthorized:
			return nil, ErrUnauthorized
		case StatusRateLimited:
			return nil, ErrRateLimited
		default:
			return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrFetchFailed, err)
	}

	var out []Organization
	for _, entry := range raw {
		id := readString(entry["uuid"])
		if id == "" {
			continue
		}
		out = append(out, Organization{ID: id, Name: readString(entry["name"])})
	}
	return out, nil
}

// FetchUsageSnapshot retrieves the usage snapshot for one organization.
// It always returns a snapshot; failures become error-variant snapshots.
func (c *ClaudeClient) FetchUsageSnapshot(ctx context.Context, sessionKey, orgID string) Snapshot {
	endpoint := c.baseURL + "/organizations/" + url.PathEscape(orgID) + "/usage"

	resp, err := c.get(ctx, endpoint, sessionKey)
	if err != nil {
		return FailedSnapshot(StatusError, orgID, RedactSecrets(err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := MapHTTPStatus(resp.StatusCode)
		return FailedSnapshot(status, orgID, fmt.Sprintf("Claude API error (%d)", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return FailedSnapshot(StatusError, orgID, RedactSecrets(err.Error()))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return FailedSnapshot(StatusError, orgID, RedactSecrets(err.Error()))
	}

	c.logger.Debug("usage snapshot fetched", "org", orgID)
	return ParseUsagePayload(payload, orgID)
}
