package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Credential file errors. Callers map these to unauthorized/error snapshots.
var (
	ErrHomeMissing        = errors.New("credentials: HOME is not set")
	ErrCredentialsMissing = errors.New("credentials: file not found")
	ErrCredentialsInvalid = errors.New("credentials: invalid json")
	ErrTokenMissing       = errors.New("credentials: missing access token")
)

const (
	oauthUsageURL          = "https://api.anthropic.com/api/oauth/usage"
	oauthBetaHeader        = "oauth-2025-04-20"
	cliCredentialsRelative = ".claude/.credentials.json"
	oauthOrganizationScope = "oauth"
)

// OAuthClient fetches usage from the Anthropic OAuth endpoint using the
// access token minted by the local CLI login flow.
type OAuthClient struct {
	httpClient *http.Client
	usageURL   string
	logger     *slog.Logger
}

// OAuthOption configures an OAuthClient.
type OAuthOption func(*OAuthClient)

// WithOAuthUsageURL sets a custom usage endpoint (for testing).
func WithOAuthUsageURL(url string) OAuthOption {
	return func(c *OAuthClient) {
		c.usageURL = url
	}
}

// NewOAuthClient creates a new OAuth usage client.
func NewOAuthClient(logger *slog.Logger, opts ...OAuthOption) *OAuthClient {
	if logger == nil {
		logger = slog.Default()
	}
	client := &OAuthClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		usageURL:   oauthUsageURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchUsageSnapshot retrieves the OAuth usage snapshot. It always returns a
// snapshot; failures become error-variant snapshots with the "oauth" scope id.
func (c *OAuthClient) FetchUsageSnapshot(ctx context.Context, accessToken string) Snapshot {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.usageURL, nil)
	if err != nil {
		return FailedSnapshot(StatusError, oauthOrganizationScope, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", webUserAgent)
	req.Header.Set("anthropic-beta", oauthBetaHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FailedSnapshot(StatusError, oauthOrganizationScope, "Network error while fetching OAuth usage.")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := MapHTTPStatus(resp.StatusCode)
		var msg string
		switch status {
		case StatusUnauthorized:
			msg = "OAuth usage is unauthorized. Re-authenticate (run `claude login`)."
		case StatusRateLimited:
			msg = "OAuth usage is rate limited."
		default:
			msg = fmt.Sprintf("OAuth usage request failed (%d).", resp.StatusCode)
		}
		return FailedSnapshot(status, oauthOrganizationScope, msg)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return FailedSnapshot(StatusError, oauthOrganizationScope, "Failed to read OAuth usage response.")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return FailedSnapshot(StatusError, oauthOrganizationScope, "Invalid JSON returned by OAuth usage endpoint.")
	}

	c.logger.Debug("oauth usage snapshot fetched")
	return ParseUsagePayload(payload, oauthOrganizationScope)
}

// CLICredentialsPath returns the location of the CLI credentials file.
func CLICredentialsPath() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return "", ErrHomeMissing
	}
	return filepath.Join(home, cliCredentialsRelative), nil
}

// ReadCLIAccessToken reads the OAuth access token written by `claude login`.
func ReadCLIAccessToken() (string, error) {
	path, err := CLICredentialsPath()
	if err != nil {
		return "", err
	}
	return ReadCLIAccessTokenFromPath(path)
}

// ReadCLIAccessTokenFromPath reads and validates a credentials file.
func ReadCLIAccessTokenFromPath(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", ErrCredentialsMissing
	}

	var root struct {
		ClaudeAiOauth struct {
			AccessToken string `json:"accessToken"`
		} `json:"claudeAiOauth"`
	}
	if err := json.Unmarshal(contents, &root); err != nil {
		return "", ErrCredentialsInvalid
	}

	token := strings.TrimSpace(root.ClaudeAiOauth.AccessToken)
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}
