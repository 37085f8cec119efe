package source

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onllm-dev/claudewatch/internal/api"
)

// OAuth fetches usage through the Anthropic OAuth endpoint using the access
// token minted by the local CLI login. The token file is re-read on every
// fetch so an external re-login is picked up without restarting.
type OAuth struct {
	client    *api.OAuthClient
	logger    *slog.Logger
	readToken func() (string, error)
}

// NewOAuth creates an OAuth usage source.
func NewOAuth(client *api.OAuthClient, logger *slog.Logger) *OAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuth{client: client, logger: logger, readToken: api.ReadCLIAccessToken}
}

// Fetch implements Client.
func (o *OAuth) Fetch(ctx context.Context) api.Snapshot {
	token, err := o.readToken()
	if err != nil {
		switch {
		case errors.Is(err, api.ErrHomeMissing):
			return api.FailedSnapshot(api.StatusError, "",
				"HOME is not set; cannot locate CLI credentials.")
		case errors.Is(err, api.ErrCredentialsInvalid):
			return api.FailedSnapshot(api.StatusUnauthorized, "",
				"Claude CLI credentials are invalid. Re-authenticate (run `claude login`).")
		default:
			return api.FailedSnapshot(api.StatusUnauthorized, "",
				"Claude CLI credentials not found. Run `claude login` and try again.")
		}
	}
	return o.client.FetchUsageSnapshot(ctx, token)
}
