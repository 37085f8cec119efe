package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/creds"
	"github.com/onllm-dev/claudewatch/internal/store"
)

// Web fetches usage through the claude.ai web API using a session key. The
// organization list is fetched once per session key and cached; the selected
// organization is persisted so restarts keep monitoring the same one.
type Web struct {
	client *api.ClaudeClient
	creds  creds.Provider
	store  *store.Store
	logger *slog.Logger

	mu        sync.Mutex
	cachedKey string
	cachedOrg []api.Organization
}

// NewWeb creates a web usage source.
func NewWeb(client *api.ClaudeClient, provider creds.Provider, st *store.Store, logger *slog.Logger) *Web {
	if logger == nil {
		logger = slog.Default()
	}
	return &Web{client: client, creds: provider, store: st, logger: logger}
}

// Fetch implements Client.
func (w *Web) Fetch(ctx context.Context) api.Snapshot {
	key, err := w.creds.CurrentKey()
	if err != nil {
		return api.FailedSnapshot(api.StatusError, "", "Failed to read session key: "+err.Error())
	}
	if key == "" {
		return api.FailedSnapshot(api.StatusMissingKey, "", "Session key is not configured.")
	}

	orgID, failed := w.resolveOrganization(ctx, key)
	if failed != nil {
		return *failed
	}

	return w.client.FetchUsageSnapshot(ctx, key, orgID)
}

// resolveOrganization picks the organization to monitor: the stored
// selection when it is still listed, otherwise the first available (which
// then becomes the stored selection). Returns a failure snapshot when the
// list cannot be resolved.
func (w *Web) resolveOrganization(ctx context.Context, key string) (string, *api.Snapshot) {
	orgs, err := w.organizations(ctx, key)
	if err != nil {
		var snap api.Snapshot
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			snap = api.FailedSnapshot(api.StatusUnauthorized, "", "Unauthorized.")
		case errors.Is(err, api.ErrRateLimited):
			snap = api.FailedSnapshot(api.StatusRateLimited, "", "Rate limited.")
		default:
			snap = api.FailedSnapshot(api.StatusError, "", "Failed to fetch organizations.")
		}
		return "", &snap
	}
	if len(orgs) == 0 {
		snap := api.FailedSnapshot(api.StatusError, "", "No organizations found.")
		return "", &snap
	}

	stored, _, err := w.store.GetSetting(store.KeySelectedOrganization)
	if err != nil {
		w.logger.Warn("Failed to read selected organization", "error", err)
	}
	for _, org := range orgs {
		if org.ID == stored {
			return stored, nil
		}
	}

	first := orgs[0].ID
	if err := w.store.SetSetting(store.KeySelectedOrganization, first); err != nil {
		w.logger.Warn("Failed to persist selected organization", "error", err)
	}
	return first, nil
}

func (w *Web) organizations(ctx context.Context, key string) ([]api.Organization, error) {
	w.mu.Lock()
	if w.cachedKey == key && w.cachedOrg != nil {
		orgs := w.cachedOrg
		w.mu.Unlock()
		return orgs, nil
	}
	w.mu.Unlock()

	orgs, err := w.client.FetchOrganizations(ctx, key)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.cachedKey = key
	w.cachedOrg = orgs
	w.mu.Unlock()
	return orgs, nil
}

// ValidateKey probes the organization list with a candidate session key so a
// settings save can be rejected synchronously without touching the polling
// state. The returned status is StatusOK when the key works.
func (w *Web) ValidateKey(ctx context.Context, key string) (api.Status, error) {
	_, err := w.client.FetchOrganizations(ctx, key)
	switch {
	case err == nil:
		return api.StatusOK, nil
	case errors.Is(err, api.ErrUnauthorized):
		return api.StatusUnauthorized, err
	case errors.Is(err, api.ErrRateLimited):
		return api.StatusRateLimited, err
	default:
		return api.StatusError, err
	}
}
