// Package creds supplies the session credential used by the web usage
// source. Actual secure storage (OS keychain) is out of scope; keys come
// from the environment or the settings store.
package creds

import (
	"os"
	"strings"

	"github.com/onllm-dev/claudewatch/internal/store"
)

// EnvSessionKey overrides any stored session key when set.
const EnvSessionKey = "CLAUDEWATCH_SESSION_KEY"

// Provider supplies and manages the current session credential.
type Provider interface {
	// CurrentKey returns the configured key, or "" when none is set.
	CurrentKey() (string, error)
	// RememberKey persists a key for future runs.
	RememberKey(key string) error
	// ForgetKey removes the stored key. Reports whether one existed.
	ForgetKey() (bool, error)
}

// StoreProvider reads the key from the environment first, then from the
// settings store.
type StoreProvider struct {
	store *store.Store
}

// NewStoreProvider creates a provider backed by the settings store.
func NewStoreProvider(st *store.Store) *StoreProvider {
	return &StoreProvider{store: st}
}

// CurrentKey implements Provider.
func (p *StoreProvider) CurrentKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvSessionKey)); key != "" {
		return key, nil
	}
	key, _, err := p.store.GetSetting(store.KeySessionKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// RememberKey implements Provider.
func (p *StoreProvider) RememberKey(key string) error {
	return p.store.SetSetting(store.KeySessionKey, strings.TrimSpace(key))
}

// ForgetKey implements Provider.
func (p *StoreProvider) ForgetKey() (bool, error) {
	return p.store.DeleteSetting(store.KeySessionKey)
}

// StaticProvider returns a fixed key. Used in tests.
type StaticProvider struct {
	Key string
}

// CurrentKey implements Provider.
func (p *StaticProvider) CurrentKey() (string, error) { return p.Key, nil }

// RememberKey implements Provider.
func (p *StaticProvider) RememberKey(key string) error {
	p.Key = key
	return nil
}

// ForgetKey implements Provider.
func (p *StaticProvider) ForgetKey() (bool, error) {
	had := p.Key != ""
	p.Key = ""
	return had, nil
}
