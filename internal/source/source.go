// Package source adapts the usage clients to the single contract the poll
// controller consumes. Each implementation owns its credential resolution
// and never returns an error: every failure path terminates in an
// error-variant snapshot.
package source

import (
	"context"

	"github.com/onllm-dev/claudewatch/internal/api"
)

// Client supplies raw usage snapshots to the poll controller.
type Client interface {
	Fetch(ctx context.Context) api.Snapshot
}
