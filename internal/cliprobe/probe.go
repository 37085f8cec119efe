package cliprobe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/onllm-dev/claudewatch/internal/api"
)

const cliOrganizationScope = "cli"

// Prober spawns the Claude CLI and captures its usage screen.
type Prober struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithBinary overrides the CLI binary path.
func WithBinary(path string) ProberOption {
	return func(p *Prober) {
		p.binary = path
	}
}

// WithArgs overrides the arguments passed to the CLI.
func WithArgs(args ...string) ProberOption {
	return func(p *Prober) {
		p.args = args
	}
}

// WithTimeout bounds one CLI invocation. A hung CLI must not stall the poll
// controller beyond this.
func WithTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = d
	}
}

// NewProber creates a prober with the default `claude usage` invocation.
func NewProber(logger *slog.Logger, opts ...ProberOption) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		binary:  "claude",
		args:    []string{"usage"},
		timeout: 30 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch runs the CLI once and parses its output into a snapshot. It always
// returns a snapshot; spawn, timeout, and parse failures all become
// error-variant snapshots.
func (p *Prober) Fetch(ctx context.Context) api.Snapshot {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary, p.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return api.FailedSnapshot(api.StatusError, cliOrganizationScope, "Claude CLI probe timed out.")
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return api.FailedSnapshot(api.StatusError, cliOrganizationScope,
				"Claude CLI missing. Install it or ensure `claude` is on PATH.")
		}
		// Non-zero exits still often print the usage card or a usable error
		// message, so fall through to the parser with whatever we captured.
		p.logger.Debug("claude cli exited non-zero", "error", err)
	}

	output := stdout.String()
	if output == "" {
		output = stderr.String()
	}

	return p.snapshotFromOutput(output)
}

func (p *Prober) snapshotFromOutput(output string) api.Snapshot {
	parsed, parseErr := Parse(output)
	if parseErr != nil {
		status := api.StatusError
		if parseErr.Kind == FailUnauthorized {
			status = api.StatusUnauthorized
		}
		return api.FailedSnapshot(status, cliOrganizationScope, parseErr.Message)
	}

	return api.OkSnapshot(cliOrganizationScope, api.Usage{
		SessionPercent:  parsed.SessionPercent,
		SessionResetsAt: parsed.SessionResetsAt,
		WeeklyPercent:   parsed.WeeklyPercent,
		WeeklyResetsAt:  parsed.WeeklyResetsAt,
		Models:          parsed.Models,
	})
}
