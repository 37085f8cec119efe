// Package cliprobe runs the local `claude` binary, captures its terminal
// usage screen, and parses the ANSI-decorated text into a usage snapshot.
package cliprobe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/onllm-dev/claudewatch/internal/api"
)

// FailKind classifies a parse failure.
type FailKind string

const (
	FailUnauthorized FailKind = "unauthorized"
	FailParse        FailKind = "parse_error"
)

// ParseError is a typed parse failure. It never escapes as a panic; every
// parse path returns either a ParsedUsage or one of these.
type ParseError struct {
	Kind    FailKind
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cliprobe: %s: %s", e.Kind, e.Message)
}

// ParsedUsage is the structured result of a successful terminal parse.
type ParsedUsage struct {
	SessionPercent  float64
	SessionResetsAt string
	WeeklyPercent   float64
	WeeklyResetsAt  string
	Models          []api.ModelUsage
}

const (
	sessionLabel = "Current session"
	weeklyLabel  = "Current week (all models)"

	// blockWindow bounds how far past a label the percentage and reset
	// patterns may appear; large enough to span one usage card.
	blockWindow = 500

	reauthInstructions = "Claude Code authentication failed. Re-authenticate by running `claude login` in a terminal."
)

// knownModelLabels is the fixed set of per-model cards the usage screen may
// show. Blocks that are absent are simply omitted from the result.
var knownModelLabels = []string{"Sonnet", "Opus", "Haiku"}

var (
	percentUsedRe = regexp.MustCompile(`(\d+)% used`)
	resetsRe      = regexp.MustCompile(`Resets ([^\n]+)`)
	loadFailRe    = regexp.MustCompile(`Failed to load usage data:?\s*([^\n]*)`)
)

// Parse extracts structured usage from raw terminal output. The input may
// contain ANSI escape sequences; they are stripped before matching.
func Parse(raw string) (*ParsedUsage, *ParseError) {
	text := ansi.Strip(raw)

	if strings.Contains(text, "permission_error") || strings.Contains(text, "OAuth token") {
		return nil, &ParseError{Kind: FailUnauthorized, Message: reauthInstructions}
	}

	if m := loadFailRe.FindStringSubmatch(text); m != nil {
		reason := strings.TrimSpace(m[1])
		if reason == "" {
			reason = "Failed to load usage data."
		}
		// Generic load failures share the unauthorized kind with real auth
		// failures; the CLI does not distinguish them in its output.
		return nil, &ParseError{Kind: FailUnauthorized, Message: reason}
	}

	out := &ParsedUsage{}

	session, ok := parseBlock(text, sessionLabel)
	if !ok {
		return nil, &ParseError{Kind: FailParse, Message: "session"}
	}
	out.SessionPercent = session.percent
	out.SessionResetsAt = session.resetsAt

	weekly, ok := parseBlock(text, weeklyLabel)
	if !ok {
		return nil, &ParseError{Kind: FailParse, Message: "weekly"}
	}
	out.WeeklyPercent = weekly.percent
	out.WeeklyResetsAt = weekly.resetsAt

	for _, model := range knownModelLabels {
		label := fmt.Sprintf("Current week (%s only)", model)
		block, ok := parseBlock(text, label)
		if !ok {
			continue
		}
		out.Models = append(out.Models, api.ModelUsage{
			Name:     model,
			Percent:  block.percent,
			ResetsAt: block.resetsAt,
		})
	}

	return out, nil
}

type usageBlock struct {
	percent  float64
	resetsAt string
}

// parseBlock finds the labeled card and extracts "NN% used" plus an optional
// "Resets <text>" line from the window following the label.
func parseBlock(text, label string) (usageBlock, bool) {
	idx := strings.Index(text, label)
	if idx < 0 {
		return usageBlock{}, false
	}

	window := text[idx+len(label):]
	if len(window) > blockWindow {
		window = window[:blockWindow]
	}

	m := percentUsedRe.FindStringSubmatch(window)
	if m == nil {
		return usageBlock{}, false
	}
	percent, err := strconv.Atoi(m[1])
	if err != nil {
		return usageBlock{}, false
	}

	block := usageBlock{percent: api.ClampPercent(float64(percent))}
	if r := resetsRe.FindStringSubmatch(window); r != nil {
		block.resetsAt = strings.TrimSpace(r[1])
	}
	return block, true
}
