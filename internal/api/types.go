// Package api provides the usage data model and the HTTP clients that fetch
// usage snapshots from the claude.ai web API and the Anthropic OAuth endpoint.
package api

import (
	"math"
	"net/http"
	"time"
)

// Status classifies a usage snapshot.
type Status string

const (
	StatusOK           Status = "ok"
	StatusMissingKey   Status = "missing_key"
	StatusUnauthorized Status = "unauthorized"
	StatusRateLimited  Status = "rate_limited"
	StatusError        Status = "error"
)

// ModelUsage is one per-model weekly bucket. Name is the human-facing label
// derived from the raw API key (e.g. "seven_day_opus" → "Opus").
type ModelUsage struct {
	Name     string  `json:"name"`
	Percent  float64 `json:"percent"`
	ResetsAt string  `json:"resets_at,omitempty"`
}

// Usage holds the fields that are only present on an ok snapshot. Keeping
// them grouped behind one pointer preserves the Ok/Error split: either all of
// them exist together or none of them do.
type Usage struct {
	SessionPercent  float64      `json:"session_percent"`
	SessionResetsAt string       `json:"session_resets_at,omitempty"`
	WeeklyPercent   float64      `json:"weekly_percent"`
	WeeklyResetsAt  string       `json:"weekly_resets_at,omitempty"`
	Models          []ModelUsage `json:"models"`
}

// Snapshot is one immutable observation of usage state, successful or failed.
// Usage is non-nil exactly when Status == StatusOK; Message is only set on
// the error variants. Snapshots are created fresh each poll cycle and never
// mutated after construction.
type Snapshot struct {
	Status         Status    `json:"status"`
	OrganizationID string    `json:"organization_id,omitempty"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
	Usage          *Usage    `json:"usage,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// OK reports whether the snapshot carries usage data.
func (s Snapshot) OK() bool {
	return s.Status == StatusOK && s.Usage != nil
}

// OkSnapshot constructs an ok snapshot.
func OkSnapshot(orgID string, usage Usage) Snapshot {
	return Snapshot{
		Status:         StatusOK,
		OrganizationID: orgID,
		LastUpdatedAt:  time.Now().UTC(),
		Usage:          &usage,
	}
}

// FailedSnapshot constructs an error-variant snapshot of the given status.
// StatusOK is not a valid argument; callers use OkSnapshot for that.
func FailedSnapshot(status Status, orgID, message string) Snapshot {
	return Snapshot{
		Status:         status,
		OrganizationID: orgID,
		LastUpdatedAt:  time.Now().UTC(),
		Message:        message,
	}
}

// Organization is one entry from the claude.ai organization list.
type Organization struct {
	ID   string `json:"uuid"`
	Name string `json:"name,omitempty"`
}

// ClampPercent clamps a percentage to [0,100]. NaN maps to 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// MapHTTPStatus maps an HTTP status code to the snapshot error taxonomy.
// Both the web-session and OAuth clients use this mapping.
func MapHTTPStatus(code int) Status {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return StatusUnauthorized
	case http.StatusTooManyRequests:
		return StatusRateLimited
	default:
		return StatusError
	}
}
