// Package alerts decides when usage notifications fire. The decision
// functions are pure: everything they need arrives as explicit inputs, and
// callers persist whatever markers come back.
package alerts

import "strings"

// NearLimitThresholdPercent is the high-water mark for near-limit alerts.
const NearLimitThresholdPercent = 90.0

// UnknownPeriodID stands in for a missing reset timestamp. A near-limit
// alert can still dedup against it; a reset can never be detected from it.
const UnknownPeriodID = "unknown"

// Marker dimension values used with the store.
const (
	PeriodSession = "session"
	PeriodWeekly  = "weekly"

	AlertNearLimit = "near_limit"
	AlertReset     = "reset"
)

// NormalizePeriodID converts a raw resets-at string into a period id.
func NormalizePeriodID(resetsAt string) string {
	trimmed := strings.TrimSpace(resetsAt)
	if trimmed == "" {
		return UnknownPeriodID
	}
	return trimmed
}

// NearLimitParams are the inputs for one near-limit decision. Previous
// percents are nil on the first observation; last-notified period ids are
// empty when nothing has been recorded for the metric yet.
type NearLimitParams struct {
	CurrentSessionPercent  float64
	CurrentWeeklyPercent   float64
	CurrentSessionResetsAt string
	CurrentWeeklyResetsAt  string

	PreviousSessionPercent *float64
	PreviousWeeklyPercent  *float64

	LastNotifiedSessionPeriodID string
	LastNotifiedWeeklyPeriodID  string
}

// NearLimitDecision says which near-limit alerts to fire. The period id
// fields are set only when the matching notify flag is true; callers persist
// them as the new "already notified" markers.
type NearLimitDecision struct {
	NotifySession bool
	NotifyWeekly  bool

	SessionPeriodID string
	WeeklyPeriodID  string
}

// DecideNearLimit fires at most once per metric per period. Crossing the
// threshold fires; staying above it across polls within one period does not.
// A first observation already above threshold fires once so a monitor started
// mid-window does not silently miss the alert.
func DecideNearLimit(p NearLimitParams) NearLimitDecision {
	sessionPeriodID := NormalizePeriodID(p.CurrentSessionResetsAt)
	weeklyPeriodID := NormalizePeriodID(p.CurrentWeeklyResetsAt)

	decision := NearLimitDecision{
		NotifySession: shouldNotifyNearLimit(
			p.CurrentSessionPercent, p.PreviousSessionPercent,
			sessionPeriodID, p.LastNotifiedSessionPeriodID),
		NotifyWeekly: shouldNotifyNearLimit(
			p.CurrentWeeklyPercent, p.PreviousWeeklyPercent,
			weeklyPeriodID, p.LastNotifiedWeeklyPeriodID),
	}
	if decision.NotifySession {
		decision.SessionPeriodID = sessionPeriodID
	}
	if decision.NotifyWeekly {
		decision.WeeklyPeriodID = weeklyPeriodID
	}
	return decision
}

func shouldNotifyNearLimit(current float64, previous *float64, periodID, lastNotified string) bool {
	if current < NearLimitThresholdPercent {
		return false
	}
	if lastNotified != "" && lastNotified == periodID {
		return false
	}
	if previous == nil {
		return true
	}
	return *previous < NearLimitThresholdPercent
}

// ResetParams are the inputs for one reset decision. Last-seen period ids
// come from the previous poll (distinct from last-notified); empty means no
// baseline exists yet.
type ResetParams struct {
	CurrentSessionResetsAt string
	CurrentWeeklyResetsAt  string

	LastSeenSessionPeriodID string
	LastSeenWeeklyPeriodID  string

	LastNotifiedSessionResetPeriodID string
	LastNotifiedWeeklyResetPeriodID  string
}

// ResetDecision says which reset alerts to fire, with the period ids to
// persist when they do.
type ResetDecision struct {
	NotifySessionReset bool
	NotifyWeeklyReset  bool

	SessionResetPeriodID string
	WeeklyResetPeriodID  string
}

// DecideResets fires when a window's period id advances from a known
// baseline to a new concrete id that has not been notified yet. It never
// fires on the very first observation: with no prior period there is nothing
// to have reset from.
func DecideResets(p ResetParams) ResetDecision {
	sessionPeriodID := NormalizePeriodID(p.CurrentSessionResetsAt)
	weeklyPeriodID := NormalizePeriodID(p.CurrentWeeklyResetsAt)

	decision := ResetDecision{
		NotifySessionReset: shouldNotifyReset(
			sessionPeriodID, p.LastSeenSessionPeriodID, p.LastNotifiedSessionResetPeriodID),
		NotifyWeeklyReset: shouldNotifyReset(
			weeklyPeriodID, p.LastSeenWeeklyPeriodID, p.LastNotifiedWeeklyResetPeriodID),
	}
	if decision.NotifySessionReset {
		decision.SessionResetPeriodID = sessionPeriodID
	}
	if decision.NotifyWeeklyReset {
		decision.WeeklyResetPeriodID = weeklyPeriodID
	}
	return decision
}

func shouldNotifyReset(periodID, lastSeen, lastNotified string) bool {
	if periodID == "" || periodID == UnknownPeriodID {
		return false
	}
	if lastSeen == "" {
		return false
	}
	if periodID == lastSeen {
		return false
	}
	if lastNotified == periodID {
		return false
	}
	return true
}
