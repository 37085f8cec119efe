package alerts

import (
	"log/slog"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/store"
)

const notificationTitle = "ClaudeWatch"

// Notifier shows a notification. Implementations are best-effort; a missing
// notification daemon is not an error condition for the engine.
type Notifier interface {
	Show(title, body string) error
}

// Engine applies the alert decisions to a stream of snapshots. Persisted
// dedup markers live in the store and survive restarts; last-seen baselines
// and previous percents are process-lifetime only, which is exactly what the
// reset rule needs (never fire without an observed baseline).
type Engine struct {
	store    *store.Store
	notifier Notifier
	logger   *slog.Logger

	baselines map[string]periodBaseline
	previous  map[string]observedPercents
}

type periodBaseline struct {
	sessionPeriodID string
	weeklyPeriodID  string
}

type observedPercents struct {
	session float64
	weekly  float64
}

// NewEngine creates an alert engine.
func NewEngine(st *store.Store, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		notifier:  notifier,
		logger:    logger,
		baselines: make(map[string]periodBaseline),
		previous:  make(map[string]observedPercents),
	}
}

// Process evaluates one snapshot. Only ok snapshots carry usage; everything
// else passes through untouched. Called from the poll goroutine only.
func (e *Engine) Process(snapshot api.Snapshot) {
	if !snapshot.OK() {
		return
	}
	orgID := snapshot.OrganizationID
	usage := snapshot.Usage

	e.checkNearLimit(orgID, usage)
	e.checkResets(orgID, usage)

	// Baselines and previous percents update regardless of whether anything
	// fired, so enabling notifications later behaves correctly from that
	// point forward.
	e.updateBaseline(orgID, usage)
	e.previous[orgID] = observedPercents{session: usage.SessionPercent, weekly: usage.WeeklyPercent}
}

func (e *Engine) checkNearLimit(orgID string, usage *api.Usage) {
	params := NearLimitParams{
		CurrentSessionPercent:       usage.SessionPercent,
		CurrentWeeklyPercent:        usage.WeeklyPercent,
		CurrentSessionResetsAt:      usage.SessionResetsAt,
		CurrentWeeklyResetsAt:       usage.WeeklyResetsAt,
		LastNotifiedSessionPeriodID: e.marker(orgID, PeriodSession, AlertNearLimit),
		LastNotifiedWeeklyPeriodID:  e.marker(orgID, PeriodWeekly, AlertNearLimit),
	}
	if prev, ok := e.previous[orgID]; ok {
		session, weekly := prev.session, prev.weekly
		params.PreviousSessionPercent = &session
		params.PreviousWeeklyPercent = &weekly
	}

	decision := DecideNearLimit(params)

	if decision.NotifySession {
		e.show("Session usage is near the limit (>= 90%).")
		e.persistMarker(orgID, PeriodSession, AlertNearLimit, decision.SessionPeriodID)
	}
	if decision.NotifyWeekly {
		e.show("Weekly usage is near the limit (>= 90%).")
		e.persistMarker(orgID, PeriodWeekly, AlertNearLimit, decision.WeeklyPeriodID)
	}
}

func (e *Engine) checkResets(orgID string, usage *api.Usage) {
	baseline := e.baselines[orgID]

	decision := DecideResets(ResetParams{
		CurrentSessionResetsAt:           usage.SessionResetsAt,
		CurrentWeeklyResetsAt:            usage.WeeklyResetsAt,
		LastSeenSessionPeriodID:          baseline.sessionPeriodID,
		LastSeenWeeklyPeriodID:           baseline.weeklyPeriodID,
		LastNotifiedSessionResetPeriodID: e.marker(orgID, PeriodSession, AlertReset),
		LastNotifiedWeeklyResetPeriodID:  e.marker(orgID, PeriodWeekly, AlertReset),
	})

	enabled, err := e.store.GetBoolSetting(store.KeyNotifyOnUsageReset, false)
	if err != nil {
		e.logger.Warn("Failed to read reset notification setting", "error", err)
	}
	if !enabled {
		return
	}

	if decision.NotifySessionReset {
		e.show("Session usage window has reset.")
		e.persistMarker(orgID, PeriodSession, AlertReset, decision.SessionResetPeriodID)
	}
	if decision.NotifyWeeklyReset {
		e.show("Weekly usage window has reset.")
		e.persistMarker(orgID, PeriodWeekly, AlertReset, decision.WeeklyResetPeriodID)
	}
}

func (e *Engine) updateBaseline(orgID string, usage *api.Usage) {
	baseline := e.baselines[orgID]
	if id := NormalizePeriodID(usage.SessionResetsAt); id != UnknownPeriodID {
		baseline.sessionPeriodID = id
	}
	if id := NormalizePeriodID(usage.WeeklyResetsAt); id != UnknownPeriodID {
		baseline.weeklyPeriodID = id
	}
	e.baselines[orgID] = baseline
}

func (e *Engine) marker(orgID, periodKind, alertKind string) string {
	periodID, err := e.store.Marker(orgID, periodKind, alertKind)
	if err != nil {
		e.logger.Warn("Failed to read alert marker",
			"org", orgID, "period", periodKind, "alert", alertKind, "error", err)
		return ""
	}
	return periodID
}

func (e *Engine) persistMarker(orgID, periodKind, alertKind, periodID string) {
	if err := e.store.SetMarker(orgID, periodKind, alertKind, periodID); err != nil {
		e.logger.Error("Failed to persist alert marker",
			"org", orgID, "period", periodKind, "alert", alertKind, "error", err)
	}
}

func (e *Engine) show(body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Show(notificationTitle, body); err != nil {
		e.logger.Debug("Notification delivery failed", "error", err)
	}
}
