package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/store"
)

type recordingNotifier struct {
	bodies []string
}

func (r *recordingNotifier) Show(_, body string) error {
	r.bodies = append(r.bodies, body)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *recordingNotifier, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	notifier := &recordingNotifier{}
	return NewEngine(st, notifier, nil), notifier, st
}

func okSnapshot(session, weekly float64, sessionResets, weeklyResets string) api.Snapshot {
	return api.OkSnapshot("org-1", api.Usage{
		SessionPercent:  session,
		SessionResetsAt: sessionResets,
		WeeklyPercent:   weekly,
		WeeklyResetsAt:  weeklyResets,
	})
}

func TestEngine_IgnoresFailedSnapshots(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)

	engine.Process(api.FailedSnapshot(api.StatusUnauthorized, "org-1", "Unauthorized."))
	engine.Process(api.FailedSnapshot(api.StatusError, "org-1", "boom"))

	assert.Empty(t, notifier.bodies)
}

func TestEngine_NearLimit_FiresOncePerPeriod(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)

	engine.Process(okSnapshot(50, 10, "s1", "w1"))
	assert.Empty(t, notifier.bodies)

	engine.Process(okSnapshot(92, 10, "s1", "w1"))
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "Session usage is near the limit (>= 90%).", notifier.bodies[0])

	// Still above threshold, same period: no repeat.
	engine.Process(okSnapshot(95, 10, "s1", "w1"))
	assert.Len(t, notifier.bodies, 1)

	// New period, crossing again: fires again.
	engine.Process(okSnapshot(10, 10, "s2", "w1"))
	engine.Process(okSnapshot(91, 10, "s2", "w1"))
	assert.Len(t, notifier.bodies, 2)
}

func TestEngine_NearLimit_MarkerSurvivesRestart(t *testing.T) {
	st, err := store.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	notifier := &recordingNotifier{}
	engine := NewEngine(st, notifier, nil)
	engine.Process(okSnapshot(50, 10, "s1", "w1"))
	engine.Process(okSnapshot(92, 10, "s1", "w1"))
	require.Len(t, notifier.bodies, 1)

	// A fresh engine over the same store must not re-notify the same period,
	// even though it has no in-memory previous percents.
	engine2 := NewEngine(st, notifier, nil)
	engine2.Process(okSnapshot(95, 10, "s1", "w1"))
	assert.Len(t, notifier.bodies, 1)
}

func TestEngine_WeeklyNearLimit(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)

	engine.Process(okSnapshot(10, 85, "s1", "w1"))
	engine.Process(okSnapshot(10, 93, "s1", "w1"))

	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "Weekly usage is near the limit (>= 90%).", notifier.bodies[0])
}

func TestEngine_Resets_GatedBySetting(t *testing.T) {
	engine, notifier, st := newTestEngine(t)

	// Disabled by default: advancing periods stays silent.
	engine.Process(okSnapshot(10, 10, "s1", "w1"))
	engine.Process(okSnapshot(10, 10, "s2", "w1"))
	assert.Empty(t, notifier.bodies)

	require.NoError(t, st.SetSetting(store.KeyNotifyOnUsageReset, "true"))

	engine.Process(okSnapshot(10, 10, "s3", "w1"))
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "Session usage window has reset.", notifier.bodies[0])

	// Same period again: no repeat.
	engine.Process(okSnapshot(10, 10, "s3", "w1"))
	assert.Len(t, notifier.bodies, 1)
}

func TestEngine_Resets_NeverFireWithoutBaseline(t *testing.T) {
	engine, notifier, st := newTestEngine(t)
	require.NoError(t, st.SetSetting(store.KeyNotifyOnUsageReset, "true"))

	// First-ever observation: nothing to have reset from.
	engine.Process(okSnapshot(10, 10, "s1", "w1"))
	assert.Empty(t, notifier.bodies)
}

func TestEngine_Resets_BaselineUpdatesWhileGated(t *testing.T) {
	engine, notifier, st := newTestEngine(t)

	// Observed while disabled: baseline still advances.
	engine.Process(okSnapshot(10, 10, "s1", "w1"))
	engine.Process(okSnapshot(10, 10, "s2", "w2"))

	require.NoError(t, st.SetSetting(store.KeyNotifyOnUsageReset, "true"))

	// The next advance fires exactly once per metric.
	engine.Process(okSnapshot(10, 10, "s3", "w3"))
	assert.Len(t, notifier.bodies, 2)
	assert.Contains(t, notifier.bodies, "Session usage window has reset.")
	assert.Contains(t, notifier.bodies, "Weekly usage window has reset.")
}

func TestEngine_UnknownPeriod_NeverTriggersReset(t *testing.T) {
	engine, notifier, st := newTestEngine(t)
	require.NoError(t, st.SetSetting(store.KeyNotifyOnUsageReset, "true"))

	engine.Process(okSnapshot(10, 10, "s1", "w1"))
	// Reset string disappears: the unknown id must not look like an advance,
	// and the known baseline must survive it.
	engine.Process(okSnapshot(10, 10, "", "w1"))
	assert.Empty(t, notifier.bodies)

	// When the string comes back different, the reset is detected.
	engine.Process(okSnapshot(10, 10, "s2", "w1"))
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "Session usage window has reset.", notifier.bodies[0])
}

func TestEngine_OrganizationsAreIndependent(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)

	a := api.OkSnapshot("org-a", api.Usage{SessionPercent: 95, SessionResetsAt: "s1"})
	b := api.OkSnapshot("org-b", api.Usage{SessionPercent: 95, SessionResetsAt: "s1"})

	engine.Process(a)
	engine.Process(b)

	// Both first observations above threshold fire, deduped per org.
	assert.Len(t, notifier.bodies, 2)

	engine.Process(a)
	engine.Process(b)
	assert.Len(t, notifier.bodies, 2)
}
