package health_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"financeprovider/internal/health"
	"financeprovider/internal/source"
)

func newMonitor(t *testing.T, now *time.Time) *health.Monitor {
	t.Helper()
	m := health.NewMonitor(health.Config{
		DegradedThreshold:    2,
		UnavailableThreshold: 5,
		CoolDown:             5 * time.Minute,
		AuthCoolDown:         15 * time.Minute,
	}, "alpha", "beta")
	m.SetClock(func() time.Time { return *now })
	return m
}

func stateOf(t *testing.T, m *health.Monitor, name string) health.Record {
	t.Helper()
	for _, r := range m.Snapshot() {
		if r.Source == name {
			return r
		}
	}
	t.Fatalf("no record for %s", name)
	return health.Record{}
}

func TestFailureThresholds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	require.Equal(t, health.StateHealthy, stateOf(t, m, "alpha").State)

	m.RecordFailure("alpha", source.ErrorTransient)
	require.Equal(t, health.StateHealthy, stateOf(t, m, "alpha").State)

	m.RecordFailure("alpha", source.ErrorTransient)
	require.Equal(t, health.StateDegraded, stateOf(t, m, "alpha").State)
	// Degraded sources remain eligible.
	require.True(t, m.Eligible("alpha", false))

	m.RecordFailure("alpha", source.ErrorTransient)
	m.RecordFailure("alpha", source.ErrorTransient)
	require.Equal(t, health.StateDegraded, stateOf(t, m, "alpha").State)

	m.RecordFailure("alpha", source.ErrorTransient)
	require.Equal(t, health.StateUnavailable, stateOf(t, m, "alpha").State)
	require.False(t, m.Eligible("alpha", false))

	// The other source is unaffected.
	require.Equal(t, health.StateHealthy, stateOf(t, m, "beta").State)
}

func TestNotFoundAndInvalidRequestDoNotCount(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	for range 10 {
		m.RecordFailure("alpha", source.ErrorNotFound)
		m.RecordFailure("alpha", source.ErrorInvalidRequest)
	}
	rec := stateOf(t, m, "alpha")
	require.Equal(t, health.StateHealthy, rec.State)
	require.Zero(t, rec.ConsecutiveFailures)
}

func TestSuccessResetsStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	m.RecordFailure("alpha", source.ErrorTransient)
	m.RecordFailure("alpha", source.ErrorTransient)
	require.Equal(t, health.StateDegraded, stateOf(t, m, "alpha").State)

	m.RecordSuccess("alpha")
	rec := stateOf(t, m, "alpha")
	require.Equal(t, health.StateHealthy, rec.State)
	require.Zero(t, rec.ConsecutiveFailures)
}

func TestAuthFailureTripsImmediately(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	m.RecordFailure("alpha", source.ErrorUpstreamAuth)
	rec := stateOf(t, m, "alpha")
	require.Equal(t, health.StateUnavailable, rec.State)
	require.Equal(t, now.Add(15*time.Minute), rec.UnavailableUntil)

	// Still parked after the ordinary cool-down.
	now = now.Add(6 * time.Minute)
	require.False(t, m.BeginTrial("alpha"))

	// Eligible for a trial once the extended window elapsed.
	now = now.Add(10 * time.Minute)
	require.True(t, m.BeginTrial("alpha"))
}

func TestHalfOpenTrialSingleClaim(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	for range 5 {
		m.RecordFailure("alpha", source.ErrorTransient)
	}
	require.Equal(t, health.StateUnavailable, stateOf(t, m, "alpha").State)

	// No trial before the cool-down elapses.
	require.False(t, m.BeginTrial("alpha"))

	now = now.Add(5*time.Minute + time.Second)
	require.True(t, m.BeginTrial("alpha"))
	// The slot is claimed; a concurrent fetch cannot claim a second one.
	require.False(t, m.BeginTrial("alpha"))
	require.False(t, m.Eligible("alpha", true))

	// A failed trial re-opens the circuit with a fresh window.
	m.RecordFailure("alpha", source.ErrorTransient)
	rec := stateOf(t, m, "alpha")
	require.Equal(t, health.StateUnavailable, rec.State)
	require.Equal(t, now.Add(5*time.Minute), rec.UnavailableUntil)
	require.False(t, m.BeginTrial("alpha"))

	// A succeeding trial closes it.
	now = now.Add(5*time.Minute + time.Second)
	require.True(t, m.BeginTrial("alpha"))
	m.RecordSuccess("alpha")
	require.Equal(t, health.StateHealthy, stateOf(t, m, "alpha").State)
	require.True(t, m.Eligible("alpha", false))
}

func TestAbortTrialReleasesSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	for range 5 {
		m.RecordFailure("alpha", source.ErrorTransient)
	}
	now = now.Add(6 * time.Minute)
	require.True(t, m.BeginTrial("alpha"))
	require.False(t, m.BeginTrial("alpha"))

	m.AbortTrial("alpha")
	// The slot is free again and the source is still Unavailable.
	require.Equal(t, health.StateUnavailable, stateOf(t, m, "alpha").State)
	require.True(t, m.BeginTrial("alpha"))
}

func TestForceReset(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	m.RecordFailure("alpha", source.ErrorUpstreamAuth)
	require.Equal(t, health.StateUnavailable, stateOf(t, m, "alpha").State)

	m.ForceReset("alpha")
	rec := stateOf(t, m, "alpha")
	require.Equal(t, health.StateHealthy, rec.State)
	require.Zero(t, rec.ConsecutiveFailures)
	require.True(t, m.Eligible("alpha", false))
}

func TestSnapshotSorted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newMonitor(t, &now)

	recs := m.Snapshot()
	require.Len(t, recs, 2)
	require.Equal(t, "alpha", recs[0].Source)
	require.Equal(t, "beta", recs[1].Source)
}
