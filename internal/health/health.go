// Package health tracks per-source availability as a small state
// machine driven by consecutive failures: Healthy -> Degraded ->
// Unavailable, with a cool-down and a single half-open trial on the
// way back. The monitor is independent of any single request; the
// orchestrator feeds it outcomes and asks it which sources are worth
// attempting.
package health

import (
	"sort"
	"sync"
	"time"

	"financeprovider/internal/source"
)

type State string

const (
	StateHealthy     State = "healthy"
	StateDegraded    State = "degraded"
	StateUnavailable State = "unavailable"
)

// Record is a read-only view of one source's health, as returned by
// Snapshot for status endpoints.
type Record struct {
	Source              string    `json:"source"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at,omitzero"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	UnavailableUntil    time.Time `json:"unavailable_until,omitzero"`
	TrialInFlight       bool      `json:"trial_in_flight,omitempty"`
}

// Config holds the failure thresholds and cool-down windows. The zero
// value is usable; missing fields fall back to defaults.
type Config struct {
	// DegradedThreshold is the consecutive-failure count at which a
	// source is marked Degraded (still eligible, informational only).
	DegradedThreshold int
	// UnavailableThreshold (> DegradedThreshold) is the count at
	// which the circuit opens and the source stops being selected.
	UnavailableThreshold int
	// CoolDown is how long an Unavailable source sits out before one
	// half-open trial is permitted.
	CoolDown time.Duration
	// AuthCoolDown applies when the circuit trips on an auth or
	// quota failure; retrying those soon is pointless.
	AuthCoolDown time.Duration
}

func (c Config) withDefaults() Config {
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = 2
	}
	if c.UnavailableThreshold <= c.DegradedThreshold {
		c.UnavailableThreshold = c.DegradedThreshold + 3
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 5 * time.Minute
	}
	if c.AuthCoolDown <= 0 {
		c.AuthCoolDown = 15 * time.Minute
	}
	return c
}

// record is the mutable per-source state. Each record carries its own
// mutex so updates for one source never serialize another.
type record struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	unavailableUntil    time.Time
	trialInFlight       bool
}

// Monitor owns one record per source. All mutation goes through
// RecordSuccess/RecordFailure/ForceReset; callers never touch records.
type Monitor struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	records map[string]*record
}

func NewMonitor(cfg Config, sources ...string) *Monitor {
	m := &Monitor{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		records: make(map[string]*record, len(sources)),
	}
	for _, s := range sources {
		m.records[s] = &record{state: StateHealthy}
	}
	return m
}

// SetClock replaces the monitor's time source. Test hook.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

func (m *Monitor) get(name string) *record {
	m.mu.RLock()
	r, ok := m.records[name]
	m.mu.RUnlock()
	if ok {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.records[name]; ok {
		return r
	}
	r = &record{state: StateHealthy}
	m.records[name] = r
	return r
}

// RecordSuccess resets the failure streak and closes the circuit. A
// succeeding half-open trial lands here, returning the source to
// ordinary rotation.
func (m *Monitor) RecordSuccess(name string) {
	r := m.get(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateHealthy
	r.consecutiveFailures = 0
	r.lastSuccessAt = m.now()
	r.unavailableUntil = time.Time{}
	r.trialInFlight = false
}

// RecordFailure counts a failure of the given kind against the source.
// InvalidRequest and NotFound never count: neither says anything about
// the source's own health.
func (m *Monitor) RecordFailure(name string, kind source.ErrorKind) {
	if kind == source.ErrorInvalidRequest || kind == source.ErrorNotFound {
		return
	}
	r := m.get(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := m.now()
	r.consecutiveFailures++
	r.lastFailureAt = now
	wasTrial := r.trialInFlight
	r.trialInFlight = false

	switch {
	case kind == source.ErrorUpstreamAuth:
		// Explicit circuit trip with the extended window.
		r.state = StateUnavailable
		r.unavailableUntil = now.Add(m.cfg.AuthCoolDown)
	case wasTrial:
		// Failed half-open trial: back to Unavailable with a fresh window.
		r.state = StateUnavailable
		r.unavailableUntil = now.Add(m.cfg.CoolDown)
	case r.consecutiveFailures >= m.cfg.UnavailableThreshold:
		r.state = StateUnavailable
		r.unavailableUntil = now.Add(m.cfg.CoolDown)
	case r.consecutiveFailures >= m.cfg.DegradedThreshold:
		r.state = StateDegraded
	}
}

// Eligible reports whether the source may be selected. Unavailable
// sources are eligible only once their cool-down elapsed, when
// allowHalfOpen is set, and while no other trial is outstanding.
func (m *Monitor) Eligible(name string, allowHalfOpen bool) bool {
	r := m.get(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateUnavailable {
		return true
	}
	return allowHalfOpen && !r.trialInFlight && !m.now().Before(r.unavailableUntil)
}

// BeginTrial atomically claims the single half-open slot for an
// Unavailable source whose cool-down has elapsed. The claim is
// released by RecordSuccess, RecordFailure or AbortTrial.
func (m *Monitor) BeginTrial(name string) bool {
	r := m.get(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateUnavailable || r.trialInFlight || m.now().Before(r.unavailableUntil) {
		return false
	}
	r.trialInFlight = true
	return true
}

// AbortTrial releases an unused trial claim without recording an
// outcome, e.g. when a higher-priority source already answered.
func (m *Monitor) AbortTrial(name string) {
	r := m.get(name)
	r.mu.Lock()
	r.trialInFlight = false
	r.mu.Unlock()
}

// ForceReset is the administrative override back to Healthy.
func (m *Monitor) ForceReset(name string) {
	r := m.get(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateHealthy
	r.consecutiveFailures = 0
	r.unavailableUntil = time.Time{}
	r.trialInFlight = false
}

// Snapshot returns a point-in-time view of every record, sorted by
// source name.
func (m *Monitor) Snapshot() []Record {
	m.mu.RLock()
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	out := make([]Record, 0, len(names))
	for _, name := range names {
		r := m.get(name)
		r.mu.Lock()
		out = append(out, Record{
			Source:              name,
			State:               r.state,
			ConsecutiveFailures: r.consecutiveFailures,
			LastSuccessAt:       r.lastSuccessAt,
			LastFailureAt:       r.lastFailureAt,
			UnavailableUntil:    r.unavailableUntil,
			TrialInFlight:       r.trialInFlight,
		})
		r.mu.Unlock()
	}
	return out
}
