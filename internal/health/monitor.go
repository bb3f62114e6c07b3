// Package health tracks whether the administration backend is answering,
// judged from the outcomes of the console's own backend calls.
package health

import (
	"sync"
	"time"
)

// State is the backend health as seen by the console.
type State int

const (
	StateHealthy   State = iota // calls succeed
	StateUnhealthy              // failure threshold reached
	StateProbing                // probe interval elapsed, waiting for the next outcome
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateUnhealthy:
		return "unhealthy"
	case StateProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// Monitor is a passive breaker over backend call outcomes. It never blocks
// calls; it only reports.
type Monitor struct {
	mu sync.Mutex

	state       State
	failures    int
	lastFailure time.Time
	markedAt    time.Time

	failureThreshold int
	probeInterval    time.Duration
	now              func() time.Time
}

// NewMonitor marks the backend unhealthy after failureThreshold consecutive
// failures and moves to probing once probeInterval has passed.
func NewMonitor(failureThreshold int, probeInterval time.Duration) *Monitor {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	return &Monitor{
		state:            StateHealthy,
		failureThreshold: failureThreshold,
		probeInterval:    probeInterval,
		now:              time.Now,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentState()
}

// currentState must be called with mu held.
func (m *Monitor) currentState() State {
	if m.state == StateUnhealthy && m.now().Sub(m.markedAt) >= m.probeInterval {
		m.state = StateProbing
	}
	return m.state
}

func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateHealthy
	m.failures = 0
}

func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	m.lastFailure = m.now()

	switch m.currentState() {
	case StateHealthy:
		if m.failures >= m.failureThreshold {
			m.state = StateUnhealthy
			m.markedAt = m.lastFailure
		}
	case StateProbing:
		m.state = StateUnhealthy
		m.markedAt = m.lastFailure
	}
}

// Snapshot is the JSON view served on the health endpoint.
type Snapshot struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		State:               m.currentState().String(),
		ConsecutiveFailures: m.failures,
	}
	if !m.lastFailure.IsZero() {
		last := m.lastFailure
		snap.LastFailure = &last
	}
	return snap
}
