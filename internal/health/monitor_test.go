package health

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestMonitor(threshold int, interval time.Duration) (*Monitor, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMonitor(threshold, interval)
	m.now = clock.now
	return m, clock
}

func TestMonitor_StartsHealthy(t *testing.T) {
	m, _ := newTestMonitor(3, time.Second)
	if m.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", m.State())
	}
	if snap := m.Snapshot(); snap.LastFailure != nil || snap.ConsecutiveFailures != 0 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestMonitor_UnhealthyAfterThreshold(t *testing.T) {
	m, _ := newTestMonitor(3, time.Second)

	m.RecordFailure()
	m.RecordFailure()
	if m.State() != StateHealthy {
		t.Fatal("expected healthy below threshold")
	}
	m.RecordFailure()
	if m.State() != StateUnhealthy {
		t.Errorf("expected unhealthy, got %s", m.State())
	}
}

func TestMonitor_SuccessResetsFailures(t *testing.T) {
	m, _ := newTestMonitor(2, time.Second)

	m.RecordFailure()
	m.RecordSuccess()
	m.RecordFailure()
	if m.State() != StateHealthy {
		t.Errorf("failures should be consecutive, got %s", m.State())
	}
}

func TestMonitor_ProbingAfterInterval(t *testing.T) {
	m, clock := newTestMonitor(1, 10*time.Second)

	m.RecordFailure()
	clock.t = clock.t.Add(5 * time.Second)
	if m.State() != StateUnhealthy {
		t.Fatalf("expected unhealthy inside interval, got %s", m.State())
	}

	clock.t = clock.t.Add(5 * time.Second)
	if m.State() != StateProbing {
		t.Fatalf("expected probing, got %s", m.State())
	}

	m.RecordFailure()
	if m.State() != StateUnhealthy {
		t.Errorf("failed probe should mark unhealthy again, got %s", m.State())
	}

	clock.t = clock.t.Add(10 * time.Second)
	m.RecordSuccess()
	if m.State() != StateHealthy {
		t.Errorf("expected healthy after success, got %s", m.State())
	}
}

func TestMonitor_Snapshot(t *testing.T) {
	m, clock := newTestMonitor(2, time.Minute)
	m.RecordFailure()
	m.RecordFailure()

	snap := m.Snapshot()
	if snap.State != "unhealthy" || snap.ConsecutiveFailures != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.LastFailure == nil || !snap.LastFailure.Equal(clock.t) {
		t.Errorf("expected last failure at %v, got %v", clock.t, snap.LastFailure)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateHealthy, "healthy"},
		{StateUnhealthy, "unhealthy"},
		{StateProbing, "probing"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
