package game

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// TimerMode says which clock duration the countdown was last reset to.
type TimerMode string

const (
	TimerTossup TimerMode = "tossup"
	TimerBonus  TimerMode = "bonus"
)

// Timer is a single countdown clock with absolute deadline semantics. While
// running, the deadline is authoritative and the remaining time is computed
// on read; while paused, the frozen remaining value is authoritative.
//
// Timer is not goroutine safe; the owning room serializes access to it.
type Timer struct {
	clock     clockwork.Clock
	mode      TimerMode
	running   bool
	remaining time.Duration
	endsAt    time.Time
}

func newTimer(clock clockwork.Clock, settings domain.Settings) *Timer {
	return &Timer{
		clock:     clock,
		mode:      TimerTossup,
		remaining: time.Duration(settings.TossupSeconds) * time.Second,
	}
}

// Reset sets the clock to the full duration for the given mode and either
// starts it immediately or leaves it paused.
func (t *Timer) Reset(mode TimerMode, seconds int, run bool) {
	t.mode = mode
	t.remaining = time.Duration(seconds) * time.Second
	t.running = run
	if run {
		t.endsAt = t.clock.Now().Add(t.remaining)
	} else {
		t.endsAt = time.Time{}
	}
}

// Stop freezes the clock at its true remaining value, so the paused value
// reflects real elapsed time rather than anything captured earlier. No-op
// when already stopped.
func (t *Timer) Stop() {
	if !t.running {
		return
	}
	t.remaining = t.Remaining()
	t.running = false
	t.endsAt = time.Time{}
}

// Resume restarts a paused clock from its frozen remaining value. No-op when
// already running or when no time is left.
func (t *Timer) Resume() {
	if t.running || t.remaining <= 0 {
		return
	}
	t.running = true
	t.endsAt = t.clock.Now().Add(t.remaining)
}

// Remaining computes the live remaining time. Never negative.
func (t *Timer) Remaining() time.Duration {
	if !t.running {
		return t.remaining
	}
	rem := t.endsAt.Sub(t.clock.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

// Snapshot returns a point-in-time view of the clock. Pure read; callers may
// poll it at any rate.
func (t *Timer) Snapshot() TimerSnapshot {
	snap := TimerSnapshot{
		Mode:        t.mode,
		Running:     t.running,
		RemainingMs: t.Remaining().Milliseconds(),
	}
	if t.running {
		snap.EndsAtMs = t.endsAt.UnixMilli()
	}
	return snap
}

// TimerSnapshot is the serializable view of a Timer. Remaining time is kept
// in milliseconds; rounding to whole seconds is a presentation concern.
type TimerSnapshot struct {
	Mode        TimerMode `json:"mode"`
	Running     bool      `json:"running"`
	RemainingMs int64     `json:"remainingMs"`
	EndsAtMs    int64     `json:"endsAtMs,omitempty"`
}
