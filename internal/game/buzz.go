package game

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// Arbiter decides which participant holds the buzz for the current toss-up.
// Locking is first-writer-wins: once locked, every later attempt fails until
// the lock is cleared. The arbiter also tracks the teams excluded from the
// current toss-up after an incorrect answer.
//
// Arbiter is not goroutine safe; the owning room serializes access to it.
type Arbiter struct {
	state     domain.Buzz
	lockedOut map[string]bool
}

func newArbiter() *Arbiter {
	return &Arbiter{lockedOut: make(map[string]bool)}
}

// TryLock attempts to acquire the buzz for a team player.
func (a *Arbiter) TryLock(connID uuid.UUID, name, teamID string, at time.Time) error {
	if a.state.Locked {
		return domain.ErrBuzzLocked
	}
	if a.lockedOut[teamID] {
		return domain.ErrTeamLockedOut
	}
	a.state = domain.Buzz{
		Locked:       true,
		WinnerConnID: connID,
		WinnerName:   name,
		WinnerTeamID: teamID,
		Timestamp:    at,
	}
	return nil
}

// Clear releases the buzz lock. Lockouts are unaffected.
func (a *Arbiter) Clear() {
	a.state = domain.Buzz{}
}

// SetInterrupt records the host's classification of the locked buzz.
func (a *Arbiter) SetInterrupt(choice bool) error {
	if !a.state.Locked {
		return domain.ErrNoBuzz
	}
	a.state.InterruptChoice = &choice
	return nil
}

// LockOut excludes a team from buzzing for the rest of the current toss-up.
func (a *Arbiter) LockOut(teamID string) {
	a.lockedOut[teamID] = true
}

// ResetLockouts drops all per-toss-up exclusions. Called when a new toss-up
// starts.
func (a *Arbiter) ResetLockouts() {
	a.lockedOut = make(map[string]bool)
}

// State returns the current buzz state.
func (a *Arbiter) State() domain.Buzz { return a.state }

// LockedOutTeams returns the excluded team ids in sorted order.
func (a *Arbiter) LockedOutTeams() []string {
	ids := make([]string, 0, len(a.lockedOut))
	for id := range a.lockedOut {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
