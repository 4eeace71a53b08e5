package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// Broadcaster pushes room state to every subscribed connection. Pushes are
// fire-and-forget: an implementation must never block or fail the mutation
// that triggered them.
type Broadcaster interface {
	BroadcastState(code string, snap *Snapshot)
	RoomClosed(code string)
}

// expiryMargin delays the scheduled toss-up deadline slightly past zero so a
// buzz racing the deadline is observed first.
const expiryMargin = 25 * time.Millisecond

// Room is one live competition session. All mutating operations take the
// room mutex, so commands, joins, and the deadline callback apply one at a
// time in arrival order. Different rooms are fully independent.
type Room struct {
	mu sync.Mutex

	code     string
	name     string
	hostConn uuid.UUID
	settings domain.Settings

	teams   []*domain.Team
	players map[uuid.UUID]*domain.Player

	phase           domain.Phase
	activeBonusTeam string

	buzz   *Arbiter
	timer  *Timer
	ledger *Ledger

	clock       clockwork.Clock
	broadcaster Broadcaster

	// Pending toss-up deadline callback. Every schedule or cancel bumps the
	// generation; only the generation recorded at schedule time may fire.
	expiryGen  uint64
	expiryStop chan struct{}

	closed bool
}

func newRoom(code, name string, hostConn uuid.UUID, hostName string, teamCount int, settings domain.Settings, clock clockwork.Clock, b Broadcaster) *Room {
	r := &Room{
		code:        code,
		name:        name,
		hostConn:    hostConn,
		settings:    settings,
		players:     make(map[uuid.UUID]*domain.Player),
		phase:       domain.PhaseLobby,
		buzz:        newArbiter(),
		ledger:      newLedger(),
		clock:       clock,
		broadcaster: b,
	}
	for i := 0; i < teamCount; i++ {
		id := string(rune('A' + i))
		r.teams = append(r.teams, &domain.Team{ID: id, Name: "Team " + id})
	}
	r.players[hostConn] = &domain.Player{ConnID: hostConn, Name: hostName, IsHost: true}
	r.timer = newTimer(clock, settings)
	return r
}

// Code returns the room's immutable join code.
func (r *Room) Code() string { return r.code }

// IsHost reports whether the connection created this room. The host identity
// never changes, so no lock is needed.
func (r *Room) IsHost(connID uuid.UUID) bool { return connID == r.hostConn }

// update applies a mutation under the room mutex and, when it succeeds,
// pushes the resulting snapshot to all subscribers. A rejected command
// leaves state untouched and triggers no broadcast.
func (r *Room) update(fn func() error) error {
	r.mu.Lock()
	if err := fn(); err != nil {
		r.mu.Unlock()
		return err
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if r.broadcaster != nil {
		r.broadcaster.BroadcastState(r.code, snap)
	}
	return nil
}

func (r *Room) requireHost(connID uuid.UUID) error {
	if connID != r.hostConn {
		return domain.ErrNotHost
	}
	return nil
}

func (r *Room) teamByID(id string) *domain.Team {
	for _, t := range r.teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Publish broadcasts the current snapshot without mutating anything. Used
// right after a subscriber is added so it receives an initial state sync.
func (r *Room) Publish() {
	snap := r.Snapshot()
	if r.broadcaster != nil {
		r.broadcaster.BroadcastState(r.code, snap)
	}
}

// SetRoomName renames the room. Host only.
func (r *Room) SetRoomName(connID uuid.UUID, name string) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if name == "" {
			return domain.ErrEmptyName
		}
		r.name = name
		return nil
	})
}

// SetTeamName renames a team. Host only.
func (r *Room) SetTeamName(connID uuid.UUID, teamID, name string) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if name == "" {
			return domain.ErrEmptyName
		}
		team := r.teamByID(teamID)
		if team == nil {
			return domain.ErrTeamNotFound
		}
		team.Name = name
		return nil
	})
}

// Join adds a connection to the room as a team player or a spectator. The
// team assignment is fixed for the life of the membership.
func (r *Room) Join(connID uuid.UUID, name, teamID string, spectator bool) error {
	return r.update(func() error {
		if _, ok := r.players[connID]; ok {
			return domain.ErrAlreadyJoined
		}
		if name == "" {
			return domain.ErrEmptyName
		}
		p := &domain.Player{ConnID: connID, Name: name, IsSpectator: spectator}
		if !spectator {
			if r.teamByID(teamID) == nil {
				return domain.ErrTeamNotFound
			}
			p.TeamID = teamID
		}
		r.players[connID] = p
		return nil
	})
}

// Leave removes a connection from the room. Immediate and unconditional; a
// connection that was never a member is ignored.
func (r *Room) Leave(connID uuid.UUID) {
	r.mu.Lock()
	if _, ok := r.players[connID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.players, connID)
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if r.broadcaster != nil {
		r.broadcaster.BroadcastState(r.code, snap)
	}
}

// StartTossup begins reading a new toss-up: buzz and lockouts are cleared, a
// fresh ledger row is appended, and the toss-up clock is reset paused.
func (r *Room) StartTossup(connID uuid.UUID) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if r.phase.IsBonus() {
			return domain.ErrInvalidPhase
		}
		r.cancelExpiryLocked()
		r.buzz.Clear()
		r.buzz.ResetLockouts()
		r.ledger.StartRow(r.teams)
		r.timer.Reset(TimerTossup, r.settings.TossupSeconds, false)
		r.phase = domain.PhaseTossupReading
		return nil
	})
}

// DoneReadingTossup starts the live toss-up clock and schedules the
// end-of-toss-up callback.
func (r *Room) DoneReadingTossup(connID uuid.UUID) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if r.phase.IsBonus() {
			return domain.ErrInvalidPhase
		}
		r.buzz.Clear()
		r.timer.Reset(TimerTossup, r.settings.TossupSeconds, true)
		r.phase = domain.PhaseTossupLive
		r.scheduleExpiryLocked(time.Duration(r.settings.TossupSeconds) * time.Second)
		return nil
	})
}

// Buzz attempts to acquire the buzz lock for a team player. First writer
// wins; a locked buzz or a locked-out team rejects the attempt. A winning
// buzz during the live clock freezes the timer and cancels the pending
// deadline callback.
func (r *Room) Buzz(connID uuid.UUID) error {
	return r.update(func() error {
		p, ok := r.players[connID]
		if !ok || p.IsHost || p.IsSpectator || p.TeamID == "" {
			return domain.ErrCannotBuzz
		}
		if !r.phase.AllowsBuzz() {
			return domain.ErrInvalidPhase
		}
		if err := r.buzz.TryLock(connID, p.Name, p.TeamID, r.clock.Now()); err != nil {
			return err
		}
		if r.phase == domain.PhaseTossupLive {
			r.timer.Stop()
			r.cancelExpiryLocked()
		}
		log.Debug().
			Str("room", r.code).
			Str("team", p.TeamID).
			Str("player", p.Name).
			Msg("buzz locked")
		return nil
	})
}

// ClearBuzz releases the buzz lock. If the toss-up clock was frozen by the
// buzz and still has time left, it resumes and the deadline is rescheduled.
func (r *Room) ClearBuzz(connID uuid.UUID) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if !r.buzz.State().Locked {
			return domain.ErrNoBuzz
		}
		r.buzz.Clear()
		if r.phase == domain.PhaseTossupLive {
			if rem := r.timer.Remaining(); rem > 0 {
				r.timer.Resume()
				r.scheduleExpiryLocked(rem)
			}
		}
		return nil
	})
}

// SetInterrupt records whether the locked buzz interrupted the reading.
func (r *Room) SetInterrupt(connID uuid.UUID, choice bool) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		return r.buzz.SetInterrupt(choice)
	})
}

// MarkAnswer scores the locked buzz. Only valid once the host has classified
// the buzz via SetInterrupt.
//
// Correct: the buzzing team earns the toss-up points and its bonus round
// begins. Incorrect: the buzzing team is locked out of this toss-up no
// matter the classification; an interrupt additionally awards benefit points
// to every other team and re-reads the question, while a completed-reading
// miss resumes the live clock from the full duration for the remaining
// teams.
func (r *Room) MarkAnswer(connID uuid.UUID, correct bool) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		b := r.buzz.State()
		if !b.Locked {
			return domain.ErrNoBuzz
		}
		if b.InterruptChoice == nil {
			return domain.ErrInterruptUnset
		}
		team := r.teamByID(b.WinnerTeamID)
		if team == nil {
			return domain.ErrTeamNotFound
		}

		if correct {
			r.cancelExpiryLocked()
			team.Score += domain.TossupPoints
			r.ledger.RecordTossup(team.ID, domain.TossupPoints, team.Score)
			r.buzz.Clear()
			r.activeBonusTeam = team.ID
			r.timer.Reset(TimerBonus, r.settings.BonusSeconds, false)
			r.phase = domain.PhaseBonusReading
			return nil
		}

		// An incorrect answer always costs the buzzing team its right to
		// buzz again this toss-up, even when no points change hands.
		r.buzz.LockOut(team.ID)
		interrupt := *b.InterruptChoice
		r.buzz.Clear()

		if interrupt {
			for _, other := range r.teams {
				if other.ID == team.ID {
					continue
				}
				other.Score += domain.InterruptBenefitPoints
				r.ledger.RecordBenefit(other.ID, domain.InterruptBenefitPoints, other.Score)
			}
			r.cancelExpiryLocked()
			r.timer.Reset(TimerTossup, r.settings.TossupSeconds, false)
			r.phase = domain.PhaseTossupReading
			return nil
		}

		r.timer.Reset(TimerTossup, r.settings.TossupSeconds, true)
		r.phase = domain.PhaseTossupLive
		r.scheduleExpiryLocked(time.Duration(r.settings.TossupSeconds) * time.Second)
		return nil
	})
}

// DoneReadingBonus starts the live bonus clock.
func (r *Room) DoneReadingBonus(connID uuid.UUID) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if !r.phase.IsBonus() {
			return domain.ErrInvalidPhase
		}
		r.timer.Reset(TimerBonus, r.settings.BonusSeconds, true)
		r.phase = domain.PhaseBonusLive
		return nil
	})
}

// AwardBonus credits the active bonus team and returns the room to the
// lobby with a paused toss-up clock.
func (r *Room) AwardBonus(connID uuid.UUID, points int) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if !r.phase.IsBonus() {
			return domain.ErrInvalidPhase
		}
		if points < 0 || points > domain.MaxBonusPoints {
			return domain.ErrBonusOutOfRange
		}
		team := r.teamByID(r.activeBonusTeam)
		if team == nil {
			return domain.ErrInvalidPhase
		}
		team.Score += points
		r.ledger.RecordBonus(team.ID, points, team.Score)
		r.activeBonusTeam = ""
		r.timer.Reset(TimerTossup, r.settings.TossupSeconds, false)
		r.phase = domain.PhaseLobby
		return nil
	})
}

// SkipBonus abandons the bonus round without a score change.
func (r *Room) SkipBonus(connID uuid.UUID) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		if !r.phase.IsBonus() {
			return domain.ErrInvalidPhase
		}
		r.activeBonusTeam = ""
		r.timer.Reset(TimerTossup, r.settings.TossupSeconds, false)
		r.phase = domain.PhaseLobby
		return nil
	})
}

// DeleteRow removes a ledger row. Host only; historical scores in other
// rows are not recomputed.
func (r *Room) DeleteRow(connID uuid.UUID, num int) error {
	return r.update(func() error {
		if err := r.requireHost(connID); err != nil {
			return err
		}
		return r.ledger.DeleteRow(num)
	})
}

// scheduleExpiryLocked arms the end-of-toss-up callback for the given
// remaining duration, replacing any pending one.
func (r *Room) scheduleExpiryLocked(d time.Duration) {
	r.cancelExpiryLocked()
	r.expiryGen++
	gen := r.expiryGen
	stop := make(chan struct{})
	r.expiryStop = stop
	timer := r.clock.NewTimer(d + expiryMargin)
	go func() {
		select {
		case <-timer.Chan():
			r.tossupDeadline(gen)
		case <-stop:
			stopAndDrainTimer(timer)
		}
	}()
}

// cancelExpiryLocked invalidates any pending deadline callback. Bumping the
// generation guarantees a callback that already left its select can still
// never transition the room.
func (r *Room) cancelExpiryLocked() {
	r.expiryGen++
	if r.expiryStop != nil {
		close(r.expiryStop)
		r.expiryStop = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel so the goroutine
// waiting on it can exit.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

// tossupDeadline is the scheduled end-of-toss-up callback. It re-validates
// against current state, not anything captured at schedule time: the room
// must still exist, the phase must still be the live toss-up, no buzz may
// hold the lock, and the live-computed remaining time must be zero.
// Otherwise it is a silent no-op.
func (r *Room) tossupDeadline(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.expiryGen || r.phase != domain.PhaseTossupLive ||
		r.buzz.State().Locked || r.timer.Remaining() > 0 {
		r.mu.Unlock()
		return
	}
	r.expiryStop = nil
	r.timer.Stop()
	r.buzz.Clear()
	r.phase = domain.PhaseTossupClosed
	snap := r.snapshotLocked()
	r.mu.Unlock()
	log.Debug().Str("room", r.code).Msg("toss-up clock expired")
	if r.broadcaster != nil {
		r.broadcaster.BroadcastState(r.code, snap)
	}
}

// shutdown marks the room dead and cancels any pending callback. Called by
// the registry on teardown.
func (r *Room) shutdown() {
	r.mu.Lock()
	r.closed = true
	r.cancelExpiryLocked()
	r.mu.Unlock()
}
