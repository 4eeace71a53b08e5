package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// recordingBroadcaster captures pushes so tests can assert on them.
type recordingBroadcaster struct {
	mu     sync.Mutex
	snaps  []*Snapshot
	closed []string
}

func (b *recordingBroadcaster) BroadcastState(code string, snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, snap)
}

func (b *recordingBroadcaster) RoomClosed(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, code)
}

func (b *recordingBroadcaster) broadcasts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snaps)
}

func (b *recordingBroadcaster) closedRooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

type fixture struct {
	clock    *clockwork.FakeClock
	registry *Registry
	bcast    *recordingBroadcaster
	room     *Room
	host     uuid.UUID
	alice    uuid.UUID // Team A
	bob      uuid.UUID // Team B
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock: clockwork.NewFakeClock(),
		bcast: &recordingBroadcaster{},
		host:  uuid.New(),
		alice: uuid.New(),
		bob:   uuid.New(),
	}
	f.registry = NewRegistry(f.clock, domain.Settings{})
	f.registry.SetBroadcaster(f.bcast)
	f.room = f.registry.Create(f.host, "Quizmaster", "Friday Night", 2)

	require.NoError(t, f.room.Join(f.alice, "alice", "A", false))
	require.NoError(t, f.room.Join(f.bob, "bob", "B", false))
	return f
}

// toLive walks the room into a live toss-up with the clock running.
func (f *fixture) toLive(t *testing.T) {
	t.Helper()
	require.NoError(t, f.room.StartTossup(f.host))
	require.NoError(t, f.room.DoneReadingTossup(f.host))
}

func (f *fixture) teamScore(id string) int {
	for _, team := range f.room.Snapshot().Teams {
		if team.ID == id {
			return team.Score
		}
	}
	return -1
}

func (f *fixture) phase() domain.Phase {
	return f.room.Snapshot().Phase
}

func TestRoom_CreateStartsInLobby(t *testing.T) {
	f := newFixture(t)

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseLobby, snap.Phase)
	assert.Equal(t, "Friday Night", snap.RoomName)
	assert.Equal(t, f.host, snap.HostConnID)
	assert.Equal(t, domain.Settings{TossupSeconds: 5, BonusSeconds: 20}, snap.Settings)
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
	assert.Empty(t, snap.Match)
	assert.Len(t, snap.Players, 3)
}

func TestRoom_StartTossupAppendsLedgerRow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.room.StartTossup(f.host))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupReading, snap.Phase)
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
	require.Len(t, snap.Match, 1)
	for _, line := range snap.Match[0].Teams {
		assert.Equal(t, &domain.RowLine{}, line)
	}
}

func TestRoom_DoneReadingStartsLiveClock(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupLive, snap.Phase)
	assert.True(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
	assert.Equal(t, f.clock.Now().Add(5*time.Second).UnixMilli(), snap.Timer.EndsAtMs)
}

func TestRoom_BuzzFreezesLiveClock(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.room.Buzz(f.alice))

	snap := f.room.Snapshot()
	assert.True(t, snap.Buzz.Locked)
	assert.Equal(t, "A", snap.Buzz.WinnerTeamID)
	assert.Equal(t, "alice", snap.Buzz.WinnerName)
	assert.Nil(t, snap.Buzz.InterruptChoice)
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(3000), snap.Timer.RemainingMs)
	assert.Equal(t, domain.PhaseTossupLive, snap.Phase)
}

func TestRoom_CorrectAnswerEntersBonus(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseBonusReading, snap.Phase)
	assert.Equal(t, "A", snap.ActiveBonusTeam)
	assert.False(t, snap.Buzz.Locked)
	assert.Equal(t, 4, f.teamScore("A"))
	require.Len(t, snap.Match, 1)
	assert.Equal(t, &domain.RowLine{TU: 4, Score: 4}, snap.Match[0].Teams["A"])
}

func TestRoom_BonusRoundAwardsAndReturnsToLobby(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))

	require.NoError(t, f.room.DoneReadingBonus(f.host))
	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseBonusLive, snap.Phase)
	assert.True(t, snap.Timer.Running)
	assert.Equal(t, TimerBonus, snap.Timer.Mode)
	assert.Equal(t, int64(20000), snap.Timer.RemainingMs)

	require.NoError(t, f.room.AwardBonus(f.host, 10))
	snap = f.room.Snapshot()
	assert.Equal(t, domain.PhaseLobby, snap.Phase)
	assert.Empty(t, snap.ActiveBonusTeam)
	assert.Equal(t, 14, f.teamScore("A"))
	assert.Equal(t, &domain.RowLine{TU: 4, B: 10, Score: 14}, snap.Match[0].Teams["A"])
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, TimerTossup, snap.Timer.Mode)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
}

func TestRoom_SkipBonusClearsWithoutScoring(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))

	require.NoError(t, f.room.SkipBonus(f.host))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseLobby, snap.Phase)
	assert.Empty(t, snap.ActiveBonusTeam)
	assert.Equal(t, 4, f.teamScore("A"))
}

func TestRoom_AwardBonusRejectsOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))

	assert.ErrorIs(t, f.room.AwardBonus(f.host, 21), domain.ErrBonusOutOfRange)
	assert.ErrorIs(t, f.room.AwardBonus(f.host, -1), domain.ErrBonusOutOfRange)
	assert.Equal(t, domain.PhaseBonusReading, f.phase())
}

func TestRoom_IncorrectInterruptAwardsBenefit(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, true))
	require.NoError(t, f.room.MarkAnswer(f.host, false))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupReading, snap.Phase)
	assert.False(t, snap.Buzz.Locked)
	assert.Equal(t, []string{"A"}, snap.LockedTeamIDs)
	assert.Equal(t, 0, f.teamScore("A"))
	assert.Equal(t, 4, f.teamScore("B"))
	assert.Equal(t, &domain.RowLine{P: 4, Score: 4}, snap.Match[0].Teams["B"])
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
}

func TestRoom_IncorrectWithoutInterruptRestartsClock(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, false))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupLive, snap.Phase)
	assert.Equal(t, []string{"A"}, snap.LockedTeamIDs)
	assert.Equal(t, 0, f.teamScore("A"))
	assert.Equal(t, 0, f.teamScore("B"))
	assert.True(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)

	// The rescheduled deadline still closes the toss-up.
	f.clock.BlockUntil(1)
	f.clock.Advance(5*time.Second + expiryMargin)
	require.Eventually(t, func() bool {
		return f.phase() == domain.PhaseTossupClosed
	}, time.Second, 5*time.Millisecond)
}

func TestRoom_LockedOutTeamCannotRebuzz(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, false))

	// Another player on the same team is excluded too.
	carol := uuid.New()
	require.NoError(t, f.room.Join(carol, "carol", "A", false))
	assert.ErrorIs(t, f.room.Buzz(carol), domain.ErrTeamLockedOut)
	assert.NoError(t, f.room.Buzz(f.bob))

	// A fresh toss-up resets the exclusions.
	require.NoError(t, f.room.ClearBuzz(f.host))
	require.NoError(t, f.room.StartTossup(f.host))
	assert.NoError(t, f.room.Buzz(carol))
}

func TestRoom_ConcurrentBuzzHasExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	players := make([]uuid.UUID, 8)
	for i := range players {
		players[i] = uuid.New()
		team := "A"
		if i%2 == 1 {
			team = "B"
		}
		require.NoError(t, f.room.Join(players[i], "p", team, false))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(players))
	for i, id := range players {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			errs[i] = f.room.Buzz(id)
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, domain.ErrBuzzLocked)
		}
	}
	assert.Equal(t, 1, winners)
	assert.True(t, f.room.Snapshot().Buzz.Locked)
}

func TestRoom_TimerExpiryClosesTossup(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	f.clock.BlockUntil(1)
	f.clock.Advance(5*time.Second + expiryMargin)

	require.Eventually(t, func() bool {
		return f.phase() == domain.PhaseTossupClosed
	}, time.Second, 5*time.Millisecond)

	snap := f.room.Snapshot()
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(0), snap.Timer.RemainingMs)
	assert.False(t, snap.Buzz.Locked)
}

func TestRoom_BuzzBeforeDeadlineSuppressesExpiry(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	f.clock.Advance(4900 * time.Millisecond)
	require.NoError(t, f.room.Buzz(f.alice))

	// The originally scheduled deadline passes; the canceled callback must
	// not close the toss-up out from under the locked buzz.
	f.clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupLive, snap.Phase)
	assert.True(t, snap.Buzz.Locked)
	assert.Equal(t, int64(100), snap.Timer.RemainingMs)
}

func TestRoom_ClearBuzzResumesClockAndReschedules(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.ClearBuzz(f.host))

	snap := f.room.Snapshot()
	assert.False(t, snap.Buzz.Locked)
	assert.True(t, snap.Timer.Running)
	assert.Equal(t, int64(3000), snap.Timer.RemainingMs)

	f.clock.BlockUntil(1)
	f.clock.Advance(3*time.Second + expiryMargin)
	require.Eventually(t, func() bool {
		return f.phase() == domain.PhaseTossupClosed
	}, time.Second, 5*time.Millisecond)
}

func TestRoom_ClearBuzzWithoutLock(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	assert.ErrorIs(t, f.room.ClearBuzz(f.host), domain.ErrNoBuzz)
}

func TestRoom_MarkAnswerRequiresClassification(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))

	assert.ErrorIs(t, f.room.MarkAnswer(f.host, true), domain.ErrInterruptUnset)
	assert.Equal(t, 0, f.teamScore("A"))
	assert.Equal(t, domain.PhaseTossupLive, f.phase())
}

func TestRoom_HostAndSpectatorCannotBuzz(t *testing.T) {
	f := newFixture(t)
	spectator := uuid.New()
	require.NoError(t, f.room.Join(spectator, "watcher", "", true))
	f.toLive(t)

	assert.ErrorIs(t, f.room.Buzz(f.host), domain.ErrCannotBuzz)
	assert.ErrorIs(t, f.room.Buzz(spectator), domain.ErrCannotBuzz)
	assert.ErrorIs(t, f.room.Buzz(uuid.New()), domain.ErrCannotBuzz)
}

func TestRoom_BuzzRejectedOutsideTossupPhases(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.room.Buzz(f.alice), domain.ErrInvalidPhase)

	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))
	assert.ErrorIs(t, f.room.Buzz(f.bob), domain.ErrInvalidPhase)
}

func TestRoom_BuzzDuringReadingLocksWithoutClock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.room.StartTossup(f.host))
	require.NoError(t, f.room.Buzz(f.alice))

	snap := f.room.Snapshot()
	assert.Equal(t, domain.PhaseTossupReading, snap.Phase)
	assert.True(t, snap.Buzz.Locked)
	assert.False(t, snap.Timer.Running)
	assert.Equal(t, int64(5000), snap.Timer.RemainingMs)
}

func TestRoom_HostOnlyCommandsRejectOthers(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.room.StartTossup(f.alice), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.DoneReadingTossup(f.alice), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.SetRoomName(f.alice, "x"), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.SetTeamName(f.alice, "A", "x"), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.ClearBuzz(f.alice), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.SetInterrupt(f.alice, true), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.MarkAnswer(f.alice, true), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.DoneReadingBonus(f.alice), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.AwardBonus(f.alice, 10), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.SkipBonus(f.alice), domain.ErrNotHost)
	assert.ErrorIs(t, f.room.DeleteRow(f.alice, 1), domain.ErrNotHost)

	// Rejected commands must not have mutated anything.
	assert.Equal(t, domain.PhaseLobby, f.phase())
}

func TestRoom_StartTossupRejectedDuringBonus(t *testing.T) {
	f := newFixture(t)
	f.toLive(t)
	require.NoError(t, f.room.Buzz(f.alice))
	require.NoError(t, f.room.SetInterrupt(f.host, false))
	require.NoError(t, f.room.MarkAnswer(f.host, true))

	assert.ErrorIs(t, f.room.StartTossup(f.host), domain.ErrInvalidPhase)
	assert.ErrorIs(t, f.room.DoneReadingTossup(f.host), domain.ErrInvalidPhase)
}

func TestRoom_JoinValidation(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.room.Join(f.alice, "again", "B", false), domain.ErrAlreadyJoined)
	assert.ErrorIs(t, f.room.Join(uuid.New(), "dave", "Z", false), domain.ErrTeamNotFound)
	assert.ErrorIs(t, f.room.Join(uuid.New(), "", "A", false), domain.ErrEmptyName)
	assert.NoError(t, f.room.Join(uuid.New(), "watcher", "", true))
}

func TestRoom_RenameRoomAndTeam(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.room.SetRoomName(f.host, "Finals"))
	require.NoError(t, f.room.SetTeamName(f.host, "A", "The Owls"))
	assert.ErrorIs(t, f.room.SetTeamName(f.host, "Z", "Nobody"), domain.ErrTeamNotFound)

	snap := f.room.Snapshot()
	assert.Equal(t, "Finals", snap.RoomName)
	assert.Equal(t, "The Owls", snap.Teams[0].Name)
}

func TestRoom_DeleteRowKeepsScores(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.room.StartTossup(f.host))
	require.NoError(t, f.room.StartTossup(f.host))

	require.NoError(t, f.room.DeleteRow(f.host, 1))
	snap := f.room.Snapshot()
	require.Len(t, snap.Match, 1)
	assert.Equal(t, 2, snap.Match[0].Num)

	assert.ErrorIs(t, f.room.DeleteRow(f.host, 1), domain.ErrRowNotFound)
}

func TestRoom_RejectedCommandDoesNotBroadcast(t *testing.T) {
	f := newFixture(t)
	before := f.bcast.broadcasts()

	require.Error(t, f.room.StartTossup(f.alice))
	assert.Equal(t, before, f.bcast.broadcasts())

	require.NoError(t, f.room.StartTossup(f.host))
	assert.Equal(t, before+1, f.bcast.broadcasts())
}

func TestRoom_LeaveIsImmediate(t *testing.T) {
	f := newFixture(t)
	f.room.Leave(f.bob)

	snap := f.room.Snapshot()
	assert.Len(t, snap.Players, 2)

	// Leaving twice is harmless and does not broadcast again.
	before := f.bcast.broadcasts()
	f.room.Leave(f.bob)
	assert.Equal(t, before, f.bcast.broadcasts())
}
