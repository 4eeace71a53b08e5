package game

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// Snapshot is the full fixed-shape projection of a room, pushed to every
// subscriber after each accepted mutation. There is no delta protocol; the
// complete state is re-sent every time.
type Snapshot struct {
	Code            string          `json:"code"`
	RoomName        string          `json:"roomName"`
	HostConnID      uuid.UUID       `json:"hostConnectionId"`
	Settings        domain.Settings `json:"settings"`
	Phase           domain.Phase    `json:"phase"`
	ActiveBonusTeam string          `json:"activeBonusTeamId,omitempty"`
	Teams           []domain.Team   `json:"teams"`
	Players         []domain.Player `json:"players"`
	Buzz            domain.Buzz     `json:"buzz"`
	Timer           TimerSnapshot   `json:"timer"`
	LockedTeamIDs   []string        `json:"lockedTeamIds"`
	Match           []domain.Row    `json:"match"`
}

// Snapshot builds the current projection of the room.
func (r *Room) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// snapshotLocked copies everything it exports, so the snapshot stays valid
// after the room mutex is released and later mutations cannot race a
// subscriber still serializing it.
func (r *Room) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Code:            r.code,
		RoomName:        r.name,
		HostConnID:      r.hostConn,
		Settings:        r.settings,
		Phase:           r.phase,
		ActiveBonusTeam: r.activeBonusTeam,
		Timer:           r.timer.Snapshot(),
		LockedTeamIDs:   r.buzz.LockedOutTeams(),
	}

	snap.Teams = make([]domain.Team, 0, len(r.teams))
	for _, t := range r.teams {
		snap.Teams = append(snap.Teams, *t)
	}

	snap.Players = make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		snap.Players = append(snap.Players, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].ConnID.String() < snap.Players[j].ConnID.String()
	})

	// An unlocked buzz is redacted to just {locked:false}.
	if b := r.buzz.State(); b.Locked {
		if b.InterruptChoice != nil {
			choice := *b.InterruptChoice
			b.InterruptChoice = &choice
		}
		snap.Buzz = b
	}

	rows := r.ledger.Rows()
	snap.Match = make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		cp := domain.Row{Num: row.Num, Teams: make(map[string]*domain.RowLine, len(row.Teams))}
		for id, line := range row.Teams {
			l := *line
			cp.Teams[id] = &l
		}
		snap.Match = append(snap.Match, cp)
	}

	return snap
}
