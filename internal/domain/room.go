package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinTeams = 2
	MaxTeams = 8

	DefaultTossupSeconds = 5
	DefaultBonusSeconds  = 20

	TossupPoints           = 4
	InterruptBenefitPoints = 4
	MaxBonusPoints         = 20
)

// Settings holds the per-room clock durations. They are fixed when the room
// is created and used whenever a clock is reset.
type Settings struct {
	TossupSeconds int `json:"tossupSeconds"`
	BonusSeconds  int `json:"bonusSeconds"`
}

// Team is one competing side. Identity and count are fixed at room creation;
// only the name and the running score change afterwards.
type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Player is one connection's membership in a room. A player is exactly one
// of host, spectator, or a team member; the team assignment is fixed at join
// time.
type Player struct {
	ConnID      uuid.UUID `json:"connectionId"`
	Name        string    `json:"name"`
	TeamID      string    `json:"teamId,omitempty"`
	IsHost      bool      `json:"isHost"`
	IsSpectator bool      `json:"isSpectator"`
}

// Buzz is the current buzz-lock state of a toss-up. InterruptChoice stays nil
// until the host classifies the buzz as a mid-reading interrupt; that
// classification gates how an incorrect answer is scored.
type Buzz struct {
	Locked          bool      `json:"locked"`
	WinnerConnID    uuid.UUID `json:"winnerConnectionId,omitempty"`
	WinnerName      string    `json:"winnerName,omitempty"`
	WinnerTeamID    string    `json:"winnerTeamId,omitempty"`
	Timestamp       time.Time `json:"timestamp,omitzero"`
	InterruptChoice *bool     `json:"interruptChoice,omitempty"`
}
