package domain

// Phase is the round state a room is currently in. A room starts in the
// lobby and cycles through toss-up and bonus phases indefinitely.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseTossupReading Phase = "tossup_reading"
	PhaseTossupLive    Phase = "tossup_live"
	PhaseTossupClosed  Phase = "tossup_closed"
	PhaseBonusReading  Phase = "bonus_reading"
	PhaseBonusLive     Phase = "bonus_live"
)

// IsBonus reports whether the room is in a bonus round.
func (p Phase) IsBonus() bool {
	return p == PhaseBonusReading || p == PhaseBonusLive
}

// AllowsBuzz reports whether participants may buzz in this phase.
func (p Phase) AllowsBuzz() bool {
	return p == PhaseTossupReading || p == PhaseTossupLive
}
