package domain

import "errors"

// Room lookup and authorization errors
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotHost      = errors.New("only the host can perform this action")
)

// Phase and input errors
var (
	ErrInvalidPhase    = errors.New("action not allowed in the current phase")
	ErrEmptyName       = errors.New("name must not be empty")
	ErrTeamNotFound    = errors.New("team not found")
	ErrRowNotFound     = errors.New("ledger row not found")
	ErrBonusOutOfRange = errors.New("bonus points must be between 0 and 20")
	ErrInterruptUnset  = errors.New("buzz must be classified before marking the answer")
	ErrNoBuzz          = errors.New("no buzz is currently locked")
)

// Buzz and membership conflicts
var (
	ErrBuzzLocked    = errors.New("buzz is already locked")
	ErrTeamLockedOut = errors.New("team is locked out of this toss-up")
	ErrCannotBuzz    = errors.New("only team players can buzz")
	ErrAlreadyJoined = errors.New("connection already joined this room")
)
