package game

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
)

// Registry is the process-wide index of live rooms, keyed by room code.
// Rooms are created by a host connection and torn down when that connection
// goes away.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	clock       clockwork.Clock
	settings    domain.Settings
	broadcaster Broadcaster
}

// NewRegistry creates an empty registry. Zero or negative clock settings
// fall back to the defaults.
func NewRegistry(clock clockwork.Clock, settings domain.Settings) *Registry {
	if settings.TossupSeconds <= 0 {
		settings.TossupSeconds = domain.DefaultTossupSeconds
	}
	if settings.BonusSeconds <= 0 {
		settings.BonusSeconds = domain.DefaultBonusSeconds
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		clock:    clock,
		settings: settings,
	}
}

// SetBroadcaster wires in the delivery layer. Must be called before the
// first room is created.
func (g *Registry) SetBroadcaster(b Broadcaster) {
	g.broadcaster = b
}

// Create makes a new room with a fresh unique code and the requesting
// connection as host. Team count is clamped to the allowed range and teams
// are named "Team A" onward.
func (g *Registry) Create(hostConn uuid.UUID, hostName, roomName string, teamCount int) *Room {
	if teamCount < domain.MinTeams {
		teamCount = domain.MinTeams
	}
	if teamCount > domain.MaxTeams {
		teamCount = domain.MaxTeams
	}

	g.mu.Lock()
	code := generateRoomCode()
	for _, taken := g.rooms[code]; taken; _, taken = g.rooms[code] {
		code = generateRoomCode()
	}
	room := newRoom(code, roomName, hostConn, hostName, teamCount, g.settings, g.clock, g.broadcaster)
	g.rooms[code] = room
	g.mu.Unlock()

	log.Info().
		Str("room", code).
		Str("name", roomName).
		Int("teams", teamCount).
		Msg("room created")
	return room
}

// Get resolves a room code.
func (g *Registry) Get(code string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Disconnect removes a connection from its room. A host disconnect tears
// the whole room down; anyone else just leaves.
func (g *Registry) Disconnect(connID uuid.UUID, code string) {
	room, err := g.Get(code)
	if err != nil {
		return
	}
	if room.IsHost(connID) {
		g.Remove(code)
		return
	}
	room.Leave(connID)
}

// Remove tears a room down: pending timer callbacks are canceled and the
// remaining subscribers are told the room closed.
func (g *Registry) Remove(code string) {
	g.mu.Lock()
	room, ok := g.rooms[code]
	delete(g.rooms, code)
	g.mu.Unlock()
	if !ok {
		return
	}
	room.shutdown()
	if g.broadcaster != nil {
		g.broadcaster.RoomClosed(code)
	}
	log.Info().Str("room", code).Msg("room closed")
}

// generateRoomCode returns a 6-character uppercase room code.
func generateRoomCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}
