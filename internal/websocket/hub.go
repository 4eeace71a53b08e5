package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
)

// Hub tracks live connections and their room subscriptions, and fans
// snapshot broadcasts out to them. It is the game core's Broadcaster.
type Hub struct {
	mu       sync.RWMutex
	registry *game.Registry
	clients  map[uuid.UUID]*Client
	subs     map[string]map[uuid.UUID]*Client
	roomOf   map[uuid.UUID]string
}

func NewHub(registry *game.Registry) *Hub {
	h := &Hub{
		registry: registry,
		clients:  make(map[uuid.UUID]*Client),
		subs:     make(map[string]map[uuid.UUID]*Client),
		roomOf:   make(map[uuid.UUID]string),
	}
	registry.SetBroadcaster(h)
	return h
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()
}

// Unregister drops a connection and removes it from its room. A host
// disconnect tears the room down via the registry.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.connID)
	code := h.roomOf[c.connID]
	delete(h.roomOf, c.connID)
	if code != "" {
		if subs, ok := h.subs[code]; ok {
			delete(subs, c.connID)
		}
	}
	h.mu.Unlock()

	c.Close()
	if code != "" {
		h.registry.Disconnect(c.connID, code)
	}
}

func (h *Hub) subscribe(c *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[code] == nil {
		h.subs[code] = make(map[uuid.UUID]*Client)
	}
	h.subs[code][c.connID] = c
	h.roomOf[c.connID] = code
}

// currentRoom resolves the room this connection is subscribed to.
func (h *Hub) currentRoom(connID uuid.UUID) (*game.Room, error) {
	h.mu.RLock()
	code, ok := h.roomOf[connID]
	h.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return h.registry.Get(code)
}

// BroadcastState pushes a state sync to every subscriber of a room. It
// never blocks: a slow client just misses the update and catches up on the
// next one.
func (h *Hub) BroadcastState(code string, snap *game.Snapshot) {
	msg, err := NewMessage(MessageTypeStateSync, snap)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("failed to build state sync")
		return
	}
	data, _ := json.Marshal(msg)

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.subs[code]))
	for _, c := range h.subs[code] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.trySend(c, data)
	}
}

// RoomClosed tells every remaining subscriber the room is gone and drops
// the subscription set.
func (h *Hub) RoomClosed(code string) {
	msg, _ := NewMessage(MessageTypeRoomClosed, RoomClosedPayload{Code: code})
	data, _ := json.Marshal(msg)

	h.mu.Lock()
	subs := h.subs[code]
	delete(h.subs, code)
	for id := range subs {
		delete(h.roomOf, id)
	}
	h.mu.Unlock()

	for _, c := range subs {
		h.trySend(c, data)
	}
}

// trySend attempts to send to a client, safely handling closed channels.
func (h *Hub) trySend(c *Client, data []byte) {
	defer func() {
		if recover() != nil {
			// Channel closed, client is disconnecting - skip silently
		}
	}()

	select {
	case c.send <- data:
	default:
		// Buffer full, skip
	}
}
