package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is one websocket connection. Its uuid is the connection identity
// every command carries into the game core.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	connID    uuid.UUID
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, connID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		connID: connID,
	}
}

// Close shuts the outbound channel down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn", c.connID.String()).Msg("websocket read error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("INVALID_INPUT", "Malformed message")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeCreateRoom:
		var payload CreateRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid create room payload")
			return
		}
		c.handleCreateRoom(payload)

	case MessageTypeJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid join room payload")
			return
		}
		c.handleJoinRoom(payload)

	case MessageTypeSetRoomName:
		var payload SetRoomNamePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid room name payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.SetRoomName(c.connID, cleanName(payload.Name))
		})

	case MessageTypeSetTeamName:
		var payload SetTeamNamePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid team name payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.SetTeamName(c.connID, payload.TeamID, cleanName(payload.Name))
		})

	case MessageTypeStartTossup:
		c.roomOp(func(room *game.Room) error { return room.StartTossup(c.connID) })

	case MessageTypeDoneReadingTossup:
		c.roomOp(func(room *game.Room) error { return room.DoneReadingTossup(c.connID) })

	case MessageTypeBuzz:
		c.roomOp(func(room *game.Room) error { return room.Buzz(c.connID) })

	case MessageTypeClearBuzz:
		c.roomOp(func(room *game.Room) error { return room.ClearBuzz(c.connID) })

	case MessageTypeSetInterrupt:
		var payload SetInterruptPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid interrupt payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.SetInterrupt(c.connID, payload.Interrupt)
		})

	case MessageTypeMarkAnswer:
		var payload MarkAnswerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid mark answer payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.MarkAnswer(c.connID, payload.Correct)
		})

	case MessageTypeDoneReadingBonus:
		c.roomOp(func(room *game.Room) error { return room.DoneReadingBonus(c.connID) })

	case MessageTypeAwardBonus:
		var payload AwardBonusPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid award bonus payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.AwardBonus(c.connID, payload.Points)
		})

	case MessageTypeSkipBonus:
		c.roomOp(func(room *game.Room) error { return room.SkipBonus(c.connID) })

	case MessageTypeDeleteRow:
		var payload DeleteRowPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_INPUT", "Invalid delete row payload")
			return
		}
		c.roomOp(func(room *game.Room) error {
			return room.DeleteRow(c.connID, payload.Num)
		})

	default:
		c.sendError("INVALID_INPUT", "Unknown message type")
	}
}

func (c *Client) handleCreateRoom(payload CreateRoomPayload) {
	if _, err := c.hub.currentRoom(c.connID); err == nil {
		c.sendError("CONFLICT", "Already in a room")
		return
	}
	hostName := cleanName(payload.HostName)
	roomName := cleanName(payload.RoomName)
	if hostName == "" || roomName == "" {
		c.sendError("INVALID_INPUT", domain.ErrEmptyName.Error())
		return
	}
	room := c.hub.registry.Create(c.connID, hostName, roomName, payload.TeamCount)
	c.hub.subscribe(c, room.Code())
	room.Publish()
}

func (c *Client) handleJoinRoom(payload JoinRoomPayload) {
	if _, err := c.hub.currentRoom(c.connID); err == nil {
		c.sendError("CONFLICT", "Already in a room")
		return
	}
	room, err := c.hub.registry.Get(cleanCode(payload.Code))
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	if err := room.Join(c.connID, cleanName(payload.Name), payload.TeamID, payload.Spectator); err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	c.hub.subscribe(c, room.Code())
	room.Publish()
}

// roomOp runs a command against the room this connection belongs to. A
// rejected command reaches only this connection as an error notice.
func (c *Client) roomOp(fn func(*game.Room) error) {
	room, err := c.hub.currentRoom(c.connID)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	if err := fn(room); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

// errorCode maps a domain error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, domain.ErrNotHost):
		return "NOT_AUTHORIZED"
	case errors.Is(err, domain.ErrInvalidPhase):
		return "INVALID_PHASE"
	case errors.Is(err, domain.ErrBuzzLocked),
		errors.Is(err, domain.ErrTeamLockedOut),
		errors.Is(err, domain.ErrAlreadyJoined):
		return "CONFLICT"
	default:
		return "INVALID_INPUT"
	}
}

func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	data, _ := json.Marshal(msg)
	c.hub.trySend(c, data)
}
