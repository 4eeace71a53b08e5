package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/kgruber/quizbowl-buzzer/internal/game"
	"github.com/kgruber/quizbowl-buzzer/internal/websocket"
)

// SimClient is one simulated connection to the buzzer server.
type SimClient struct {
	Name string
	conn *gorillaWS.Conn
}

// Connect dials the server's websocket endpoint.
func Connect(serverURL, name string) (*SimClient, error) {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	return &SimClient{Name: name, conn: conn}, nil
}

func (c *SimClient) Close() {
	c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
	c.conn.Close()
}

// Send writes one command to the server.
func (c *SimClient) Send(msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(gorillaWS.TextMessage, data)
}

// WaitState reads messages until a state sync satisfies the predicate. An
// ERROR message from the server fails the wait immediately.
func (c *SimClient) WaitState(pred func(*game.Snapshot) bool, timeout time.Duration) (*game.Snapshot, error) {
	deadline := time.Now().Add(timeout)
	for {
		c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}

		var msg websocket.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}

		switch msg.Type {
		case websocket.MessageTypeError:
			var p websocket.ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			return nil, fmt.Errorf("server rejected command: %s (%s)", p.Message, p.Code)
		case websocket.MessageTypeRoomClosed:
			return nil, fmt.Errorf("room closed")
		case websocket.MessageTypeStateSync:
			var snap game.Snapshot
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
			if pred(&snap) {
				return &snap, nil
			}
		}
	}
}

// CreateRoom creates a room and waits for its first snapshot.
func (c *SimClient) CreateRoom(roomName string, teamCount int) (*game.Snapshot, error) {
	err := c.Send(websocket.MessageTypeCreateRoom, websocket.CreateRoomPayload{
		HostName:  c.Name,
		RoomName:  roomName,
		TeamCount: teamCount,
	})
	if err != nil {
		return nil, err
	}
	return c.WaitState(func(s *game.Snapshot) bool { return s.Code != "" }, 5*time.Second)
}

// JoinRoom joins an existing room on the given team.
func (c *SimClient) JoinRoom(code, teamID string) (*game.Snapshot, error) {
	err := c.Send(websocket.MessageTypeJoinRoom, websocket.JoinRoomPayload{
		Code:   code,
		Name:   c.Name,
		TeamID: teamID,
	})
	if err != nil {
		return nil, err
	}
	return c.WaitState(func(s *game.Snapshot) bool {
		for _, p := range s.Players {
			if p.Name == c.Name {
				return true
			}
		}
		return false
	}, 5*time.Second)
}
