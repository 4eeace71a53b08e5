package websocket

import (
	"encoding/json"
	"strings"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeCreateRoom        MessageType = "CREATE_ROOM"
	MessageTypeJoinRoom          MessageType = "JOIN_ROOM"
	MessageTypeSetRoomName       MessageType = "SET_ROOM_NAME"
	MessageTypeSetTeamName       MessageType = "SET_TEAM_NAME"
	MessageTypeStartTossup       MessageType = "START_TOSSUP"
	MessageTypeDoneReadingTossup MessageType = "DONE_READING_TOSSUP"
	MessageTypeBuzz              MessageType = "BUZZ"
	MessageTypeClearBuzz         MessageType = "CLEAR_BUZZ"
	MessageTypeSetInterrupt      MessageType = "SET_INTERRUPT"
	MessageTypeMarkAnswer        MessageType = "MARK_ANSWER"
	MessageTypeDoneReadingBonus  MessageType = "DONE_READING_BONUS"
	MessageTypeAwardBonus        MessageType = "AWARD_BONUS"
	MessageTypeSkipBonus         MessageType = "SKIP_BONUS"
	MessageTypeDeleteRow         MessageType = "DELETE_ROW"

	// Server to Client
	MessageTypeStateSync  MessageType = "STATE_SYNC"
	MessageTypeRoomClosed MessageType = "ROOM_CLOSED"
	MessageTypeError      MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type CreateRoomPayload struct {
	HostName  string `json:"hostName"`
	RoomName  string `json:"roomName"`
	TeamCount int    `json:"teamCount"`
}

type JoinRoomPayload struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	TeamID    string `json:"teamId"`
	Spectator bool   `json:"spectator"`
}

type SetRoomNamePayload struct {
	Name string `json:"name"`
}

type SetTeamNamePayload struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
}

type SetInterruptPayload struct {
	Interrupt bool `json:"interrupt"`
}

type MarkAnswerPayload struct {
	Correct bool `json:"correct"`
}

type AwardBonusPayload struct {
	Points int `json:"points"`
}

type DeleteRowPayload struct {
	Num int `json:"num"`
}

// Server to Client payloads

type RoomClosedPayload struct {
	Code string `json:"code"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// maxNameLen caps player, team, and room names at the parsing boundary.
const maxNameLen = 32

// cleanName trims whitespace and caps length. Emptiness is rejected by the
// room itself.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxNameLen {
		return string(runes[:maxNameLen])
	}
	return s
}

// cleanCode normalizes a user-typed room code.
func cleanCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
