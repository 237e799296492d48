package protocol

import (
	"encoding/json"

	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
	"github.com/rocketscienceinc/gameroom-backend/internal/tictactoe"
)

// Inbound actions.
const (
	ActionCreateRoom   = "create_room"
	ActionJoinRoom     = "join_room"
	ActionGetRoomState = "get_room_state"
	ActionMove         = "move"
	ActionLeaveRoom    = "leave_room"
)

// Outbound events.
const (
	EventRoomCreated  = "room_created"
	EventRoomState    = "room_state"
	EventPlayerJoined = "player_joined"
	EventStartGame    = "start_game"
	EventMoveMade     = "move_made"
	EventGameOver     = "game_over"
	EventError        = "error_msg"
)

// Message - a single protocol frame in either direction.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Directed - an outbound message together with its recipients. The transport
// delivers it to every listed connection; the handler never touches sockets.
type Directed struct {
	To      []string
	Message Message
}

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type RoomIDPayload struct {
	RoomID string `json:"roomId"`
}

type MovePayload struct {
	RoomID string `json:"roomId"`
	Index  *int   `json:"index"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
	Mark   string `json:"mark"`
}

type PlayerJoinedPayload struct {
	Players map[string]*entity.Player `json:"players"`
}

type StartGamePayload struct {
	Room *entity.Room `json:"room"`
}

type MoveMadePayload struct {
	Board [entity.BoardSize]string `json:"board"`
	Turn  string                   `json:"turn"`
}

type GameOverPayload struct {
	Result *tictactoe.Outcome       `json:"result"`
	Board  [entity.BoardSize]string `json:"board"`
}

func newMessage(action string, payload any) Message {
	return Message{
		Action:  action,
		Payload: mustMarshal(payload),
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}
