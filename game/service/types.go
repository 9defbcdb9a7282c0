package service

import (
	"time"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/session"
)

// EventType names a message broadcast to a room.
type EventType string

const (
	EventRoomCreated EventType = "room_created"
	EventRoomJoined  EventType = "room_joined"
	EventGameStarted EventType = "game_started"
	EventGameUpdated EventType = "game_updated"
	EventGameOver    EventType = "game_over"
	EventPlayerLeft  EventType = "player_left"
	EventGameReset   EventType = "game_reset"
	EventRoomClosed  EventType = "room_closed"
	EventPushed      EventType = "pushed"
)

// Reasons attached to game_over and room_closed events.
const (
	ReasonConnectFour = "connect_four"
	ReasonBoardFull   = "board_full"
	ReasonForfeit     = "forfeit"
	ReasonLeft        = "left"
	ReasonClosed      = "closed"
	ReasonIdle        = "idle"
)

// GameEvent is one state change delivered to every connection in a room.
type GameEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Code      string            `json:"code"`
	Snapshot  *session.Snapshot `json:"snapshot,omitempty"`
	Player    string            `json:"player,omitempty"`
	Winner    string            `json:"winner,omitempty"`
	Draw      bool              `json:"draw,omitempty"`
	Cells     []engine.Position `json:"cells,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Name      string            `json:"name,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
	Timestamp time.Time         `json:"at"`
}

// RoomResult is returned by operations that change a room's roster or
// reset its match.
type RoomResult struct {
	Snapshot *session.Snapshot `json:"snapshot"`
	Events   []GameEvent       `json:"events,omitempty"`
}

// MoveResult contains the result of a Play.
type MoveResult struct {
	Snapshot *session.Snapshot `json:"snapshot"`
	Placed   engine.Position   `json:"placed"`
	GameOver bool              `json:"game_over"`
	Winner   string            `json:"winner,omitempty"`
	Draw     bool              `json:"draw"`
	Events   []GameEvent       `json:"events,omitempty"`
}

// LeaveResult contains the result of a Leave.
type LeaveResult struct {
	Snapshot  *session.Snapshot `json:"snapshot"`
	Player    string            `json:"player"`
	Remaining string            `json:"remaining,omitempty"`
	Forfeit   bool              `json:"forfeit"`
	Closed    bool              `json:"closed"`
	Events    []GameEvent       `json:"events,omitempty"`
}

// RoomFilter narrows ListRooms.
type RoomFilter struct {
	Status session.Status
	Player string
	Limit  int
}
