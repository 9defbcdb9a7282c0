package service

import (
	"context"
	"time"

	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/session"
)

// GameService defines all room and match operations
type GameService interface {
	// Room lifecycle
	CreateRoom(ctx context.Context, host string) (*RoomResult, error)
	JoinRoom(ctx context.Context, code, guest string) (*RoomResult, error)
	GetRoom(ctx context.Context, code string) (*session.Snapshot, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]*session.Snapshot, error)
	CloseRoom(ctx context.Context, code string) error

	// Match operations
	Play(ctx context.Context, code, player string, column int) (*MoveResult, error)
	Leave(ctx context.Context, code, player string, destroy bool) (*LeaveResult, error)
	PlayAgain(ctx context.Context, code, player string) (*RoomResult, error)

	// Relay an arbitrary payload to everyone in a room
	Push(ctx context.Context, code, name string, data interface{}) error

	// Maintenance
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
	RecentMatches(ctx context.Context, limit int) ([]*archive.MatchRecord, error)
	// Flush waits for finished matches still being archived
	Flush(ctx context.Context) error
}

// RoomRegistry defines room storage operations
type RoomRegistry interface {
	CreateRoom(host string) (*session.Room, session.Snapshot, error)
	JoinRoom(code, guest string) (*session.Room, session.Snapshot, error)
	Get(code string) (*session.Room, error)
	GetRoom(code string) (session.Snapshot, error)
	RemoveRoom(code string) bool
	List() []session.Snapshot
	ExpireIdle(maxIdle time.Duration) []session.Snapshot
}

// Notifier delivers events to the connections subscribed to a room.
// Publish must not block on network I/O.
type Notifier interface {
	Publish(event GameEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event GameEvent)

func (f NotifierFunc) Publish(event GameEvent) {
	f(event)
}
