package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/connectfour/game/engine"
)

// Status is the match state of a room.
type Status string

const (
	// StatusWaiting means the host is alone in the room.
	StatusWaiting Status = "waiting_for_opponent"
	// StatusInProgress means both players are seated and moves are accepted.
	StatusInProgress Status = "in_progress"
	// StatusWon means the last match ended with a winner, by four in a row
	// or because the opponent left.
	StatusWon Status = "won"
	// StatusDrawn means the last match filled the board without a winner.
	StatusDrawn Status = "drawn"
)

// Finished reports whether the status is terminal for the current match.
func (s Status) Finished() bool {
	return s == StatusWon || s == StatusDrawn
}

// Snapshot is the externally visible state of a room at one instant.
// Version increases with every change to the room, so consumers can discard
// a snapshot older than one they have already seen.
type Snapshot struct {
	Code         string            `json:"code"`
	Host         string            `json:"host"`
	Guest        string            `json:"guest,omitempty"`
	Board        engine.Board      `json:"board"`
	Turn         string            `json:"turn,omitempty"`
	Status       Status            `json:"status"`
	Winner       string            `json:"winner,omitempty"`
	WinningCells []engine.Position `json:"winning_cells,omitempty"`
	LastMove     *engine.Position  `json:"last_move,omitempty"`
	MoveCount    int               `json:"move_count"`
	Version      uint64            `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Piece returns the board value owned by player, or Empty for a stranger.
// The host always plays PlayerA.
func (s *Snapshot) Piece(player string) engine.Cell {
	switch {
	case player == "":
		return engine.Empty
	case player == s.Host:
		return engine.PlayerA
	case player == s.Guest:
		return engine.PlayerB
	default:
		return engine.Empty
	}
}

// Opponent returns the other seated player, or "" when the seat is empty.
func (s *Snapshot) Opponent(player string) string {
	switch player {
	case s.Host:
		return s.Guest
	case s.Guest:
		return s.Host
	default:
		return ""
	}
}

// MoveOutcome is returned by a successful Play.
type MoveOutcome struct {
	Snapshot Snapshot        `json:"snapshot"`
	Placed   engine.Position `json:"placed"`
	Won      bool            `json:"won"`
	Drawn    bool            `json:"drawn"`
}

// LeaveOutcome is returned by Leave.
type LeaveOutcome struct {
	Snapshot Snapshot `json:"snapshot"`
	Player   string   `json:"player"`
	// Remaining is the player still seated after the leave, if any.
	Remaining string `json:"remaining,omitempty"`
	// Forfeit is set when the leave ended a match in progress and Remaining
	// was declared the winner.
	Forfeit bool `json:"forfeit"`
	// Closed is set when the room must be removed from the registry.
	Closed bool `json:"closed"`
}

// Room is one Connect Four session. Every method takes the room's own lock,
// so operations on different rooms never contend with each other.
type Room struct {
	mu sync.Mutex

	code      string
	host      string
	guest     string
	board     engine.Board
	turn      string
	status    Status
	winner    string
	cells     []engine.Position
	lastMove  *engine.Position
	moves     int
	version   uint64
	createdAt time.Time
	updatedAt time.Time
	closed    bool

	now func() time.Time
}

func newRoom(code, host string, now func() time.Time) *Room {
	t := now()
	return &Room{
		code:      code,
		host:      host,
		board:     engine.NewBoard(),
		status:    StatusWaiting,
		createdAt: t,
		updatedAt: t,
		now:       now,
	}
}

// Code returns the room code. It never changes.
func (r *Room) Code() string {
	return r.code
}

// Snapshot returns a copy of the current state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Join seats guest and starts the match with the host to move.
func (r *Room) Join(guest string) (Snapshot, error) {
	if guest == "" {
		return Snapshot{}, ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	if r.guest != "" {
		return Snapshot{}, ErrRoomFull
	}
	if guest == r.host {
		return Snapshot{}, ErrSelfJoin
	}

	r.guest = guest
	r.startMatchLocked()
	return r.snapshotLocked(), nil
}

// Play drops player's piece into column. Rejected moves leave the room
// untouched and do not consume the turn.
func (r *Room) Play(player string, column int) (MoveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return MoveOutcome{}, ErrRoomNotFound
	}
	if r.status != StatusInProgress {
		return MoveOutcome{}, fmt.Errorf("%w: room is %s", ErrGameNotInProgress, r.status)
	}
	if player == "" || player != r.turn {
		return MoveOutcome{}, ErrNotYourTurn
	}

	piece := engine.PlayerA
	if player == r.guest {
		piece = engine.PlayerB
	}

	board, pos, err := engine.Drop(r.board, column, piece)
	if err != nil {
		return MoveOutcome{}, err
	}

	r.board = board
	r.moves++
	r.lastMove = &pos
	r.version++
	r.updatedAt = r.now()

	out := MoveOutcome{Placed: pos}
	if win := engine.CheckWin(board, pos.Row, pos.Col, piece); win.Won {
		r.status = StatusWon
		r.winner = player
		r.cells = win.Cells
		r.turn = ""
		out.Won = true
	} else if engine.CheckDraw(board) {
		r.status = StatusDrawn
		r.turn = ""
		out.Drawn = true
	} else {
		r.turn = r.otherLocked(player)
	}

	out.Snapshot = r.snapshotLocked()
	return out, nil
}

// Leave removes player from the roster. If a match was in progress and the
// opponent is still seated, the opponent wins by forfeit. The room is marked
// closed when destroy is set or nobody is left; the caller is then expected
// to remove it from the registry.
func (r *Room) Leave(player string, destroy bool) (LeaveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return LeaveOutcome{}, ErrRoomNotFound
	}
	if player == "" || (player != r.host && player != r.guest) {
		return LeaveOutcome{}, ErrPlayerNotInRoom
	}

	out := LeaveOutcome{Player: player, Remaining: r.otherLocked(player)}

	if r.status == StatusInProgress && out.Remaining != "" {
		r.status = StatusWon
		r.winner = out.Remaining
		r.cells = nil
		r.turn = ""
		out.Forfeit = true
	}

	// The remaining player keeps the room and becomes its host.
	if player == r.host {
		r.host = r.guest
	}
	r.guest = ""

	if destroy || r.host == "" {
		r.closed = true
		out.Closed = true
	}

	r.version++
	r.updatedAt = r.now()
	out.Snapshot = r.snapshotLocked()
	return out, nil
}

// PlayAgain starts a new match in the same room with the same players.
// A non-empty player must be seated in the room.
func (r *Room) PlayAgain(player string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	if player != "" && player != r.host && player != r.guest {
		return Snapshot{}, ErrPlayerNotInRoom
	}
	if !r.status.Finished() {
		return Snapshot{}, fmt.Errorf("%w: room is %s", ErrGameNotInProgressWrongState, r.status)
	}
	if r.guest == "" {
		return Snapshot{}, ErrOpponentMissing
	}

	r.startMatchLocked()
	return r.snapshotLocked(), nil
}

// IdleSince reports whether the room has seen no activity since cutoff.
func (r *Room) IdleSince(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt.Before(cutoff)
}

// close marks the room as removed. It returns false if it was already closed.
func (r *Room) close() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.closed = true
	return true
}

// closeIfIdle closes the room only if it is still idle, so a move that
// arrives between the idle scan and the reap is not lost.
func (r *Room) closeIfIdle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.updatedAt.Before(cutoff) {
		return false
	}
	r.closed = true
	return true
}

func (r *Room) startMatchLocked() {
	r.board = engine.Reset()
	r.status = StatusInProgress
	r.turn = r.host
	r.winner = ""
	r.cells = nil
	r.lastMove = nil
	r.moves = 0
	r.version++
	r.updatedAt = r.now()
}

func (r *Room) otherLocked(player string) string {
	if player == r.host {
		return r.guest
	}
	return r.host
}

func (r *Room) snapshotLocked() Snapshot {
	s := Snapshot{
		Code:      r.code,
		Host:      r.host,
		Guest:     r.guest,
		Board:     r.board,
		Turn:      r.turn,
		Status:    r.status,
		Winner:    r.winner,
		MoveCount: r.moves,
		Version:   r.version,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if len(r.cells) > 0 {
		s.WinningCells = append([]engine.Position(nil), r.cells...)
	}
	if r.lastMove != nil {
		pos := *r.lastMove
		s.LastMove = &pos
	}
	return s
}
