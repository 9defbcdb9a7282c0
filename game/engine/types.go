package engine

import (
	"errors"
	"fmt"
)

// Board dimensions and line length needed to win.
const (
	Rows    = 6
	Cols    = 7
	Connect = 4
)

var (
	ErrColumnFull    = errors.New("column is full")
	ErrInvalidColumn = errors.New("column out of range")
	ErrInvalidPlayer = errors.New("invalid player")
)

// Cell is the content of one board position.
type Cell uint8

const (
	Empty Cell = iota
	PlayerA
	PlayerB
)

// Valid reports whether c is one of the three known cell values.
func (c Cell) Valid() bool {
	return c <= PlayerB
}

// Opponent returns the other player's piece. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	default:
		return Empty
	}
}

// Symbol is the single character used when rendering a board as text.
func (c Cell) Symbol() byte {
	switch c {
	case PlayerA:
		return 'X'
	case PlayerB:
		return 'O'
	default:
		return '.'
	}
}

func (c Cell) String() string {
	switch c {
	case PlayerA:
		return "player_a"
	case PlayerB:
		return "player_b"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("cell(%d)", uint8(c))
	}
}

// MarshalText encodes the cell as its wire name.
func (c Cell) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPlayer, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (c *Cell) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty", "":
		*c = Empty
	case "player_a":
		*c = PlayerA
	case "player_b":
		*c = PlayerB
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPlayer, string(text))
	}
	return nil
}

// Position addresses a board cell. Row 0 is the top row.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a 6x7 grid. It is a value type: copying a Board copies every cell,
// so engine functions never mutate a board owned by the caller.
type Board [Rows][Cols]Cell

// WinResult describes the outcome of CheckWin.
type WinResult struct {
	Won   bool       `json:"won"`
	Cells []Position `json:"cells,omitempty"`
}
