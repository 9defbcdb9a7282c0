package engine

import (
	"fmt"
	"strings"
)

// String renders the board top row first, one line per row, using X for
// player A, O for player B and '.' for empty cells.
func (b Board) String() string {
	var sb strings.Builder
	sb.Grow(Rows * (Cols + 1))
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			sb.WriteByte(b[row][col].Symbol())
		}
		if row < Rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseBoard is the inverse of Board.String. Blank lines and surrounding
// whitespace are ignored, which keeps test fixtures readable.
func ParseBoard(s string) (Board, error) {
	var b Board
	row := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if row >= Rows {
			return Board{}, fmt.Errorf("too many rows: want %d", Rows)
		}
		if len(line) != Cols {
			return Board{}, fmt.Errorf("row %d has %d cells, want %d", row, len(line), Cols)
		}
		for col := 0; col < Cols; col++ {
			switch line[col] {
			case '.':
				b[row][col] = Empty
			case 'X':
				b[row][col] = PlayerA
			case 'O':
				b[row][col] = PlayerB
			default:
				return Board{}, fmt.Errorf("row %d col %d: unknown cell %q", row, col, line[col])
			}
		}
		row++
	}
	if row != Rows {
		return Board{}, fmt.Errorf("got %d rows, want %d", row, Rows)
	}
	return b, nil
}

// Height returns the number of pieces stacked in column.
func (b Board) Height(column int) int {
	if column < 0 || column >= Cols {
		return 0
	}
	h := 0
	for row := Rows - 1; row >= 0 && b[row][column] != Empty; row-- {
		h++
	}
	return h
}

// OpenColumns lists the columns that can still take a piece.
func (b Board) OpenColumns() []int {
	cols := make([]int, 0, Cols)
	for col := 0; col < Cols; col++ {
		if b[0][col] == Empty {
			cols = append(cols, col)
		}
	}
	return cols
}

// Count returns how many cells hold the given value.
func (b Board) Count(cell Cell) int {
	n := 0
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			if b[row][col] == cell {
				n++
			}
		}
	}
	return n
}

// Settled reports whether every column obeys gravity: no empty cell sits
// below an occupied one.
func (b Board) Settled() bool {
	for col := 0; col < Cols; col++ {
		seenEmpty := false
		for row := Rows - 1; row >= 0; row-- {
			if b[row][col] == Empty {
				seenEmpty = true
			} else if seenEmpty {
				return false
			}
		}
	}
	return true
}
