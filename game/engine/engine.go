package engine

import "fmt"

// directions lists the four line orientations checked for a win:
// horizontal, vertical, and the two diagonals.
var directions = [4]Position{
	{Row: 0, Col: 1},
	{Row: 1, Col: 0},
	{Row: 1, Col: 1},
	{Row: 1, Col: -1},
}

// NewBoard returns an empty board.
func NewBoard() Board {
	return Board{}
}

// Reset returns an empty board. It exists so callers holding a finished board
// read naturally: b = engine.Reset().
func Reset() Board {
	return NewBoard()
}

// Drop places player's piece in column, letting it fall to the lowest empty
// row. The input board is never modified; on success the updated copy and the
// placed position are returned. A full column yields ErrColumnFull together
// with the unchanged board.
func Drop(b Board, column int, player Cell) (Board, Position, error) {
	if column < 0 || column >= Cols {
		return b, Position{}, fmt.Errorf("%w: %d", ErrInvalidColumn, column)
	}
	if player != PlayerA && player != PlayerB {
		return b, Position{}, fmt.Errorf("%w: %s", ErrInvalidPlayer, player)
	}

	for row := Rows - 1; row >= 0; row-- {
		if b[row][column] == Empty {
			b[row][column] = player
			return b, Position{Row: row, Col: column}, nil
		}
	}

	return b, Position{}, fmt.Errorf("%w: %d", ErrColumnFull, column)
}

// CheckWin inspects only the lines through the piece just placed at (row, col).
// For each direction it walks from 3 cells before to 3 cells after the placed
// cell, collecting a run of player's pieces and restarting the run on any
// other cell. The first run that reaches four is the winning line.
func CheckWin(b Board, row, col int, player Cell) WinResult {
	if !inBounds(row, col) || player == Empty || b[row][col] != player {
		return WinResult{}
	}

	for _, d := range directions {
		run := make([]Position, 0, Connect)
		for i := -(Connect - 1); i <= Connect-1; i++ {
			r, c := row+d.Row*i, col+d.Col*i
			if !inBounds(r, c) || b[r][c] != player {
				run = run[:0]
				continue
			}
			run = append(run, Position{Row: r, Col: c})
			if len(run) == Connect {
				return WinResult{Won: true, Cells: run}
			}
		}
	}

	return WinResult{}
}

// CheckDraw reports whether the board is full. Callers must evaluate CheckWin
// for the filling move first; a win on that move takes precedence.
func CheckDraw(b Board) bool {
	for col := 0; col < Cols; col++ {
		if b[0][col] == Empty {
			return false
		}
	}
	return true
}

func inBounds(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Cols
}
