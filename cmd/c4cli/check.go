package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/wricardo/connectfour/game/engine"
)

var (
	ErrFloatingPiece = errors.New("piece above an empty cell")
	ErrPieceCount    = errors.New("impossible piece count")
	ErrTwoWinners    = errors.New("both players have four in a row")
)

// BoardReport describes a position that could occur in a real match.
type BoardReport struct {
	Board  engine.Board
	Moves  int
	ToMove engine.Cell
	Winner engine.Cell
	Cells  []engine.Position
	Drawn  bool
	Open   []int
}

// CheckBoard parses a board drawn with X, O and '.' (top row first) and
// verifies that it is reachable: pieces obey gravity, X moves first and at
// most one player has connected four.
func CheckBoard(text string) (*BoardReport, error) {
	b, err := engine.ParseBoard(text)
	if err != nil {
		return nil, err
	}
	if !b.Settled() {
		return nil, ErrFloatingPiece
	}

	xCount, oCount := b.Count(engine.PlayerA), b.Count(engine.PlayerB)
	if xCount != oCount && xCount != oCount+1 {
		return nil, fmt.Errorf("%w: %d X and %d O", ErrPieceCount, xCount, oCount)
	}

	report := &BoardReport{Board: b, Moves: xCount + oCount, ToMove: engine.PlayerA, Open: b.OpenColumns()}
	if xCount > oCount {
		report.ToMove = engine.PlayerB
	}

	xWin, xCells := findLine(b, engine.PlayerA)
	oWin, oCells := findLine(b, engine.PlayerB)
	switch {
	case xWin && oWin:
		return nil, ErrTwoWinners
	case xWin:
		if xCount != oCount+1 {
			return nil, fmt.Errorf("%w: X has four in a row but O moved last", ErrPieceCount)
		}
		report.Winner, report.Cells = engine.PlayerA, xCells
	case oWin:
		if xCount != oCount {
			return nil, fmt.Errorf("%w: O has four in a row but X moved last", ErrPieceCount)
		}
		report.Winner, report.Cells = engine.PlayerB, oCells
	default:
		report.Drawn = engine.CheckDraw(b)
	}
	if report.Winner != engine.Empty || report.Drawn {
		report.ToMove = engine.Empty
		report.Open = nil
	}
	return report, nil
}

func findLine(b engine.Board, player engine.Cell) (bool, []engine.Position) {
	for row := 0; row < engine.Rows; row++ {
		for col := 0; col < engine.Cols; col++ {
			if res := engine.CheckWin(b, row, col, player); res.Won {
				return true, res.Cells
			}
		}
	}
	return false, nil
}

func printReport(w io.Writer, r *BoardReport) {
	renderBoard(w, r.Board)
	fmt.Fprintf(w, "Moves played: %d\n", r.Moves)
	switch {
	case r.Winner != engine.Empty:
		fmt.Fprintf(w, "Winner: %c on %v\n", r.Winner.Symbol(), r.Cells)
	case r.Drawn:
		fmt.Fprintln(w, "Drawn: the board is full")
	default:
		fmt.Fprintf(w, "To move: %c, open columns %v\n", r.ToMove.Symbol(), oneBased(r.Open))
	}
}

func oneBased(cols []int) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i] = c + 1
	}
	return out
}
