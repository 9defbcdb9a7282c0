package main

import (
	"github.com/wricardo/connectfour/game/engine"
)

// centreFirst is the order columns are tried when no move is forced.
var centreFirst = [engine.Cols]int{3, 2, 4, 1, 5, 0, 6}

// Strategy picks the bot's next column: take a win, block the opponent's
// win, then prefer central columns that do not set up an opponent win
// directly on top.
type Strategy struct {
	me engine.Cell
}

// NewStrategy returns a strategy playing the given piece.
func NewStrategy(me engine.Cell) *Strategy {
	return &Strategy{me: me}
}

// NextMove returns the column to play, or false when the board is full.
func (s *Strategy) NextMove(b engine.Board) (int, bool) {
	open := b.OpenColumns()
	if len(open) == 0 {
		return 0, false
	}

	opp := s.me.Opponent()
	for _, col := range open {
		if wins(b, col, s.me) {
			return col, true
		}
	}
	for _, col := range open {
		if wins(b, col, opp) {
			return col, true
		}
	}

	fallback := -1
	for _, col := range centreFirst {
		next, _, err := engine.Drop(b, col, s.me)
		if err != nil {
			continue
		}
		if fallback < 0 {
			fallback = col
		}
		if !wins(next, col, opp) {
			return col, true
		}
	}
	return fallback, true
}

// wins reports whether dropping player into col completes a line.
func wins(b engine.Board, col int, player engine.Cell) bool {
	next, pos, err := engine.Drop(b, col, player)
	if err != nil {
		return false
	}
	return engine.CheckWin(next, pos.Row, pos.Col, player).Won
}
