// Package engine provides the pure game logic for Connect Four.
//
// The engine package implements:
//   - A fixed 6x7 board value type with gravity-respecting drops
//   - Win detection along the four lines through the last placed piece
//   - Draw detection once the top row is full
//
// Core Types:
//
// Board is an array value, so every function takes and returns boards by
// value and never mutates a board owned by the caller. Cell holds Empty,
// PlayerA or PlayerB. Position addresses a cell with row 0 at the top.
//
// Usage:
//
//	b := engine.NewBoard()
//	b, pos, err := engine.Drop(b, 3, engine.PlayerA)
//	if err != nil {
//		return err // engine.ErrColumnFull, engine.ErrInvalidColumn
//	}
//	if win := engine.CheckWin(b, pos.Row, pos.Col, engine.PlayerA); win.Won {
//		fmt.Println("winning cells:", win.Cells)
//	} else if engine.CheckDraw(b) {
//		fmt.Println("draw")
//	}
//
// The package does no I/O and holds no shared state, so it is safe to call
// from any goroutine.
package engine
