// Package session provides the room registry and per-room match state for
// Connect Four.
//
// The session package implements:
//   - Room code generation with collision retry
//   - The room lifecycle (create, join, leave, remove)
//   - The match state machine for each room
//   - Idle-room expiry
//
// Core Types:
//
// Registry maps room codes to rooms. Room holds one match: the two seated
// players, the board, the turn and the status. Snapshot is an immutable copy
// of a room's state suitable for broadcasting.
//
// State Machine:
//
//	waiting_for_opponent --join--> in_progress
//	in_progress --winning move--> won
//	in_progress --board full--> drawn
//	in_progress --opponent leaves--> won (remaining player)
//	won|drawn --play again--> in_progress
//	any --last player leaves / destroy--> removed
//
// Room Codes:
//
// Codes are six characters drawn from digits and upper-case letters and are
// matched case-insensitively. CreateRoom retries on collision and gives up
// with ErrCodeSpaceExhausted without registering anything.
//
// Concurrency:
//
// The registry lock protects only the code map. Each Room has its own mutex,
// taken by every Room method, so moves in different rooms run in parallel and
// moves in the same room are serialized. Callers resolve a room through the
// registry first and only then operate on it; the registry never waits on a
// room lock while holding its own. A removed room is marked closed, so a
// caller that resolved it just before removal gets ErrRoomNotFound.
//
// Usage:
//
//	reg := session.NewRegistry()
//	room, snap, err := reg.CreateRoom("alice")
//	if err != nil {
//		return err
//	}
//	_, snap, err = reg.JoinRoom(snap.Code, "bob")
//	out, err := room.Play("alice", 3)
package session
