// Package service provides the session coordinator for Connect Four rooms.
//
// The service package implements:
//   - Room lifecycle (create, join, close, idle reaping)
//   - Move processing with turn and status checks
//   - Leaving, forfeits and rematches
//   - Event fan-out through a Notifier
//   - Archiving of finished matches
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// RoomRegistry is the room store it drives, normally *session.Registry.
// Notifier receives every GameEvent; the websocket hub implements it.
//
// Architecture:
//
// The service layer sits between the transports (WebSocket, HTTP, MCP) and
// the session package. It holds no lock of its own. Each room serializes its
// own operations, so two rooms never block each other, and a room is removed
// from the registry only after its own lock has been released.
//
// Usage:
//
//	rooms := session.NewRegistry()
//	svc := service.NewGameService(rooms,
//		service.WithNotifier(hub),
//		service.WithArchive(store),
//		service.WithLogger(logger),
//	)
//
//	created, err := svc.CreateRoom(ctx, "alice")
//	if err != nil {
//		log.Fatal(err)
//	}
//	_, err = svc.JoinRoom(ctx, created.Snapshot.Code, "bob")
//	move, err := svc.Play(ctx, created.Snapshot.Code, "alice", 3)
//
// Errors:
//
// Rejected requests return the session and engine sentinel errors unchanged,
// so callers match them with errors.Is. ErrorCode turns any error into the
// short code sent to clients.
package service
