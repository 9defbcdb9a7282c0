// Package mcp exposes Connect Four rooms as Model Context Protocol tools.
//
// The mcp package implements:
//   - An MCP server whose tools proxy the REST API
//   - Text renderings of rooms, moves and match results for agents
//
// MCP Tools:
//   - create_room: Create a room and wait for an opponent
//   - join_room: Join a room as the guest
//   - get_room: Board and status of a room
//   - list_rooms: Rooms, most recently active first
//   - play: Drop a piece into a column
//   - leave_room: Leave or forfeit
//   - play_again: Rematch after a win or a draw
//   - recent_matches: Recently finished matches
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp, handled with GetMCPServer().HandleMessage
//
// Because every tool goes through the REST API, moves made by an agent are
// broadcast to websocket players like any other move.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
