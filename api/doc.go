// Package api provides HTTP REST API handlers for Connect Four rooms.
//
// The api package implements:
//   - RESTful endpoints mirroring every realtime intent
//   - Room listing, teardown and share QR codes
//   - Recent match results from the archive
//   - Development token issuing for the websocket gateway
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Rooms:
//   - POST /api/rooms - Create a room ({"player"})
//   - GET /api/rooms - List rooms (?status=, ?player=, ?limit=)
//   - GET /api/rooms/{code} - Get a room snapshot
//   - DELETE /api/rooms/{code} - Close a room
//   - GET /api/rooms/{code}/qr - PNG QR code of the share link
//
// Match operations:
//   - POST /api/rooms/{code}/join - Join as guest ({"player"})
//   - POST /api/rooms/{code}/play - Drop a piece ({"player", "column"})
//   - POST /api/rooms/{code}/leave - Leave or forfeit ({"player", "destroy"})
//   - POST /api/rooms/{code}/play-again - Rematch ({"player"})
//   - POST /api/rooms/{code}/push - Relay a payload ({"event", "data"})
//   - POST /api/players/{player}/push - Relay a payload to one player's connections
//
// Other:
//   - GET /api/matches - Recent archived results (?limit=)
//   - POST /api/tokens - Issue an identity token ({"player"})
//   - GET /api/health - Health check
//   - GET /ws - WebSocket (?player= or ?token=)
//
// Every state change made over REST is broadcast to websocket subscribers
// through the service's notifier, exactly like the same intent sent over a
// socket.
//
// Identity:
//
// When a token secret is configured, a bearer token or token query
// parameter names the acting player and wins over any player field in the
// body.
//
// Error Handling:
//
// Errors are returned as JSON with the HTTP status mapped from the error
// taxonomy (404 unknown room, 409 state conflicts, 400 bad input, 403 not
// seated, 401 bad token):
//
//	{
//	  "error": "not your turn",
//	  "code": "not_your_turn"
//	}
package api
