// Package websocket provides the realtime gateway for Connect Four rooms.
//
// The websocket package implements:
//   - One actor per connection that turns client intents into service calls
//   - Room-scoped broadcast of every GameEvent
//   - Rejections sent only to the connection that caused them
//   - Implicit leave when a connection drops without leaving
//
// Architecture:
//
// The package uses a hub-and-spoke model. The Hub owns every subscription
// and is the service's Notifier; each connection runs a readPump that calls
// the GameService and a writePump that drains its outbound queue. The hub
// holds no game state. It only knows which connection watches which room
// and the version of the last snapshot it forwarded, so a snapshot that
// arrives late is dropped rather than shown after a newer one.
//
// Message Protocol:
//
// Client messages are JSON intents:
//
//	{"type": "create_room"}
//	{"type": "join_room", "code": "ABC123"}
//	{"type": "play", "column": 3}
//	{"type": "leave", "destroy": false}
//	{"type": "play_again"}
//	{"type": "resume", "code": "ABC123"}
//
// The server sends service.GameEvent values (room_created, room_joined,
// game_started, game_updated, game_over, player_left, game_reset,
// room_closed, pushed) and ErrorMessage values with type "error".
//
// Identity:
//
// The player identity is established before the upgrade, from the player
// query parameter or a signed token, and is fixed for the connection.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	svc := service.NewGameService(rooms, service.WithNotifier(hub))
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, svc, r.URL.Query().Get("player"))
//	})
package websocket
