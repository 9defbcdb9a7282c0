package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
)

// wireMessage is the union of everything the server sends.
type wireMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code"`
	Snapshot *session.Snapshot `json:"snapshot"`
	Player   string            `json:"player"`
	Winner   string            `json:"winner"`
	Draw     bool              `json:"draw"`
	Cells    []engine.Position `json:"cells"`
	Reason   string            `json:"reason"`
	Intent   string            `json:"intent"`
	Error    string            `json:"error"`
	Message  string            `json:"message"`
}

type testEnv struct {
	hub    *Hub
	svc    service.GameService
	server *httptest.Server
}

func newTestEnv(t *testing.T, codes ...string) *testEnv {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"ABC123"}
	}
	var mu sync.Mutex
	next := 0
	generate := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[next%len(codes)]
		next++
		return code, nil
	}

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := service.NewGameService(
		session.NewRegistry(session.WithCodeGenerator(generate)),
		service.WithNotifier(hub),
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, svc, r.URL.Query().Get("player"))
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testEnv{hub: hub, svc: svc, server: server}
}

func (e *testEnv) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitSubscribers polls until code has n subscribers.
func (e *testEnv) waitSubscribers(t *testing.T, code string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.hub.Subscribers(code) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d subscribers in %s, got %d", n, code, e.hub.Subscribers(code))
}

func send(t *testing.T, conn *websocket.Conn, in Intent) {
	t.Helper()
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("Failed to send %s: %v", in.Type, err)
	}
}

func column(c int) *int {
	return &c
}

func next(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message %s: %v", data, err)
	}
	return msg
}

func expect(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	msg := next(t, conn)
	if msg.Type != typ {
		t.Fatalf("Expected %s message, got %+v", typ, msg)
	}
	return msg
}

// startGame connects host and guest and seats them in ABC123.
func startGame(t *testing.T, env *testEnv) (host, guest *websocket.Conn) {
	t.Helper()
	host = env.dial(t, "host")
	guest = env.dial(t, "guest")

	send(t, host, Intent{Type: IntentCreateRoom})
	created := expect(t, host, "room_created")
	if created.Code != "ABC123" {
		t.Fatalf("Expected room ABC123, got %s", created.Code)
	}

	send(t, guest, Intent{Type: IntentJoinRoom, Code: "abc123"})
	for _, conn := range []*websocket.Conn{guest, host} {
		expect(t, conn, "room_joined")
		started := expect(t, conn, "game_started")
		if started.Snapshot.Status != session.StatusInProgress || started.Snapshot.Turn != "host" {
			t.Fatalf("Expected in_progress with host to move, got %+v", started.Snapshot)
		}
	}
	return host, guest
}

// playMoves alternates host and guest, waiting for each broadcast on both
// connections before the next move.
func playMoves(t *testing.T, host, guest *websocket.Conn, moves ...int) wireMessage {
	t.Helper()
	var last wireMessage
	for i, col := range moves {
		mover := host
		if i%2 == 1 {
			mover = guest
		}
		send(t, mover, Intent{Type: IntentPlay, Column: column(col)})
		expect(t, host, "game_updated")
		last = expect(t, guest, "game_updated")
	}
	return last
}

func TestCreateJoinAndPlayBroadcast(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	send(t, host, Intent{Type: IntentPlay, Code: "ABC123", Column: column(3)})
	for _, conn := range []*websocket.Conn{host, guest} {
		msg := expect(t, conn, "game_updated")
		if msg.Snapshot.Board[5][3] != engine.PlayerA {
			t.Errorf("Expected host piece at (5,3), got %v", msg.Snapshot.Board[5][3])
		}
		if msg.Snapshot.Turn != "guest" {
			t.Errorf("Expected guest to move, got %q", msg.Snapshot.Turn)
		}
		if msg.Player != "host" {
			t.Errorf("Expected mover host, got %q", msg.Player)
		}
	}
}

func TestRejectionGoesOnlyToSender(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	send(t, guest, Intent{Type: IntentPlay, Column: column(0)})
	msg := expect(t, guest, MessageError)
	if msg.Error != service.CodeNotYourTurn || msg.Intent != IntentPlay || msg.Code != "ABC123" {
		t.Errorf("Unexpected error message %+v", msg)
	}

	// The host's next message is the broadcast of its own move, not the error.
	send(t, host, Intent{Type: IntentPlay, Column: column(0)})
	expect(t, host, "game_updated")
	expect(t, guest, "game_updated")
}

func TestMalformedIntents(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, "loner")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if msg := expect(t, conn, MessageError); msg.Error != CodeBadRequest {
		t.Errorf("Expected bad_request, got %s", msg.Error)
	}

	send(t, conn, Intent{Type: "dance"})
	if msg := expect(t, conn, MessageError); msg.Error != CodeUnknownIntent {
		t.Errorf("Expected unknown_intent, got %s", msg.Error)
	}

	send(t, conn, Intent{Type: IntentPlay, Code: "ABC123"})
	if msg := expect(t, conn, MessageError); msg.Error != service.CodeInvalidColumn {
		t.Errorf("Expected invalid_column, got %s", msg.Error)
	}

	send(t, conn, Intent{Type: IntentPlay, Column: column(1)})
	if msg := expect(t, conn, MessageError); msg.Error != service.CodeRoomNotFound {
		t.Errorf("Expected room_not_found, got %s", msg.Error)
	}

	send(t, conn, Intent{Type: IntentJoinRoom})
	if msg := expect(t, conn, MessageError); msg.Error != CodeBadRequest {
		t.Errorf("Expected bad_request, got %s", msg.Error)
	}
}

func TestVerticalWinBroadcast(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	playMoves(t, host, guest, 0, 1, 0, 1, 0, 1)

	send(t, host, Intent{Type: IntentPlay, Column: column(0)})
	for _, conn := range []*websocket.Conn{host, guest} {
		updated := expect(t, conn, "game_updated")
		if updated.Snapshot.Status != session.StatusWon {
			t.Errorf("Expected won status, got %s", updated.Snapshot.Status)
		}
		over := expect(t, conn, "game_over")
		if over.Winner != "host" || over.Draw {
			t.Errorf("Expected host win, got %+v", over)
		}
		if len(over.Cells) != 4 || over.Cells[0] != (engine.Position{Row: 2, Col: 0}) {
			t.Errorf("Unexpected winning cells %v", over.Cells)
		}
	}
}

func TestDisconnectIsImplicitLeave(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)
	playMoves(t, host, guest, 3, 3)

	guest.Close()

	left := expect(t, host, "player_left")
	if left.Player != "guest" {
		t.Errorf("Expected guest to leave, got %q", left.Player)
	}
	over := expect(t, host, "game_over")
	if over.Winner != "host" || over.Reason != service.ReasonForfeit {
		t.Errorf("Expected forfeit win for host, got %+v", over)
	}

	snap, err := env.svc.GetRoom(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if snap.Status != session.StatusWon || snap.Winner != "host" || snap.Guest != "" {
		t.Errorf("Expected Won(host) with an empty guest seat, got %+v", snap)
	}
}

func TestExplicitLeaveUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	send(t, guest, Intent{Type: IntentLeave})
	for _, conn := range []*websocket.Conn{guest, host} {
		expect(t, conn, "player_left")
		expect(t, conn, "game_over")
	}
	env.waitSubscribers(t, "ABC123", 1)

	// Closing after an explicit leave must not leave a second time.
	guest.Close()
	time.Sleep(50 * time.Millisecond)

	snap, err := env.svc.GetRoom(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if snap.Host != "host" || snap.Winner != "host" {
		t.Errorf("Expected host to keep the room, got %+v", snap)
	}
}

func TestLeaveWithDestroyClosesRoom(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	send(t, host, Intent{Type: IntentLeave, Destroy: true})
	expect(t, guest, "player_left")
	expect(t, guest, "game_over")
	closed := expect(t, guest, "room_closed")
	if closed.Reason != service.ReasonLeft {
		t.Errorf("Expected reason left, got %q", closed.Reason)
	}
	env.waitSubscribers(t, "ABC123", 0)

	if _, err := env.svc.GetRoom(context.Background(), "ABC123"); err == nil {
		t.Error("Expected the room to be removed")
	}
}

func TestPlayAgainOverSocket(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	playMoves(t, host, guest, 0, 1, 0, 1, 0, 1)
	send(t, host, Intent{Type: IntentPlay, Column: column(0)})
	for _, conn := range []*websocket.Conn{host, guest} {
		expect(t, conn, "game_updated")
		expect(t, conn, "game_over")
	}

	send(t, guest, Intent{Type: IntentPlayAgain})
	for _, conn := range []*websocket.Conn{host, guest} {
		reset := expect(t, conn, "game_reset")
		if reset.Player != "guest" {
			t.Errorf("Expected guest to ask for the rematch, got %q", reset.Player)
		}
		updated := expect(t, conn, "game_updated")
		snap := updated.Snapshot
		if snap.Board != engine.NewBoard() || snap.Status != session.StatusInProgress || snap.Turn != "host" || snap.Code != "ABC123" {
			t.Errorf("Expected a fresh match in ABC123 with host first, got %+v", snap)
		}
	}
}

func TestSecondConnectionReplacesFirst(t *testing.T) {
	env := newTestEnv(t)
	first := env.dial(t, "host")
	send(t, first, Intent{Type: IntentCreateRoom})
	expect(t, first, "room_created")

	second := env.dial(t, "host")
	send(t, second, Intent{Type: IntentResume, Code: "ABC123"})
	resumed := expect(t, second, "game_updated")
	if resumed.Snapshot.Host != "host" {
		t.Errorf("Expected host's room, got %+v", resumed.Snapshot)
	}

	replaced := expect(t, first, MessageError)
	if replaced.Error != CodeConnectionReplaced {
		t.Errorf("Expected connection_replaced, got %s", replaced.Error)
	}

	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNoStatusReceived) {
		t.Errorf("Expected the server to close the replaced connection, got %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	snap, err := env.svc.GetRoom(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("Room should survive the replaced connection: %v", err)
	}
	if snap.Host != "host" || snap.Status != session.StatusWaiting {
		t.Errorf("Unexpected room state %+v", snap)
	}
	if n := env.hub.Subscribers("ABC123"); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}
}

func TestResumeRequiresSeat(t *testing.T) {
	env := newTestEnv(t)
	host := env.dial(t, "host")
	send(t, host, Intent{Type: IntentCreateRoom})
	expect(t, host, "room_created")

	stranger := env.dial(t, "stranger")
	send(t, stranger, Intent{Type: IntentResume, Code: "ABC123"})
	if msg := expect(t, stranger, MessageError); msg.Error != service.CodePlayerNotInRoom {
		t.Errorf("Expected player_not_in_room, got %s", msg.Error)
	}
}

func TestCreatingElsewhereLeavesCurrentRoom(t *testing.T) {
	env := newTestEnv(t, "ROOM01", "ROOM02")
	host := env.dial(t, "host")
	guest := env.dial(t, "guest")

	send(t, host, Intent{Type: IntentCreateRoom})
	expect(t, host, "room_created")
	send(t, guest, Intent{Type: IntentJoinRoom, Code: "ROOM01"})
	expect(t, host, "room_joined")
	expect(t, host, "game_started")
	expect(t, guest, "room_joined")
	expect(t, guest, "game_started")

	send(t, guest, Intent{Type: IntentCreateRoom})

	left := expect(t, host, "player_left")
	if left.Player != "guest" {
		t.Errorf("Expected guest to leave ROOM01, got %q", left.Player)
	}
	if over := expect(t, host, "game_over"); over.Winner != "host" {
		t.Errorf("Expected host to win by forfeit, got %+v", over)
	}

	for {
		msg := next(t, guest)
		if msg.Type == "room_created" {
			if msg.Code != "ROOM02" {
				t.Errorf("Expected ROOM02, got %s", msg.Code)
			}
			break
		}
	}
	env.waitSubscribers(t, "ROOM01", 1)
	env.waitSubscribers(t, "ROOM02", 1)
}

func TestRoomClosedUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	if err := env.svc.CloseRoom(context.Background(), "ABC123"); err != nil {
		t.Fatalf("CloseRoom failed: %v", err)
	}
	for _, conn := range []*websocket.Conn{host, guest} {
		msg := expect(t, conn, "room_closed")
		if msg.Reason != service.ReasonClosed {
			t.Errorf("Expected reason closed, got %q", msg.Reason)
		}
	}
	if n := env.hub.Subscribers("ABC123"); n != 0 {
		t.Errorf("Expected no subscribers, got %d", n)
	}
}

func TestPushReachesRoom(t *testing.T) {
	env := newTestEnv(t)
	host, guest := startGame(t, env)

	if err := env.svc.Push(context.Background(), "ABC123", "chat", "gg"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	for _, conn := range []*websocket.Conn{host, guest} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type string `json:"type"`
			Name string `json:"name"`
			Data string `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read pushed message: %v", err)
		}
		if msg.Type != "pushed" || msg.Name != "chat" || msg.Data != "gg" {
			t.Errorf("Unexpected pushed message %+v", msg)
		}
	}
}

// The tests below drive the hub directly, without Run or real connections.

func newTestClient(h *Hub, player string) *Client {
	return &Client{
		hub:    h,
		svc:    service.NewGameService(session.NewRegistry()),
		send:   make(chan []byte, 16),
		id:     player + "-conn",
		player: player,
		logger: zap.NewNop(),
	}
}

func received(t *testing.T, c *Client) []service.GameEvent {
	t.Helper()
	var out []service.GameEvent
	for {
		select {
		case data := <-c.send:
			var e service.GameEvent
			if err := json.Unmarshal(data, &e); err != nil {
				t.Fatalf("Failed to unmarshal event: %v", err)
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func versionedEvent(id string, typ service.EventType, created time.Time, version uint64) service.GameEvent {
	return service.GameEvent{
		ID:       id,
		Type:     typ,
		Code:     "ABC123",
		Snapshot: &session.Snapshot{Code: "ABC123", Version: version, CreatedAt: created},
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil || hub.rooms == nil || hub.inbox == nil {
		t.Error("Hub maps and inbox must be initialized")
	}
}

func TestBroadcastDropsStaleSnapshot(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "host")
	hub.registerClient(client)
	hub.subscribeClient(client, "ABC123", nil)

	created := time.Now()
	hub.broadcastEvent(versionedEvent("a", service.EventGameUpdated, created, 2))
	hub.broadcastEvent(versionedEvent("b", service.EventGameUpdated, created, 1))
	hub.broadcastEvent(versionedEvent("c", service.EventGameOver, created, 3))
	hub.broadcastEvent(service.GameEvent{ID: "d", Type: service.EventPushed, Code: "ABC123"})

	var ids []string
	for _, e := range received(t, client) {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "a,c,d" {
		t.Errorf("Expected a,c,d, got %v", ids)
	}
}

func TestCodeReuseStartsNewGeneration(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "host")
	hub.registerClient(client)
	hub.subscribeClient(client, "ABC123", nil)

	old := time.Now()
	hub.broadcastEvent(versionedEvent("old", service.EventGameUpdated, old, 9))
	hub.broadcastEvent(versionedEvent("new", service.EventRoomCreated, old.Add(time.Second), 0))

	if got := received(t, client); len(got) != 2 {
		t.Errorf("Expected both events, got %d", len(got))
	}
}

func TestSubscribeReplaysMissedEvents(t *testing.T) {
	hub := NewHub(nil)
	created := time.Now()

	joined := versionedEvent("joined", service.EventRoomJoined, created, 1)
	started := versionedEvent("started", service.EventGameStarted, created, 1)
	moved := versionedEvent("moved", service.EventGameUpdated, created, 2)
	hub.broadcastEvent(joined)
	hub.broadcastEvent(started)
	hub.broadcastEvent(moved)

	client := newTestClient(hub, "guest")
	hub.registerClient(client)
	hub.subscribeClient(client, "ABC123", []service.GameEvent{joined, started})

	var ids []string
	for _, e := range received(t, client) {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "joined,started,moved" {
		t.Errorf("Expected joined,started,moved, got %v", ids)
	}
}

func TestRoomClosedDropsSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "host")
	hub.registerClient(client)
	hub.subscribeClient(client, "ABC123", nil)

	hub.broadcastEvent(versionedEvent("x", service.EventRoomClosed, time.Now(), 4))

	if client.Room() != "" {
		t.Errorf("Expected client to be detached, still in %q", client.Room())
	}
	if _, ok := hub.rooms["ABC123"]; ok {
		t.Error("Expected room state to be dropped")
	}
	if got := received(t, client); len(got) != 1 || got[0].Type != service.EventRoomClosed {
		t.Errorf("Expected the room_closed event, got %+v", got)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient(hub, "slow")
	slow.send = make(chan []byte, 1)
	hub.registerClient(slow)
	hub.subscribeClient(slow, "ABC123", nil)

	created := time.Now()
	hub.broadcastEvent(versionedEvent("1", service.EventGameUpdated, created, 1))
	hub.broadcastEvent(versionedEvent("2", service.EventGameUpdated, created, 2))

	if hub.clients[slow] {
		t.Error("Expected the slow client to be unregistered")
	}
	if slow.Room() != "" {
		t.Error("Expected the slow client to be detached")
	}
}

func TestSlowClientDroppedWhileSubscribing(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient(hub, "slow")
	slow.send = make(chan []byte, 1)
	hub.registerClient(slow)

	created := time.Now()
	reply := []service.GameEvent{
		versionedEvent("1", service.EventRoomJoined, created, 1),
		versionedEvent("2", service.EventGameStarted, created, 2),
		versionedEvent("3", service.EventGameUpdated, created, 3),
	}
	hub.subscribeClient(slow, "ABC123", reply)

	if hub.clients[slow] {
		t.Error("Expected the slow client to be unregistered")
	}
	if slow.Room() != "" {
		t.Errorf("Expected the slow client to be detached, still in %q", slow.Room())
	}
	if st, ok := hub.rooms["ABC123"]; ok && st.clients[slow] {
		t.Error("Expected the slow client to be gone from the room")
	}
}

func TestSlowClientDroppedDuringCatchUp(t *testing.T) {
	hub := NewHub(nil)
	created := time.Now()
	joined := versionedEvent("joined", service.EventRoomJoined, created, 1)
	hub.broadcastEvent(joined)
	hub.broadcastEvent(versionedEvent("moved", service.EventGameUpdated, created, 2))
	hub.broadcastEvent(versionedEvent("moved-again", service.EventGameUpdated, created, 3))

	slow := newTestClient(hub, "slow")
	slow.send = make(chan []byte, 1)
	hub.registerClient(slow)
	hub.subscribeClient(slow, "ABC123", []service.GameEvent{joined})

	if hub.clients[slow] {
		t.Error("Expected the slow client to be unregistered")
	}

	// The hub keeps working for everyone else.
	other := newTestClient(hub, "other")
	hub.registerClient(other)
	hub.subscribeClient(other, "ABC123", nil)
	if got := received(t, other); len(got) != 3 {
		t.Fatalf("Expected the backlog replayed to the other client, got %d events", len(got))
	}
	hub.broadcastEvent(versionedEvent("after", service.EventGameUpdated, created, 4))
	if got := received(t, other); len(got) != 1 || got[0].ID != "after" {
		t.Errorf("Expected the next event to reach the other client, got %+v", got)
	}
}

func TestReplacedConnectionIsClosed(t *testing.T) {
	hub := NewHub(nil)
	first := newTestClient(hub, "host")
	second := newTestClient(hub, "host")
	second.id = "host-conn-2"
	hub.registerClient(first)
	hub.registerClient(second)

	hub.subscribeClient(first, "ABC123", nil)
	hub.subscribeClient(second, "ABC123", nil)

	data, ok := <-first.send
	if !ok {
		t.Fatal("Expected a message before the queue was closed")
	}
	var msg ErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Error != CodeConnectionReplaced {
		t.Errorf("Expected connection_replaced, got %s", msg.Error)
	}
	if _, ok := <-first.send; ok {
		t.Error("Expected the replaced client's queue to be closed")
	}

	if hub.clients[first] {
		t.Error("Expected the replaced client to be unregistered")
	}
	if !hub.clients[second] || second.Room() != "ABC123" {
		t.Error("Expected the new connection to hold the seat")
	}
	if n := len(hub.rooms["ABC123"].clients); n != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n)
	}
}

func TestSendToPlayer(t *testing.T) {
	hub := NewHub(nil)
	inFirst := newTestClient(hub, "alice")
	inSecond := newTestClient(hub, "alice")
	inSecond.id = "alice-conn-2"
	bystander := newTestClient(hub, "bob")
	for _, c := range []*Client{inFirst, inSecond, bystander} {
		hub.registerClient(c)
	}
	hub.subscribeClient(inFirst, "ROOM01", nil)
	hub.subscribeClient(inSecond, "ROOM02", nil)
	hub.subscribeClient(bystander, "ROOM01", nil)

	event := service.GameEvent{ID: "p1", Type: service.EventPushed, Name: "chat"}
	if n := hub.sendToPlayer("alice", event); n != 2 {
		t.Fatalf("Expected 2 connections reached, got %d", n)
	}

	for c, room := range map[*Client]string{inFirst: "ROOM01", inSecond: "ROOM02"} {
		got := received(t, c)
		if len(got) != 1 || got[0].Name != "chat" || got[0].Code != room {
			t.Errorf("Expected chat for %s, got %+v", room, got)
		}
	}
	if got := received(t, bystander); len(got) != 0 {
		t.Errorf("Expected nothing for another player, got %+v", got)
	}
	if n := hub.sendToPlayer("carol", event); n != 0 {
		t.Errorf("Expected no connections for carol, got %d", n)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "host")
	hub.registerClient(client)

	hub.unregisterClient(client, false)
	hub.unregisterClient(client, false)

	if len(hub.clients) != 0 {
		t.Errorf("Expected no clients, got %d", len(hub.clients))
	}
}
