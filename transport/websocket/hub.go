package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/connectfour/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound messages queued per client before it is dropped as too slow.
	sendBuffer = 256

	// Recent events kept per room for clients that subscribe late.
	backlogSize = 32

	// Time allowed for the leave that follows a dropped connection.
	leaveTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from the public URL and from ngrok.
		return true
	},
}

type requestKind int

const (
	kindRegister requestKind = iota
	kindUnregister
	kindPublish
	kindSubscribe
	kindUnsubscribe
	kindDirect
	kindPlayer
	kindCount
)

// request is one unit of work for the hub goroutine. Everything goes through
// a single queue so that the events a client's intent published are handled
// before the subscription change that intent caused.
type request struct {
	kind   requestKind
	client *Client
	code   string
	player string
	event  service.GameEvent
	reply  []service.GameEvent
	data   []byte
	count  chan int
}

// roomState is the hub's view of one room code.
type roomState struct {
	clients map[*Client]bool
	created time.Time
	version uint64
	recent  []service.GameEvent
}

func (s *roomState) remember(e service.GameEvent) {
	s.recent = append(s.recent, e)
	if len(s.recent) > backlogSize {
		s.recent = s.recent[len(s.recent)-backlogSize:]
	}
}

// Hub maintains the set of active clients and fans room events out to them.
// It implements service.Notifier.
type Hub struct {
	// Connected clients
	clients map[*Client]bool

	// Subscriptions and recent events by room code
	rooms map[string]*roomState

	// Work for the hub goroutine
	inbox chan request

	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]*roomState),
		inbox:   make(chan request, 1024),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// closing every client's outbound queue.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.inbox:
			h.handle(req)
		}
	}
}

// Publish queues an event for every client subscribed to its room. It never
// waits on network I/O.
func (h *Hub) Publish(event service.GameEvent) {
	h.enqueue(request{kind: kindPublish, event: event})
}

// Subscribers returns the number of clients subscribed to code.
func (h *Hub) Subscribers(code string) int {
	count := make(chan int, 1)
	if !h.enqueue(request{kind: kindCount, code: code, count: count}) {
		return 0
	}
	select {
	case n := <-count:
		return n
	case <-h.done:
		return 0
	}
}

// SendToPlayer delivers event to every open connection of player, whatever
// room it is in, and returns how many connections it reached.
func (h *Hub) SendToPlayer(player string, event service.GameEvent) int {
	count := make(chan int, 1)
	if !h.enqueue(request{kind: kindPlayer, player: player, event: event, count: count}) {
		return 0
	}
	select {
	case n := <-count:
		return n
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and serves player over the connection. The
// player identity has already been established by the caller.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, svc service.GameService, player string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("player", player), zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := &Client{
		hub:    h,
		svc:    svc,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		id:     id,
		player: player,
		logger: h.logger.With(zap.String("conn", id), zap.String("player", player)),
	}

	if !h.enqueue(request{kind: kindRegister, client: client}) {
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

func (h *Hub) enqueue(req request) bool {
	select {
	case h.inbox <- req:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) subscribe(c *Client, code string, reply []service.GameEvent) {
	h.enqueue(request{kind: kindSubscribe, client: c, code: code, reply: reply})
}

func (h *Hub) unsubscribe(c *Client, code string) {
	h.enqueue(request{kind: kindUnsubscribe, client: c, code: code})
}

func (h *Hub) direct(c *Client, data []byte) {
	h.enqueue(request{kind: kindDirect, client: c, data: data})
}

func (h *Hub) handle(req request) {
	switch req.kind {
	case kindRegister:
		h.registerClient(req.client)
	case kindUnregister:
		h.unregisterClient(req.client, true)
	case kindPublish:
		h.broadcastEvent(req.event)
	case kindSubscribe:
		h.subscribeClient(req.client, req.code, req.reply)
	case kindUnsubscribe:
		if req.client.Room() == req.code {
			h.detach(req.client)
		}
	case kindDirect:
		h.deliver(req.client, req.data)
	case kindPlayer:
		req.count <- h.sendToPlayer(req.player, req.event)
	case kindCount:
		n := 0
		if st, ok := h.rooms[req.code]; ok {
			n = len(st.clients)
		}
		req.count <- n
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clients[c] = true
	c.logger.Debug("client registered", zap.Int("clients", len(h.clients)))
}

// unregisterClient forgets c. A client still subscribed to a room when its
// connection goes away leaves that room, so the opponent is not left waiting.
func (h *Hub) unregisterClient(c *Client, implicitLeave bool) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)

	code := h.detach(c)
	c.logger.Debug("client unregistered", zap.String("room", code), zap.Int("clients", len(h.clients)))

	if code != "" && implicitLeave {
		go c.leaveAfterDrop(code)
	}
}

// detach removes c from its room and returns the room code.
func (h *Hub) detach(c *Client) string {
	code := c.Room()
	if code == "" {
		return ""
	}
	if st, ok := h.rooms[code]; ok {
		delete(st.clients, c)
	}
	c.setRoom("")
	return code
}

// roomFor returns the state for a snapshot's room, starting over when the
// snapshot belongs to a newer room that reuses the code.
func (h *Hub) roomFor(code string, created time.Time) *roomState {
	st, ok := h.rooms[code]
	if !ok {
		st = &roomState{clients: make(map[*Client]bool), created: created}
		h.rooms[code] = st
		return st
	}
	if created.After(st.created) {
		st.created = created
		st.version = 0
		st.recent = nil
	}
	return st
}

func (h *Hub) broadcastEvent(e service.GameEvent) {
	var st *roomState
	if e.Snapshot != nil {
		st = h.roomFor(e.Code, e.Snapshot.CreatedAt)
		if e.Snapshot.CreatedAt.Before(st.created) || e.Snapshot.Version < st.version {
			h.logger.Debug("dropping stale event",
				zap.String("room", e.Code),
				zap.String("type", string(e.Type)),
				zap.Uint64("version", e.Snapshot.Version),
				zap.Uint64("current", st.version),
			)
			return
		}
		st.version = e.Snapshot.Version
	} else {
		var ok bool
		if st, ok = h.rooms[e.Code]; !ok {
			return
		}
	}
	st.remember(e)

	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("room", e.Code), zap.Error(err))
		return
	}
	for c := range st.clients {
		h.deliver(c, data)
	}

	if e.Type == service.EventRoomClosed {
		for c := range st.clients {
			c.setRoom("")
		}
		delete(h.rooms, e.Code)
	}
}

func (h *Hub) sendToPlayer(player string, e service.GameEvent) int {
	n := 0
	for c := range h.clients {
		if c.player != player {
			continue
		}
		e.Code = c.Room()
		data, err := json.Marshal(e)
		if err != nil {
			h.logger.Error("failed to marshal event", zap.String("player", player), zap.Error(err))
			return n
		}
		if h.deliver(c, data) {
			n++
		}
	}
	return n
}

func (h *Hub) subscribeClient(c *Client, code string, reply []service.GameEvent) {
	if !h.clients[c] {
		return
	}
	if c.Room() != code {
		h.detach(c)
	}

	var created time.Time
	for _, e := range reply {
		if e.Snapshot != nil {
			created = e.Snapshot.CreatedAt
			break
		}
	}
	st := h.roomFor(code, created)

	// One connection per player per room; the newest wins. The old one is
	// told why and closed without leaving the room, since the seat is still
	// taken.
	for other := range st.clients {
		if other == c || other.player != c.player {
			continue
		}
		delete(st.clients, other)
		other.setRoom("")
		other.logger.Info("connection replaced", zap.String("room", code), zap.String("by", c.id))
		if data, err := json.Marshal(newErrorMessage("", code, CodeConnectionReplaced, "another connection took over this seat")); err == nil {
			if !h.deliver(other, data) {
				continue
			}
		}
		h.unregisterClient(other, false)
	}

	st.clients[c] = true
	c.setRoom(code)

	seen := make(map[string]bool, len(reply))
	var version uint64
	for _, e := range reply {
		seen[e.ID] = true
		if e.Snapshot != nil && e.Snapshot.Version > version {
			version = e.Snapshot.Version
		}
		if data, err := json.Marshal(e); err == nil {
			if !h.deliver(c, data) {
				return
			}
		}
	}

	// Catch up on anything published between the intent and this request.
	for _, e := range st.recent {
		if seen[e.ID] || e.Snapshot == nil || e.Snapshot.Version <= version {
			continue
		}
		if data, err := json.Marshal(e); err == nil {
			if !h.deliver(c, data) {
				return
			}
		}
	}

	c.logger.Debug("client subscribed", zap.String("room", code), zap.Int("subscribers", len(st.clients)))
}

// deliver queues data for c, dropping the client if its queue is full. It
// reports whether c is still registered; a dropped client's queue is closed
// and must not be sent to again.
func (h *Hub) deliver(c *Client, data []byte) bool {
	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("client too slow, dropping connection")
		h.unregisterClient(c, true)
		return false
	}
}

func (h *Hub) shutdown() {
	h.once.Do(func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
		h.clients = make(map[*Client]bool)
		h.rooms = make(map[string]*roomState)
	})
}
