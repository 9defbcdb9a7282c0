package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
)

// Intent types sent by clients.
const (
	IntentCreateRoom = "create_room"
	IntentJoinRoom   = "join_room"
	IntentResume     = "resume"
	IntentPlay       = "play"
	IntentLeave      = "leave"
	IntentPlayAgain  = "play_again"
)

// MessageError is the type of the message sent back to a client whose
// intent was rejected.
const MessageError = "error"

// Error codes raised by the gateway itself. Everything else comes from
// service.ErrorCode.
const (
	CodeBadRequest         = "bad_request"
	CodeUnknownIntent      = "unknown_intent"
	CodeConnectionReplaced = "connection_replaced"
	CodePlayerNotConnected = "player_not_connected"
)

// Intent is a message from a client. Code defaults to the room the
// connection is subscribed to.
type Intent struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Column  *int   `json:"column,omitempty"`
	Destroy bool   `json:"destroy,omitempty"`
}

// ErrorMessage is sent only to the connection whose intent failed.
type ErrorMessage struct {
	Type    string    `json:"type"`
	Intent  string    `json:"intent,omitempty"`
	Code    string    `json:"code,omitempty"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func newErrorMessage(intent, code, errCode, msg string) ErrorMessage {
	return ErrorMessage{
		Type:    MessageError,
		Intent:  intent,
		Code:    code,
		Error:   errCode,
		Message: msg,
		At:      time.Now(),
	}
}

// Client represents a WebSocket client
type Client struct {
	hub    *Hub
	svc    service.GameService
	conn   *websocket.Conn
	send   chan []byte
	id     string
	player string
	logger *zap.Logger

	// room is written by the hub goroutine and read by readPump.
	mu   sync.Mutex
	room string
}

// Room returns the code of the room the client is subscribed to, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(code string) {
	c.mu.Lock()
	c.room = code
	c.mu.Unlock()
}

// readPump turns inbound messages into service calls.
func (c *Client) readPump() {
	defer func() {
		c.hub.enqueue(request{kind: kindUnregister, client: c})
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		var in Intent
		if err := json.Unmarshal(data, &in); err != nil {
			c.reject(in, CodeBadRequest, "message is not valid JSON")
			continue
		}
		c.handle(context.Background(), in)
	}
}

// handle dispatches one intent. Successful intents produce no direct reply:
// the client hears about them through the room broadcast like everyone else.
func (c *Client) handle(ctx context.Context, in Intent) {
	switch in.Type {
	case IntentCreateRoom:
		res, err := c.svc.CreateRoom(ctx, c.player)
		if err != nil {
			c.fail(in, err)
			return
		}
		c.enter(ctx, res.Snapshot.Code, res.Events)

	case IntentJoinRoom:
		code := session.NormalizeCode(in.Code)
		if code == "" {
			c.reject(in, CodeBadRequest, "room code is required")
			return
		}
		res, err := c.svc.JoinRoom(ctx, code, c.player)
		if err != nil {
			c.fail(in, err)
			return
		}
		c.enter(ctx, res.Snapshot.Code, res.Events)

	case IntentResume:
		code := c.target(in)
		snap, err := c.svc.GetRoom(ctx, code)
		if err != nil {
			c.fail(in, err)
			return
		}
		if snap.Piece(c.player) == engine.Empty {
			c.fail(in, session.ErrPlayerNotInRoom)
			return
		}
		c.enter(ctx, snap.Code, []service.GameEvent{{
			ID:        uuid.NewString(),
			Type:      service.EventGameUpdated,
			Code:      snap.Code,
			Snapshot:  snap,
			Timestamp: time.Now(),
		}})

	case IntentPlay:
		if in.Column == nil {
			c.reject(in, service.CodeInvalidColumn, "column is required")
			return
		}
		if _, err := c.svc.Play(ctx, c.target(in), c.player, *in.Column); err != nil {
			c.fail(in, err)
		}

	case IntentLeave:
		code := c.target(in)
		if _, err := c.svc.Leave(ctx, code, c.player, in.Destroy); err != nil {
			c.fail(in, err)
		}
		c.hub.unsubscribe(c, code)

	case IntentPlayAgain:
		if _, err := c.svc.PlayAgain(ctx, c.target(in), c.player); err != nil {
			c.fail(in, err)
		}

	default:
		c.reject(in, CodeUnknownIntent, "unknown message type "+in.Type)
	}
}

// enter subscribes the client to code. A client sits in one room at a time,
// so the room it was in before is left first.
func (c *Client) enter(ctx context.Context, code string, reply []service.GameEvent) {
	if old := c.Room(); old != "" && old != code {
		if _, err := c.svc.Leave(ctx, old, c.player, false); err != nil {
			c.logger.Debug("leaving previous room failed", zap.String("room", old), zap.Error(err))
		}
	}
	c.hub.subscribe(c, code, reply)
}

func (c *Client) target(in Intent) string {
	if in.Code != "" {
		return session.NormalizeCode(in.Code)
	}
	return c.Room()
}

func (c *Client) fail(in Intent, err error) {
	code := service.ErrorCode(err)
	if service.IsRejection(err) {
		c.logger.Debug("intent rejected", zap.String("intent", in.Type), zap.String("reason", code))
	} else {
		c.logger.Error("intent failed", zap.String("intent", in.Type), zap.Error(err))
	}
	c.reject(in, code, err.Error())
}

func (c *Client) reject(in Intent, errCode, msg string) {
	data, err := json.Marshal(newErrorMessage(in.Type, c.target(in), errCode, msg))
	if err != nil {
		return
	}
	c.hub.direct(c, data)
}

// leaveAfterDrop removes the player from code after the connection went away
// without an explicit leave.
func (c *Client) leaveAfterDrop(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()

	res, err := c.svc.Leave(ctx, code, c.player, false)
	if err != nil {
		c.logger.Debug("implicit leave skipped", zap.String("room", code), zap.Error(err))
		return
	}
	c.logger.Info("implicit leave", zap.String("room", code), zap.Bool("forfeit", res.Forfeit))
}

// writePump pumps messages from the hub to the WebSocket connection, one
// message per frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
