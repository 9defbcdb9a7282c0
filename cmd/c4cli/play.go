package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	gamews "github.com/wricardo/connectfour/transport/websocket"
)

const helpText = `Commands:
  1-7         drop a piece in that column
  again       start a rematch after a win or a draw
  new         create a new room
  join CODE   join another room
  leave       leave the room (forfeits a match in progress)
  quit        leave and exit
`

var errQuit = errors.New("quit")

// serverMessage is the union of everything the gateway sends.
type serverMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code"`
	Snapshot *session.Snapshot `json:"snapshot"`
	Player   string            `json:"player"`
	Winner   string            `json:"winner"`
	Draw     bool              `json:"draw"`
	Reason   string            `json:"reason"`
	Name     string            `json:"name"`
	Data     json.RawMessage   `json:"data"`
	Intent   string            `json:"intent"`
	Error    string            `json:"error"`
	Message  string            `json:"message"`
}

// PlayOptions configures RunPlay.
type PlayOptions struct {
	Server string
	Player string
	Token  string
	// Room is joined on connect. Empty creates a room.
	Room string
}

// wsURL turns the server's HTTP base URL into its websocket endpoint.
func wsURL(server, player, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	} else {
		q.Set("player", player)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseCommand maps one input line to an intent.
func parseCommand(line string) (*gamews.Intent, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil, nil
	}

	switch fields[0] {
	case "again", "a":
		return &gamews.Intent{Type: gamews.IntentPlayAgain}, nil
	case "new", "n":
		return &gamews.Intent{Type: gamews.IntentCreateRoom}, nil
	case "join", "j":
		if len(fields) < 2 {
			return nil, errors.New("usage: join CODE")
		}
		return &gamews.Intent{Type: gamews.IntentJoinRoom, Code: session.NormalizeCode(fields[1])}, nil
	case "leave", "l":
		return &gamews.Intent{Type: gamews.IntentLeave}, nil
	case "quit", "q", "exit":
		return &gamews.Intent{Type: gamews.IntentLeave}, errQuit
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > engine.Cols {
		return nil, fmt.Errorf("unknown command %q (type help)", line)
	}
	column := n - 1
	return &gamews.Intent{Type: gamews.IntentPlay, Column: &column}, nil
}

// renderBoard draws the board with 1-based column numbers underneath.
func renderBoard(w io.Writer, b engine.Board) {
	for _, line := range strings.Split(b.String(), "\n") {
		fmt.Fprintf(w, " %s\n", strings.Join(strings.Split(line, ""), " "))
	}
	fmt.Fprint(w, " ")
	for col := 1; col <= engine.Cols; col++ {
		fmt.Fprintf(w, "%d ", col)
	}
	fmt.Fprintln(w)
}

func renderStatus(w io.Writer, snap *session.Snapshot, me string) {
	if snap.Status != session.StatusInProgress {
		return
	}
	if snap.Turn == me {
		fmt.Fprintf(w, "Your move (%c), choose 1-%d:\n", snap.Piece(me).Symbol(), engine.Cols)
	} else {
		fmt.Fprintf(w, "Waiting for %s...\n", snap.Turn)
	}
}

// render prints one server message for player me.
func render(w io.Writer, msg serverMessage, me string) {
	switch service.EventType(msg.Type) {
	case service.EventRoomCreated:
		fmt.Fprintf(w, "Room %s created. Share the code with your opponent.\n", msg.Code)
	case service.EventRoomJoined:
		fmt.Fprintf(w, "%s joined room %s.\n", msg.Player, msg.Code)
	case service.EventGameStarted:
		fmt.Fprintf(w, "Game started: %s (X) vs %s (O)\n", msg.Snapshot.Host, msg.Snapshot.Guest)
		renderBoard(w, msg.Snapshot.Board)
		renderStatus(w, msg.Snapshot, me)
	case service.EventGameUpdated:
		if msg.Snapshot == nil {
			return
		}
		renderBoard(w, msg.Snapshot.Board)
		renderStatus(w, msg.Snapshot, me)
	case service.EventGameReset:
		fmt.Fprintln(w, "Rematch!")
	case service.EventGameOver:
		if msg.Snapshot != nil {
			renderBoard(w, msg.Snapshot.Board)
		}
		switch {
		case msg.Draw:
			fmt.Fprintln(w, "The board is full. Draw!")
		case msg.Winner == me:
			fmt.Fprintln(w, "You win!")
		default:
			fmt.Fprintf(w, "%s wins.\n", msg.Winner)
		}
		if msg.Reason == service.ReasonForfeit {
			fmt.Fprintln(w, "(the opponent left)")
		}
		fmt.Fprintln(w, "Type again for a rematch.")
	case service.EventPlayerLeft:
		fmt.Fprintf(w, "%s left the room.\n", msg.Player)
	case service.EventRoomClosed:
		fmt.Fprintf(w, "Room %s closed (%s).\n", msg.Code, msg.Reason)
	case service.EventPushed:
		fmt.Fprintf(w, "[%s] %s\n", msg.Name, string(msg.Data))
	case gamews.MessageError:
		fmt.Fprintf(w, "Error: %s (%s)\n", msg.Message, msg.Error)
	}
}

// syncWriter serializes writes from the reader goroutine and the prompt.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// RunPlay connects to the gateway and plays from the commands read on in.
func RunPlay(ctx context.Context, opts PlayOptions, in io.Reader, out io.Writer) error {
	endpoint, err := wsURL(opts.Server, opts.Player, opts.Token)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", endpoint, err)
	}
	defer conn.Close()

	out = &syncWriter{w: out}
	received := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				received <- err
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			render(out, msg, opts.Player)
		}
	}()

	first := gamews.Intent{Type: gamews.IntentCreateRoom}
	if opts.Room != "" {
		first = gamews.Intent{Type: gamews.IntentJoinRoom, Code: session.NormalizeCode(opts.Room)}
	}
	if err := conn.WriteJSON(first); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-received:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return closeConn(conn)
			}
			if strings.TrimSpace(strings.ToLower(line)) == "help" {
				fmt.Fprint(out, helpText)
				continue
			}
			intent, err := parseCommand(line)
			if intent != nil {
				if werr := conn.WriteJSON(intent); werr != nil {
					return werr
				}
			}
			if errors.Is(err, errQuit) {
				return closeConn(conn)
			}
			if err != nil {
				fmt.Fprintln(out, err)
			}
		}
	}
}

func closeConn(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}
