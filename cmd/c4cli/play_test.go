package main

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	gamews "github.com/wricardo/connectfour/transport/websocket"
)

func TestWSURL(t *testing.T) {
	tests := []struct {
		server, player, token string
		want                  string
	}{
		{"http://localhost:8080", "alice", "", "ws://localhost:8080/ws?player=alice"},
		{"https://c4.example.com/", "bob", "", "wss://c4.example.com/ws?player=bob"},
		{"http://localhost:8080", "alice", "tok", "ws://localhost:8080/ws?token=tok"},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.server, tt.player, tt.token)
		if err != nil {
			t.Fatalf("wsURL(%q) failed: %v", tt.server, err)
		}
		if got != tt.want {
			t.Errorf("wsURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}

	if _, err := wsURL("ftp://example.com", "alice", ""); err == nil {
		t.Error("Expected error for an unsupported scheme")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		intent  string
		column  int
		code    string
		wantErr bool
	}{
		{line: "1", intent: gamews.IntentPlay, column: 0},
		{line: " 7 ", intent: gamews.IntentPlay, column: 6},
		{line: "again", intent: gamews.IntentPlayAgain},
		{line: "new", intent: gamews.IntentCreateRoom},
		{line: "join abc123", intent: gamews.IntentJoinRoom, code: "ABC123"},
		{line: "leave", intent: gamews.IntentLeave},
		{line: "0", wantErr: true},
		{line: "8", wantErr: true},
		{line: "dance", wantErr: true},
		{line: "join", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			intent, err := parseCommand(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand(%q) failed: %v", tt.line, err)
			}
			if intent.Type != tt.intent {
				t.Errorf("Type = %q, want %q", intent.Type, tt.intent)
			}
			if tt.intent == gamews.IntentPlay && (intent.Column == nil || *intent.Column != tt.column) {
				t.Errorf("Column = %v, want %d", intent.Column, tt.column)
			}
			if intent.Code != tt.code {
				t.Errorf("Code = %q, want %q", intent.Code, tt.code)
			}
		})
	}

	if intent, err := parseCommand(""); intent != nil || err != nil {
		t.Errorf("Expected a blank line to be ignored, got %v, %v", intent, err)
	}
	intent, err := parseCommand("quit")
	if err != errQuit || intent == nil || intent.Type != gamews.IntentLeave {
		t.Errorf("Expected quit to leave, got %v, %v", intent, err)
	}
}

func TestRender(t *testing.T) {
	board := engine.NewBoard()
	board[5][3] = engine.PlayerA
	snap := &session.Snapshot{Code: "ABC123", Host: "alice", Guest: "bob", Board: board, Turn: "bob", Status: session.StatusInProgress}

	var buf bytes.Buffer
	render(&buf, serverMessage{Type: string(service.EventGameUpdated), Snapshot: snap}, "bob")
	out := buf.String()
	if !strings.Contains(out, " . . . X . . .\n") {
		t.Errorf("Expected the bottom row, got:\n%s", out)
	}
	if !strings.Contains(out, "1 2 3 4 5 6 7") {
		t.Errorf("Expected column numbers, got:\n%s", out)
	}
	if !strings.Contains(out, "Your move (O)") {
		t.Errorf("Expected a prompt for bob, got:\n%s", out)
	}

	buf.Reset()
	render(&buf, serverMessage{Type: string(service.EventGameOver), Winner: "alice", Reason: service.ReasonForfeit}, "alice")
	if out := buf.String(); !strings.Contains(out, "You win!") || !strings.Contains(out, "opponent left") {
		t.Errorf("Unexpected game over text:\n%s", out)
	}

	buf.Reset()
	render(&buf, serverMessage{Type: gamews.MessageError, Error: "not_your_turn", Message: "not your turn"}, "bob")
	if out := buf.String(); out != "Error: not your turn (not_your_turn)\n" {
		t.Errorf("Unexpected error text %q", out)
	}
}

func TestRunPlayOverWebSocket(t *testing.T) {
	ts, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	hostIn, hostW := io.Pipe()
	guestIn, guestW := io.Pipe()
	defer hostW.Close()
	defer guestW.Close()
	hostOut, guestOut := &lockedBuffer{}, &lockedBuffer{}

	hostDone := make(chan error, 1)
	go func() {
		hostDone <- RunPlay(ctx, PlayOptions{Server: ts.URL, Player: "alice"}, hostIn, hostOut)
	}()

	created := waitFor(t, hostOut, "created")
	m := regexp.MustCompile(`Room (\w+) created`).FindStringSubmatch(created)
	if m == nil {
		t.Fatalf("No room code in output:\n%s", created)
	}

	guestDone := make(chan error, 1)
	go func() {
		guestDone <- RunPlay(ctx, PlayOptions{Server: ts.URL, Player: "bob", Room: m[1]}, guestIn, guestOut)
	}()

	waitFor(t, hostOut, "Your move (X)")
	waitFor(t, guestOut, "Waiting for alice")

	io.WriteString(hostW, "4\n")
	waitFor(t, guestOut, "Your move (O)")

	io.WriteString(guestW, "9\n")
	waitFor(t, guestOut, "unknown command")

	io.WriteString(guestW, "1\n")
	waitFor(t, hostOut, " O . . X . . .")

	io.WriteString(guestW, "2\n")
	waitFor(t, guestOut, "Error: not your turn")

	io.WriteString(hostW, "quit\n")
	if err := <-hostDone; err != nil {
		t.Errorf("host RunPlay returned %v", err)
	}
	waitFor(t, guestOut, "alice left the room.")
	waitFor(t, guestOut, "You win!")

	guestW.Close()
	if err := <-guestDone; err != nil {
		t.Errorf("guest RunPlay returned %v", err)
	}
}
