package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/session"
)

// BotOptions configures RunBot.
type BotOptions struct {
	Player string
	// Room is joined, or resumed if Player is already seated. Empty creates
	// a new room.
	Room  string
	Games int
	Poll  time.Duration
	Delay time.Duration
	// OnRoom is called once the bot is seated.
	OnRoom func(code string)
}

// BotSummary tallies the games a bot finished.
type BotSummary struct {
	Code   string
	Games  int
	Wins   int
	Losses int
	Draws  int
}

func (s BotSummary) String() string {
	return fmt.Sprintf("room %s: %d games, %d won, %d lost, %d drawn", s.Code, s.Games, s.Wins, s.Losses, s.Draws)
}

// bot tracks what it has seen of the current match so that a match that
// ended and was restarted between two polls is still counted.
type bot struct {
	api     *APIClient
	opts    BotOptions
	out     io.Writer
	summary BotSummary
	inGame  bool
	moves   int

	// baseline is how many matches of the room were archived before the
	// bot sat down.
	baseline int
}

// archiveLookups bounds how often the bot polls for a result that is still
// being archived.
const archiveLookups = 20

// RunBot plays opts.Games matches over the REST API and leaves the room.
func RunBot(ctx context.Context, api *APIClient, opts BotOptions, out io.Writer) (BotSummary, error) {
	if opts.Games <= 0 {
		opts.Games = 1
	}
	if opts.Poll <= 0 {
		opts.Poll = 200 * time.Millisecond
	}
	b := &bot{api: api, opts: opts, out: out}

	snap, err := b.seat(ctx)
	if err != nil {
		return b.summary, err
	}
	b.summary.Code = snap.Code
	if matches, err := b.roomMatches(ctx); err == nil {
		b.baseline = len(matches)
	}
	fmt.Fprintf(out, "%s seated in room %s\n", opts.Player, snap.Code)
	if opts.OnRoom != nil {
		opts.OnRoom(snap.Code)
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	for {
		done, err := b.step(ctx, snap)
		if err != nil || done {
			return b.summary, err
		}

		select {
		case <-ctx.Done():
			return b.summary, ctx.Err()
		case <-ticker.C:
		}

		snap, err = api.GetRoom(ctx, b.summary.Code)
		if IsStatus(err, http.StatusNotFound) {
			if b.inGame {
				b.countFromArchive(ctx)
			}
			return b.summary, fmt.Errorf("room %s was closed", b.summary.Code)
		}
		if err != nil {
			return b.summary, err
		}
	}
}

func (b *bot) seat(ctx context.Context) (*session.Snapshot, error) {
	if b.opts.Room == "" {
		return b.api.CreateRoom(ctx, b.opts.Player)
	}
	snap, err := b.api.GetRoom(ctx, b.opts.Room)
	if err != nil {
		return nil, err
	}
	if snap.Piece(b.opts.Player) != engine.Empty {
		return snap, nil
	}
	return b.api.JoinRoom(ctx, b.opts.Room, b.opts.Player)
}

// step reacts to one snapshot. It reports true once enough games were
// counted and the bot has left.
func (b *bot) step(ctx context.Context, snap *session.Snapshot) (bool, error) {
	if b.inGame && snap.Status != session.StatusInProgress && !snap.Status.Finished() {
		// The match ended and the opponent left before we saw the result.
		b.countFromArchive(ctx)
		return b.afterGame(ctx, snap)
	}

	switch {
	case snap.Status.Finished():
		if !b.inGame {
			return false, nil
		}
		b.count(snap.Winner, snap.Status == session.StatusDrawn)
		return b.afterGame(ctx, snap)

	case snap.Status == session.StatusInProgress:
		if b.inGame && snap.MoveCount < b.moves {
			b.countFromArchive(ctx)
			if done, err := b.afterGame(ctx, snap); done || err != nil {
				return done, err
			}
		}
		b.inGame = true
		b.moves = snap.MoveCount
		if snap.Turn != b.opts.Player {
			return false, nil
		}
		return b.move(ctx, snap)
	}
	return false, nil
}

func (b *bot) move(ctx context.Context, snap *session.Snapshot) (bool, error) {
	col, ok := NewStrategy(snap.Piece(b.opts.Player)).NextMove(snap.Board)
	if !ok {
		return false, nil
	}
	if b.opts.Delay > 0 {
		time.Sleep(b.opts.Delay)
	}

	result, err := b.api.Play(ctx, snap.Code, b.opts.Player, col)
	if IsStatus(err, http.StatusConflict) {
		// Stale snapshot; the next poll catches up.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	b.moves = result.Snapshot.MoveCount
	if result.GameOver || result.Draw {
		b.count(result.Winner, result.Draw)
		return b.afterGame(ctx, result.Snapshot)
	}
	return false, nil
}

// afterGame starts a rematch or leaves once enough games were played.
func (b *bot) afterGame(ctx context.Context, snap *session.Snapshot) (bool, error) {
	if b.summary.Games >= b.opts.Games {
		fmt.Fprintf(b.out, "%s: %s\n", b.opts.Player, b.summary)
		if err := b.api.Leave(ctx, b.summary.Code, b.opts.Player); err != nil && !IsStatus(err, http.StatusNotFound) {
			return true, err
		}
		return true, nil
	}

	if snap.Status.Finished() {
		_, err := b.api.PlayAgain(ctx, snap.Code, b.opts.Player)
		if err != nil && !IsStatus(err, http.StatusConflict) {
			return false, err
		}
	}
	return false, nil
}

func (b *bot) count(winner string, draw bool) {
	b.inGame = false
	b.moves = 0
	b.summary.Games++
	switch {
	case draw:
		b.summary.Draws++
	case winner == b.opts.Player:
		b.summary.Wins++
	default:
		b.summary.Losses++
	}
	fmt.Fprintf(b.out, "%s: game %d finished (winner %q, draw %v)\n", b.opts.Player, b.summary.Games, winner, draw)
}

// countFromArchive counts a match whose final state was never observed,
// taking its result from the newest archived match of the room.
func (b *bot) countFromArchive(ctx context.Context) {
	rec, err := b.lastMatch(ctx)
	if err != nil {
		fmt.Fprintf(b.out, "%s: result of a finished match is unknown: %v\n", b.opts.Player, err)
		b.count("", false)
		return
	}
	b.count(rec.Winner, rec.Outcome == archive.OutcomeDrawn)
}

// lastMatch returns the archive record of the game about to be counted.
// Results are archived in the background, so it waits until the record
// shows up.
func (b *bot) lastMatch(ctx context.Context) (*archive.MatchRecord, error) {
	want := b.baseline + b.summary.Games + 1
	for i := 0; i < archiveLookups; i++ {
		matches, err := b.roomMatches(ctx)
		if err != nil {
			return nil, err
		}
		// Newest first, so the n-th match of the room sits n from the end.
		if len(matches) >= want {
			return &matches[len(matches)-want], nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.opts.Poll):
		}
	}
	return nil, errors.New("no archived match for room")
}

// roomMatches lists the archived matches of the bot's room, newest first.
func (b *bot) roomMatches(ctx context.Context) ([]archive.MatchRecord, error) {
	matches, err := b.api.RecentMatches(ctx, 100)
	if err != nil {
		return nil, err
	}
	var out []archive.MatchRecord
	for _, m := range matches {
		if m.RoomCode == b.summary.Code {
			out = append(out, m)
		}
	}
	return out, nil
}
