package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/session"
)

const archiveTimeout = 5 * time.Second

// gameServiceImpl implements the GameService interface. It holds no lock of
// its own: rooms serialize their own operations and the registry guards its
// map, so operations on different rooms never wait on each other.
type gameServiceImpl struct {
	rooms    RoomRegistry
	notifier Notifier
	archive  archive.Store
	logger   *zap.Logger
	now      func() time.Time

	// archiving counts archive writes still in flight.
	archiving sync.WaitGroup
}

// Option configures the game service.
type Option func(*gameServiceImpl)

// WithNotifier sets where room events are published.
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithArchive records finished matches in store.
func WithArchive(store archive.Store) Option {
	return func(s *gameServiceImpl) {
		s.archive = store
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *gameServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *gameServiceImpl) {
		s.now = now
	}
}

// NewGameService creates a new game service instance
func NewGameService(rooms RoomRegistry, opts ...Option) GameService {
	s := &gameServiceImpl{
		rooms:    rooms,
		notifier: NotifierFunc(func(GameEvent) {}),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom registers a new room with host waiting for an opponent.
func (s *gameServiceImpl) CreateRoom(ctx context.Context, host string) (*RoomResult, error) {
	_, snap, err := s.rooms.CreateRoom(host)
	if err != nil {
		if errors.Is(err, session.ErrInvalidIdentity) {
			return nil, err
		}
		s.logger.Error("failed to create room", zap.String("player", host), zap.Error(err))
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	s.logger.Info("room created", zap.String("room", snap.Code), zap.String("player", host))

	events := []GameEvent{s.event(EventRoomCreated, &snap, func(e *GameEvent) {
		e.Player = host
	})}
	s.publish(events)

	return &RoomResult{Snapshot: &snap, Events: events}, nil
}

// JoinRoom seats guest and starts the match.
func (s *gameServiceImpl) JoinRoom(ctx context.Context, code, guest string) (*RoomResult, error) {
	_, snap, err := s.rooms.JoinRoom(code, guest)
	if err != nil {
		s.rejected("join", code, guest, err)
		return nil, err
	}

	s.logger.Info("player joined", zap.String("room", snap.Code), zap.String("player", guest))

	events := []GameEvent{
		s.event(EventRoomJoined, &snap, func(e *GameEvent) { e.Player = guest }),
		s.event(EventGameStarted, &snap, nil),
	}
	s.publish(events)

	return &RoomResult{Snapshot: &snap, Events: events}, nil
}

// GetRoom returns the current snapshot of a room.
func (s *gameServiceImpl) GetRoom(ctx context.Context, code string) (*session.Snapshot, error) {
	snap, err := s.rooms.GetRoom(code)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListRooms returns rooms matching filter, most recently active first.
func (s *gameServiceImpl) ListRooms(ctx context.Context, filter RoomFilter) ([]*session.Snapshot, error) {
	all := s.rooms.List()

	result := make([]*session.Snapshot, 0, len(all))
	for i := range all {
		snap := &all[i]
		if filter.Status != "" && snap.Status != filter.Status {
			continue
		}
		if filter.Player != "" && snap.Host != filter.Player && snap.Guest != filter.Player {
			continue
		}
		result = append(result, snap)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// CloseRoom tears a room down regardless of who is seated.
func (s *gameServiceImpl) CloseRoom(ctx context.Context, code string) error {
	snap, err := s.rooms.GetRoom(code)
	if err != nil {
		return err
	}
	if !s.rooms.RemoveRoom(code) {
		return session.ErrRoomNotFound
	}

	s.logger.Info("room closed", zap.String("room", snap.Code))
	s.publish([]GameEvent{s.event(EventRoomClosed, &snap, func(e *GameEvent) {
		e.Reason = ReasonClosed
	})})
	return nil
}

// Play applies a move. Expected rejections are returned unchanged so callers
// can match them with errors.Is.
func (s *gameServiceImpl) Play(ctx context.Context, code, player string, column int) (*MoveResult, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		s.rejected("play", code, player, err)
		return nil, err
	}

	out, err := room.Play(player, column)
	if err != nil {
		s.rejected("play", code, player, err)
		return nil, err
	}

	snap := out.Snapshot
	result := &MoveResult{
		Snapshot: &snap,
		Placed:   out.Placed,
		GameOver: out.Won || out.Drawn,
		Draw:     out.Drawn,
	}
	if out.Won {
		result.Winner = snap.Winner
	}

	s.logger.Debug("move",
		zap.String("room", snap.Code),
		zap.String("player", player),
		zap.Int("column", column),
		zap.Int("row", out.Placed.Row),
		zap.String("status", string(snap.Status)),
	)

	result.Events = append(result.Events, s.event(EventGameUpdated, &snap, func(e *GameEvent) {
		e.Player = player
	}))

	switch {
	case out.Won:
		result.Events = append(result.Events, s.event(EventGameOver, &snap, func(e *GameEvent) {
			e.Winner = snap.Winner
			e.Cells = snap.WinningCells
			e.Reason = ReasonConnectFour
		}))
		s.logger.Info("game won", zap.String("room", snap.Code), zap.String("player", snap.Winner), zap.Int("moves", snap.MoveCount))
	case out.Drawn:
		result.Events = append(result.Events, s.event(EventGameOver, &snap, func(e *GameEvent) {
			e.Draw = true
			e.Reason = ReasonBoardFull
		}))
		s.logger.Info("game drawn", zap.String("room", snap.Code))
	}

	s.publish(result.Events)
	switch {
	case out.Won:
		s.record(snap, archive.OutcomeWon)
	case out.Drawn:
		s.record(snap, archive.OutcomeDrawn)
	}
	return result, nil
}

// Leave removes player from the room. A player leaving a match in progress
// forfeits it to the opponent. The room is removed when destroy is set or
// nobody is left.
func (s *gameServiceImpl) Leave(ctx context.Context, code, player string, destroy bool) (*LeaveResult, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		s.rejected("leave", code, player, err)
		return nil, err
	}

	out, err := room.Leave(player, destroy)
	if err != nil {
		s.rejected("leave", code, player, err)
		return nil, err
	}

	// The room lock is released; removal only takes the registry lock.
	if out.Closed {
		s.rooms.RemoveRoom(code)
	}

	snap := out.Snapshot
	result := &LeaveResult{
		Snapshot:  &snap,
		Player:    out.Player,
		Remaining: out.Remaining,
		Forfeit:   out.Forfeit,
		Closed:    out.Closed,
	}

	s.logger.Info("player left",
		zap.String("room", snap.Code),
		zap.String("player", player),
		zap.Bool("destroy", destroy),
		zap.Bool("forfeit", out.Forfeit),
		zap.Bool("closed", out.Closed),
	)

	result.Events = append(result.Events, s.event(EventPlayerLeft, &snap, func(e *GameEvent) {
		e.Player = player
	}))
	if out.Forfeit {
		result.Events = append(result.Events, s.event(EventGameOver, &snap, func(e *GameEvent) {
			e.Winner = out.Remaining
			e.Reason = ReasonForfeit
		}))
	}
	if out.Closed {
		result.Events = append(result.Events, s.event(EventRoomClosed, &snap, func(e *GameEvent) {
			e.Reason = ReasonLeft
		}))
	}

	s.publish(result.Events)
	if out.Forfeit {
		s.record(snap, archive.OutcomeForfeit, player)
	}
	return result, nil
}

// PlayAgain resets a finished match in place. The host moves first.
func (s *gameServiceImpl) PlayAgain(ctx context.Context, code, player string) (*RoomResult, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		s.rejected("play_again", code, player, err)
		return nil, err
	}

	snap, err := room.PlayAgain(player)
	if err != nil {
		s.rejected("play_again", code, player, err)
		return nil, err
	}

	s.logger.Info("rematch started", zap.String("room", snap.Code), zap.String("player", player))

	events := []GameEvent{
		s.event(EventGameReset, &snap, func(e *GameEvent) { e.Player = player }),
		s.event(EventGameUpdated, &snap, nil),
	}
	s.publish(events)

	return &RoomResult{Snapshot: &snap, Events: events}, nil
}

// Push relays an application payload to everyone in the room.
func (s *gameServiceImpl) Push(ctx context.Context, code, name string, data interface{}) error {
	snap, err := s.rooms.GetRoom(code)
	if err != nil {
		return err
	}
	if name == "" {
		name = "message"
	}

	s.publish([]GameEvent{{
		ID:        uuid.NewString(),
		Type:      EventPushed,
		Code:      snap.Code,
		Name:      name,
		Data:      data,
		Timestamp: s.now(),
	}})
	return nil
}

// ReapIdle removes rooms idle for longer than maxIdle and notifies anyone
// still connected to them.
func (s *gameServiceImpl) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	expired := s.rooms.ExpireIdle(maxIdle)
	for i := range expired {
		snap := expired[i]
		s.publish([]GameEvent{s.event(EventRoomClosed, &snap, func(e *GameEvent) {
			e.Reason = ReasonIdle
		})})
	}

	if len(expired) > 0 {
		s.logger.Info("reaped idle rooms", zap.Int("count", len(expired)), zap.Duration("max_idle", maxIdle))
	}
	return len(expired)
}

// Flush waits for archive writes started by earlier operations.
func (s *gameServiceImpl) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.archiving.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentMatches lists archived results, newest first.
func (s *gameServiceImpl) RecentMatches(ctx context.Context, limit int) ([]*archive.MatchRecord, error) {
	if s.archive == nil {
		return []*archive.MatchRecord{}, nil
	}
	records, err := s.archive.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read match archive: %w", err)
	}
	return records, nil
}

func (s *gameServiceImpl) event(t EventType, snap *session.Snapshot, fill func(*GameEvent)) GameEvent {
	e := GameEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Code:      snap.Code,
		Snapshot:  snap,
		Timestamp: s.now(),
	}
	if fill != nil {
		fill(&e)
	}
	return e
}

func (s *gameServiceImpl) publish(events []GameEvent) {
	for _, e := range events {
		s.notifier.Publish(e)
	}
}

// record archives a finished match in the background so a slow store never
// holds up the caller. The forfeiting player, if any, is not listed as a
// participant in the snapshot any more, so it is passed in.
func (s *gameServiceImpl) record(snap session.Snapshot, outcome archive.Outcome, leaver ...string) {
	if s.archive == nil {
		return
	}

	rec := &archive.MatchRecord{
		RoomCode:   snap.Code,
		Host:       snap.Host,
		Guest:      snap.Guest,
		Winner:     snap.Winner,
		Outcome:    outcome,
		Moves:      snap.MoveCount,
		Board:      snap.Board.String(),
		FinishedAt: s.now().UTC(),
	}
	if len(leaver) > 0 && rec.Guest == "" {
		rec.Guest = leaver[0]
	}

	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archive.Save(ctx, rec); err != nil {
			s.logger.Warn("failed to archive match", zap.String("room", rec.RoomCode), zap.Error(err))
		}
	}()
}

// rejected logs an expected, client-caused failure.
func (s *gameServiceImpl) rejected(op, code, player string, err error) {
	s.logger.Debug("request rejected",
		zap.String("op", op),
		zap.String("room", code),
		zap.String("player", player),
		zap.String("reason", ErrorCode(err)),
		zap.Error(err),
	)
}
