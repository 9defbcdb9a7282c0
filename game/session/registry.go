package session

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// CodeLength is the number of characters in a generated room code.
	CodeLength = 6

	codeAlphabet        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	defaultCodeAttempts = 16
)

// CodeGenerator returns a candidate room code. The registry retries on
// collision, so generators need not guarantee uniqueness.
type CodeGenerator func() (string, error)

// Registry maps room codes to rooms. The registry lock guards only the map;
// each room carries its own lock, and the registry never holds its lock while
// waiting on a room that is busy with a move.
type Registry struct {
	rooms    map[string]*Room
	mu       sync.RWMutex
	generate CodeGenerator
	attempts int
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(r *Registry) {
		r.generate = gen
	}
}

// WithCodeAttempts sets how many candidate codes CreateRoom tries before
// giving up with ErrCodeSpaceExhausted.
func WithCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithClock replaces time.Now, mainly for idle-expiry tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		generate: NewCode,
		attempts: defaultCodeAttempts,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom allocates a fresh code and registers a room waiting for an
// opponent. Nothing is inserted unless the whole operation succeeds.
func (m *Registry) CreateRoom(host string) (*Room, Snapshot, error) {
	if host == "" {
		return nil, Snapshot{}, ErrInvalidIdentity
	}

	m.mu.Lock()
	var room *Room
	for i := 0; i < m.attempts; i++ {
		code, err := m.generate()
		if err != nil {
			m.mu.Unlock()
			return nil, Snapshot{}, fmt.Errorf("failed to generate room code: %w", err)
		}
		code = NormalizeCode(code)
		if code == "" {
			continue
		}
		if _, exists := m.rooms[code]; exists {
			m.logger.Debug("room code collision", zap.String("room", code), zap.Int("attempt", i+1))
			continue
		}
		room = newRoom(code, host, m.now)
		m.rooms[code] = room
		break
	}
	m.mu.Unlock()

	if room == nil {
		return nil, Snapshot{}, fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, m.attempts)
	}
	return room, room.Snapshot(), nil
}

// JoinRoom seats guest in the room identified by code.
func (m *Registry) JoinRoom(code, guest string) (*Room, Snapshot, error) {
	room, err := m.Get(code)
	if err != nil {
		return nil, Snapshot{}, err
	}
	snap, err := room.Join(guest)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return room, snap, nil
}

// Get resolves a room code. The lookup is case-insensitive.
func (m *Registry) Get(code string) (*Room, error) {
	code = NormalizeCode(code)

	m.mu.RLock()
	room, exists := m.rooms[code]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetRoom returns a snapshot of the room identified by code.
func (m *Registry) GetRoom(code string) (Snapshot, error) {
	room, err := m.Get(code)
	if err != nil {
		return Snapshot{}, err
	}
	return room.Snapshot(), nil
}

// RemoveRoom deletes the room and marks it closed so in-flight operations
// that already resolved it fail with ErrRoomNotFound. Removing an unknown
// code is a no-op; the result reports whether a room was removed.
func (m *Registry) RemoveRoom(code string) bool {
	code = NormalizeCode(code)

	m.mu.Lock()
	room, exists := m.rooms[code]
	if exists {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	room.close()
	return true
}

// List returns snapshots of every registered room ordered by code.
func (m *Registry) List() []Snapshot {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	result := make([]Snapshot, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, room.Snapshot())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result
}

// Count returns the number of registered rooms.
func (m *Registry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// ExpireIdle removes rooms with no activity within maxIdle and returns their
// final snapshots.
func (m *Registry) ExpireIdle(maxIdle time.Duration) []Snapshot {
	cutoff := m.now().Add(-maxIdle)

	m.mu.RLock()
	candidates := make([]*Room, 0)
	for _, room := range m.rooms {
		candidates = append(candidates, room)
	}
	m.mu.RUnlock()

	var expired []Snapshot
	for _, room := range candidates {
		if !room.closeIfIdle(cutoff) {
			continue
		}

		m.mu.Lock()
		if m.rooms[room.code] == room {
			delete(m.rooms, room.code)
		}
		m.mu.Unlock()

		expired = append(expired, room.Snapshot())
	}
	return expired
}

// NormalizeCode trims and upper-cases a user-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewCode generates a random room code of CodeLength characters drawn from
// digits and upper-case letters.
func NewCode() (string, error) {
	// Bytes at or above the largest multiple of len(codeAlphabet) are
	// discarded so every character is equally likely.
	limit := byte(256 - 256%len(codeAlphabet))
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)

	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
