package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome describes how a match ended.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeDrawn   Outcome = "drawn"
	OutcomeForfeit Outcome = "forfeit"
)

var (
	ErrNilRecord      = errors.New("match record cannot be nil")
	ErrUnknownBackend = errors.New("unknown archive backend")
)

// MatchRecord is one finished match.
type MatchRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	RoomCode   string    `json:"room_code" gorm:"size:16;index"`
	Host       string    `json:"host"`
	Guest      string    `json:"guest"`
	Winner     string    `json:"winner,omitempty"`
	Outcome    Outcome   `json:"outcome" gorm:"size:16"`
	Moves      int       `json:"moves"`
	Board      string    `json:"board"`
	FinishedAt time.Time `json:"finished_at" gorm:"index"`
}

// Store persists finished matches.
type Store interface {
	// Save records a finished match. Missing ID and FinishedAt are filled in.
	Save(ctx context.Context, record *MatchRecord) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*MatchRecord, error)

	// Close releases the store's resources.
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Backend string

	// file
	Dir string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	// postgres
	PostgresDSN string

	// Limit caps how many records bounded backends keep.
	Limit int
}

// Open builds the Store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Limit), nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			Limit:    cfg.Limit,
		})
	case "postgres":
		return NewGormStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// prepare validates a record and fills defaults before it is stored.
func prepare(record *MatchRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = time.Now().UTC()
	}
	return nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
