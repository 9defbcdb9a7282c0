package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecord(code string, at time.Time) *MatchRecord {
	return &MatchRecord{
		RoomCode:   code,
		Host:       "alice",
		Guest:      "bob",
		Winner:     "alice",
		Outcome:    OutcomeWon,
		Moves:      7,
		FinishedAt: at,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, code := range []string{"AAAAAA", "BBBBBB", "CCCCCC"} {
		if err := store.Save(ctx, sampleRecord(code, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records after trimming, got %d", len(records))
	}
	if records[0].RoomCode != "CCCCCC" || records[1].RoomCode != "BBBBBB" {
		t.Errorf("Expected newest first, got %s, %s", records[0].RoomCode, records[1].RoomCode)
	}
	if records[0].ID == "" {
		t.Error("Expected Save to assign an ID")
	}

	one, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("Expected 1 record, got %d", len(one))
	}
}

func TestMemoryStoreRejectsNil(t *testing.T) {
	if err := NewMemoryStore(0).Save(context.Background(), nil); !errors.Is(err, ErrNilRecord) {
		t.Errorf("Expected ErrNilRecord, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "matches")

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	empty, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent on empty store failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no records, got %d", len(empty))
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	older := sampleRecord("OLD001", base)
	newer := sampleRecord("NEW001", base.Add(time.Hour))
	newer.Outcome = OutcomeDrawn
	newer.Winner = ""
	for _, r := range []*MatchRecord{older, newer} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, older.ID+".json")); err != nil {
		t.Errorf("Expected record file on disk: %v", err)
	}

	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	records, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].RoomCode != "NEW001" || records[0].Outcome != OutcomeDrawn {
		t.Errorf("Expected newest drawn record first, got %+v", records[0])
	}
	if !records[1].FinishedAt.Equal(base) {
		t.Errorf("Expected FinishedAt to round-trip, got %v", records[1].FinishedAt)
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(limited) != 1 || limited[0].RoomCode != "NEW001" {
		t.Errorf("Expected only the newest record, got %+v", limited)
	}
}

func TestFileStoreCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := store.Recent(context.Background(), 5); err == nil {
		t.Error("Expected an error for a corrupt record")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Config{Backend: "memory", Limit: 5})
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}

	store, err = Open(ctx, Config{Backend: "file", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open(file) failed: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("Expected *FileStore, got %T", store)
	}

	if _, err := Open(ctx, Config{Backend: "postgres"}); !errors.Is(err, ErrMissingDSN) {
		t.Errorf("Expected ErrMissingDSN, got %v", err)
	}
	if _, err := Open(ctx, Config{Backend: "mongo"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestRedisStoreDefaults(t *testing.T) {
	store := newRedisStore(RedisOptions{})
	defer store.Close()

	if store.key != defaultRedisKey {
		t.Errorf("Expected key %q, got %q", defaultRedisKey, store.key)
	}
	if store.limit != defaultMemoryLimit {
		t.Errorf("Expected limit %d, got %d", defaultMemoryLimit, store.limit)
	}
	if got := store.client.Options().Addr; got != "localhost:6379" {
		t.Errorf("Expected default address, got %q", got)
	}
}
