package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore writes one JSON file per match into a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "matches"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := prepare(record); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}

	// Write to a temp file first so readers never see a partial record.
	path := fs.path(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write match file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit match file: %w", err)
	}
	return nil
}

func (fs *FileStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	records := make([]*MatchRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(fs.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read match file: %w", err)
		}
		var record MatchRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match file %s: %w", entry.Name(), err)
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})

	return records[:clampLimit(limit, len(records))], nil
}

func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, fmt.Sprintf("%s.json", id))
}
