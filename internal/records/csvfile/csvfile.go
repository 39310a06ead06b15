// Package csvfile persists the record table as a flat comma separated file.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rewards/internal/core"
	"rewards/internal/records"
)

// Store reads and writes one CSV file. The mutex only serialises callers in
// this process; other processes writing the same file are not coordinated.
type Store struct {
	mu   sync.Mutex
	path string
}

var (
	_ records.Store       = (*Store)(nil)
	_ records.Quarantiner = (*Store)(nil)
)

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load implements records.Loader
func (s *Store) Load(ctx context.Context) records.LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return records.MissingResult()
	}
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("read %s: %w", s.path, err))
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return records.LoadedResult(nil)
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("%w: parse %s: %v", records.ErrMalformed, s.path, err))
	}
	t, err := records.DecodeTable(rows)
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("decode %s: %w", s.path, err))
	}
	slog.DebugContext(ctx, "Loaded CSV records", "path", s.path, "rows", len(t))
	return records.LoadedResult(t)
}

// Save implements records.Saver. The table is written to a temporary file
// in the same directory and renamed over the target.
func (s *Store) Save(ctx context.Context, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t = t.WithRecomputedWeeks()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records.EncodeTable(t)); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	slog.InfoContext(ctx, "Saved CSV records", "path", s.path, "rows", len(t))
	return nil
}

// Quarantine renames the current file to a timestamped sibling so that the
// next Save does not destroy data that failed to parse.
func (s *Store) Quarantine(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := fmt.Sprintf("%s.unreadable-%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", s.path, err)
	}
	slog.WarnContext(ctx, "Moved unreadable CSV aside", "path", s.path, "moved_to", dst)
	return dst, nil
}
