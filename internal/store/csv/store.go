// Package csv persists harvested work records to an append-only CSV
// file. The file doubles as the durable dedup source: work ids read
// back from it seed the run ledger so reruns skip already-saved works.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
)

var header = []string{"work_id", "title", "authors", "description", "avg_rating"}

// WorkStore appends records to a single CSV file. The header row is
// written once, when the file is first created. Appends are flushed
// and fsynced before returning so a record reported as appended
// survives a crash.
type WorkStore struct {
	mu   sync.Mutex
	path string
}

// NewWorkStore returns a store writing to path. The file is not
// created until the first append.
func NewWorkStore(path string) (*WorkStore, error) {
	if path == "" {
		return nil, errors.New("csv store path must not be empty")
	}
	return &WorkStore{path: path}, nil
}

// Exists reports whether a previous run already created the file.
func (s *WorkStore) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat store: %w", err)
	}
	return true, nil
}

// Keys returns every work id previously appended to the file. A
// missing or empty file yields no keys.
func (s *WorkStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store header: %w", err)
	}

	idCol := -1
	for i, name := range first {
		if name == "work_id" {
			idCol = i
			break
		}
	}
	if idCol == -1 {
		return nil, fmt.Errorf("store %s has no work_id column", s.path)
	}

	var keys []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read store row: %w", err)
		}
		if idCol < len(row) {
			keys = append(keys, row[idCol])
		}
	}
	return keys, nil
}

// Append writes records to the end of the file, creating it with a
// header row on first use.
func (s *WorkStore) Append(_ context.Context, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write store header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return fmt.Errorf("write record %s: %w", rec.WorkID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	return nil
}

func row(rec harvest.Record) []string {
	rating := ""
	if rec.AvgRating != nil {
		rating = strconv.FormatFloat(*rec.AvgRating, 'f', -1, 64)
	}
	return []string{rec.WorkID, rec.Title, rec.Authors, rec.Description, rating}
}
