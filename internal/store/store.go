// Package store owns the date-partitioned, append-only event log. One
// partition per UTC calendar day, one JSON line per event.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cagehq/cage/internal/event"
)

const (
	// DateLayout keys partitions by UTC calendar date.
	DateLayout = "2006-01-02"

	partitionFile = "events.jsonl"
)

// Store reads and writes day partitions under a single root directory.
// It holds no open file handles between calls and no in-memory state, so
// a Store value is safe to share across goroutines.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created lazily on
// first append.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root events directory.
func (s *Store) Dir() string {
	return s.dir
}

// PartitionPath returns the partition file path for a date key.
func (s *Store) PartitionPath(date string) string {
	return filepath.Join(s.dir, date, partitionFile)
}

// Append serializes ev to one JSON line and appends it to the partition
// for the given ingestion time's UTC date. The line (newline included) is
// issued as a single Write on an O_APPEND descriptor, so concurrent
// appends land whole, then the file is synced before returning.
func (s *Store) Append(ev *event.Event, ingestedAt time.Time) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	date := ingestedAt.UTC().Format(DateLayout)
	dir := filepath.Join(s.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir %s: %w", dir, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, partitionFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", date, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to partition %s: %w", date, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync partition %s: %w", date, err)
	}
	return nil
}

// PartitionDates lists existing partition date keys overlapping
// [from, to], inclusive at day granularity, in ascending order. Zero
// bounds are open.
func (s *Store) PartitionDates(from, to time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list partitions in %s: %w", s.dir, err)
	}

	var dates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.ParseInLocation(DateLayout, e.Name(), time.UTC)
		if err != nil {
			continue // not a partition directory
		}
		if !from.IsZero() && d.Before(dayStart(from)) {
			continue
		}
		if !to.IsZero() && d.After(dayStart(to)) {
			continue
		}
		dates = append(dates, e.Name())
	}
	sort.Strings(dates)
	return dates, nil
}

// ReadPartition returns the raw JSON lines of one partition. A trailing
// line without a newline terminator is treated as an in-flight write and
// discarded rather than failing the read, since readers may race the
// single writer. A missing partition reads as empty.
func (s *Store) ReadPartition(date string) ([][]byte, error) {
	data, err := os.ReadFile(s.PartitionPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read partition %s: %w", date, err)
	}

	// Keep only fully terminated lines.
	i := bytes.LastIndexByte(data, '\n')
	if i < 0 {
		return nil, nil
	}
	data = data[:i]

	var lines [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Writable probes whether the partition directory for now's UTC date can
// be created and opened for append. Used by the health endpoint.
func (s *Store) Writable(now time.Time) bool {
	date := now.UTC().Format(DateLayout)
	dir := filepath.Join(s.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	f, err := os.OpenFile(filepath.Join(dir, partitionFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
