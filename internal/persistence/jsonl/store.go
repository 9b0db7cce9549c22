// Package jsonl implements the activity store over flat JSONL snapshot files,
// one file per day, as written by the local data collector. It is the
// single-host alternative to the Postgres store.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/observability"
)

const fileExtension = ".jsonl"

// line is the on-disk representation of one snapshot.
type line struct {
	SnapshotID      string    `json:"snapshot_id"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	Application     string    `json:"application"`
	WindowTitle     string    `json:"window_title,omitempty"`
	ObservedAt      time.Time `json:"observed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	IsActive        bool      `json:"is_active"`
	IsFocused       bool      `json:"is_focused"`
	MemoryMB        float64   `json:"memory_mb"`
	CPUPercent      float64   `json:"cpu_percent"`
	Source          string    `json:"source,omitempty"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store reads and appends daily JSONL snapshot files under a directory.
// Appends are serialised with a mutex; reads re-scan the files on every call,
// which keeps the store trivially consistent for the volumes involved.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *log.Logger
}

// NewStore constructs a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: log.New(log.Writer(), "[jsonl-store] ", log.LstdFlags),
	}, nil
}

func (s *Store) fileForDay(day time.Time) string {
	return filepath.Join(s.dir, "snapshots-"+day.UTC().Format("2006-01-02")+fileExtension)
}

// Insert appends the record to the file for its observation day.
func (s *Store) Insert(_ context.Context, record domain.ActivityRecord, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := line{
		SnapshotID:      record.ID,
		TenantID:        record.TenantID,
		UserID:          record.UserID,
		Application:     record.Application,
		WindowTitle:     record.WindowTitle,
		ObservedAt:      record.ObservedAt.UTC(),
		DurationSeconds: record.DurationSeconds,
		IsActive:        record.IsActive,
		IsFocused:       record.IsFocused,
		MemoryMB:        record.MemoryMB,
		CPUPercent:      record.CPUPercent,
		Source:          record.Source,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       record.CreatedAt.UTC(),
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(s.fileForDay(record.ObservedAt), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(append(body, '\n')); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	observability.RecordSnapshotPersisted(record.CreatedAt)
	return nil
}

// FindByIdempotency scans for a record carrying the supplied idempotency key.
func (s *Store) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.ActivityRecord, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	entries, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.TenantID == tenantID && entry.UserID == userID && entry.IdempotencyKey == idempotencyKey {
			record := entry.toRecord()
			return &record, nil
		}
	}
	return nil, nil
}

// Get retrieves a snapshot by ID.
func (s *Store) Get(ctx context.Context, tenantID, recordID string) (*domain.ActivityRecord, error) {
	entries, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.TenantID == tenantID && entry.SnapshotID == recordID {
			record := entry.toRecord()
			return &record, nil
		}
	}
	return nil, nil
}

// ListByUser returns snapshots newest-first with cursor pagination, matching
// the ordering contract of the Postgres store.
func (s *Store) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	entries, err := s.readAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	records := make([]domain.ActivityRecord, 0)
	for _, entry := range entries {
		if entry.TenantID != tenantID || entry.UserID != userID {
			continue
		}
		records = append(records, entry.toRecord())
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].ObservedAt.Equal(records[j].ObservedAt) {
			return records[i].ObservedAt.After(records[j].ObservedAt)
		}
		return records[i].ID > records[j].ID
	})

	if cursor != nil {
		filtered := records[:0]
		for _, record := range records {
			if record.ObservedAt.After(cursor.ObservedAt) {
				continue
			}
			if record.ObservedAt.Equal(cursor.ObservedAt) && record.ID >= cursor.ID {
				continue
			}
			filtered = append(filtered, record)
		}
		records = filtered
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(records) == limit {
		last := records[len(records)-1]
		nextCursor = &domain.Cursor{ObservedAt: last.ObservedAt, ID: last.ID}
	}

	return records, nextCursor, nil
}

// RecordsByUser returns every snapshot for the user observed at or after
// since. A zero since returns the full history.
func (s *Store) RecordsByUser(ctx context.Context, tenantID, userID string, since time.Time) ([]domain.ActivityRecord, error) {
	entries, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ActivityRecord, 0)
	for _, entry := range entries {
		if entry.TenantID != tenantID || entry.UserID != userID {
			continue
		}
		if !since.IsZero() && entry.ObservedAt.Before(since) {
			continue
		}
		records = append(records, entry.toRecord())
	}
	return records, nil
}

func (e line) toRecord() domain.ActivityRecord {
	return domain.ActivityRecord{
		ID:              e.SnapshotID,
		TenantID:        e.TenantID,
		UserID:          e.UserID,
		Application:     e.Application,
		WindowTitle:     e.WindowTitle,
		ObservedAt:      e.ObservedAt,
		DurationSeconds: e.DurationSeconds,
		IsActive:        e.IsActive,
		IsFocused:       e.IsFocused,
		MemoryMB:        e.MemoryMB,
		CPUPercent:      e.CPUPercent,
		Source:          e.Source,
		CreatedAt:       e.CreatedAt,
	}
}

// readAll parses every snapshot file in the directory. Malformed lines are
// skipped and logged; one bad line must not invalidate a whole report.
func (s *Store) readAll(ctx context.Context) ([]line, error) {
	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	entries := make([]line, 0)
	for _, dirEntry := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), fileExtension) {
			continue
		}

		path := filepath.Join(s.dir, dirEntry.Name())
		fileEntries, err := s.readFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	return entries, nil
}

func (s *Store) readFile(path string) ([]line, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Collector lines with long window titles can exceed the default buffer.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	entries := make([]line, 0)
	malformed := 0
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry line
		if err := json.Unmarshal(raw, &entry); err != nil {
			malformed++
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if malformed > 0 {
		s.logger.Printf("skipped %d malformed lines in %s", malformed, filepath.Base(path))
	}
	return entries, nil
}
