// Package domain defines the business logic for the workwatch service.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrIdempotentReplay indicates an existing snapshot was found for the provided idempotency key.
	ErrIdempotentReplay = errors.New("snapshot already exists for idempotency key")
	// ErrSnapshotNotFound is returned when a snapshot cannot be located.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// RecordStore captures persistence operations over the append-only activity
// store. Postgres and flat JSONL files both implement it, so every report is
// written once against this interface.
type RecordStore interface {
	FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*ActivityRecord, error)
	Insert(ctx context.Context, record ActivityRecord, idempotencyKey string) error
	Get(ctx context.Context, tenantID, recordID string) (*ActivityRecord, error)
	ListByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error)
	// RecordsByUser returns every record for the user observed at or after
	// since. A zero since means no lower bound. Ordering is unspecified; the
	// aggregates do their own grouping.
	RecordsByUser(ctx context.Context, tenantID, userID string, since time.Time) ([]ActivityRecord, error)
}

// Cursor models the pagination token for snapshot listings.
type Cursor struct {
	ObservedAt time.Time
	ID         string
}

// Service orchestrates snapshot ingestion and report computation.
type Service struct {
	store RecordStore
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store RecordStore) *Service {
	return &Service{store: store, now: time.Now}
}

// RecordSnapshotInput captures the ingest payload from the API layer.
type RecordSnapshotInput struct {
	TenantID        string
	UserID          string
	Application     string
	WindowTitle     string
	ObservedAt      time.Time
	DurationSeconds float64
	IsActive        bool
	IsFocused       bool
	MemoryMB        float64
	CPUPercent      float64
	Source          string
	IdempotencyKey  string
}

// RecordSnapshot handles idempotent snapshot ingestion. The returned bool is
// true when an existing record was replayed for the idempotency key.
func (s *Service) RecordSnapshot(ctx context.Context, input RecordSnapshotInput) (*ActivityRecord, bool, error) {
	if existing, err := s.store.FindByIdempotency(ctx, input.TenantID, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.now().UTC()
	record := ActivityRecord{
		ID:              uuid.NewString(),
		TenantID:        input.TenantID,
		UserID:          input.UserID,
		Application:     input.Application,
		WindowTitle:     input.WindowTitle,
		ObservedAt:      input.ObservedAt.UTC(),
		DurationSeconds: input.DurationSeconds,
		IsActive:        input.IsActive,
		IsFocused:       input.IsFocused,
		MemoryMB:        input.MemoryMB,
		CPUPercent:      input.CPUPercent,
		Source:          input.Source,
		CreatedAt:       now,
	}

	if err := s.store.Insert(ctx, record, input.IdempotencyKey); err != nil {
		return nil, false, err
	}

	return &record, false, nil
}

// GetSnapshot fetches a snapshot by ID.
func (s *Service) GetSnapshot(ctx context.Context, tenantID, recordID string) (*ActivityRecord, error) {
	record, err := s.store.Get(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrSnapshotNotFound
	}
	return record, nil
}

// ListSnapshots fetches snapshots with cursor pagination.
func (s *Service) ListSnapshots(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]ActivityRecord, *Cursor, error) {
	return s.store.ListByUser(ctx, tenantID, userID, cursor, limit)
}

// windowedRecords fetches records observed within the window. When the window
// yields nothing but the user has history, the full history is used instead:
// a stale report beats an empty one. The returned flag states which happened.
func (s *Service) windowedRecords(ctx context.Context, tenantID, userID string, window time.Duration) ([]ActivityRecord, string, error) {
	since := time.Time{}
	if window > 0 {
		since = s.now().UTC().Add(-window)
	}

	records, err := s.store.RecordsByUser(ctx, tenantID, userID, since)
	if err != nil {
		return nil, "", err
	}
	if len(records) > 0 || since.IsZero() {
		return records, DataSourceRecent, nil
	}

	all, err := s.store.RecordsByUser(ctx, tenantID, userID, time.Time{})
	if err != nil {
		return nil, "", err
	}
	return all, DataSourceHistorical, nil
}

// WorkPatterns computes the category breakdown and productivity metrics for a
// user over the requested window.
func (s *Service) WorkPatterns(ctx context.Context, tenantID, userID string, window time.Duration) (*WorkPatternReport, error) {
	records, source, err := s.windowedRecords(ctx, tenantID, userID, window)
	if err != nil {
		return nil, err
	}

	report := AggregateWorkPatterns(records)
	report.DataSource = source
	return &report, nil
}

// UsageSummaryReport wraps a usage summary with its data-source flag.
type UsageSummaryReport struct {
	Summary    UsageSummary `json:"summary"`
	DataSource string       `json:"data_source"`
}

// UsageSummary computes application-usage stats for a user over the window.
func (s *Service) UsageSummary(ctx context.Context, tenantID, userID string, window time.Duration) (*UsageSummaryReport, error) {
	records, source, err := s.windowedRecords(ctx, tenantID, userID, window)
	if err != nil {
		return nil, err
	}
	return &UsageSummaryReport{Summary: ComputeUsageSummary(records), DataSource: source}, nil
}

// ResourceStatsReport wraps resource stats with its data-source flag.
type ResourceStatsReport struct {
	Stats      ResourceStats `json:"stats"`
	DataSource string        `json:"data_source"`
}

// ResourceStats computes memory/CPU stats for a user over the window.
func (s *Service) ResourceStats(ctx context.Context, tenantID, userID string, window time.Duration) (*ResourceStatsReport, error) {
	records, source, err := s.windowedRecords(ctx, tenantID, userID, window)
	if err != nil {
		return nil, err
	}
	return &ResourceStatsReport{Stats: ComputeResourceStats(records), DataSource: source}, nil
}

// TopMemoryReport wraps the memory ranking with its data-source flag.
type TopMemoryReport struct {
	Applications []ApplicationMemory `json:"applications"`
	DataSource   string              `json:"data_source"`
}

// TopMemoryApplications ranks a user's applications by average memory usage.
func (s *Service) TopMemoryApplications(ctx context.Context, tenantID, userID string, window time.Duration, limit int) (*TopMemoryReport, error) {
	records, source, err := s.windowedRecords(ctx, tenantID, userID, window)
	if err != nil {
		return nil, err
	}
	return &TopMemoryReport{Applications: TopMemoryApplications(records, limit), DataSource: source}, nil
}
