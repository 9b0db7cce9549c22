package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/events"
	"example.com/workwatch/internal/observability"
)

const snapshotColumns = `snapshot_id, tenant_id, user_id, application, window_title, observed_at, duration_seconds, is_active, is_focused, memory_mb, cpu_percent, source, created_at`

// Repository provides Postgres-backed persistence for activity snapshots and
// outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (domain.ActivityRecord, error) {
	var record domain.ActivityRecord
	err := row.Scan(
		&record.ID,
		&record.TenantID,
		&record.UserID,
		&record.Application,
		&record.WindowTitle,
		&record.ObservedAt,
		&record.DurationSeconds,
		&record.IsActive,
		&record.IsFocused,
		&record.MemoryMB,
		&record.CPUPercent,
		&record.Source,
		&record.CreatedAt,
	)
	return record, err
}

// FindByIdempotency checks if a snapshot already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.ActivityRecord, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + snapshotColumns + `
        FROM activity_snapshots WHERE tenant_id=$1 AND user_id=$2 AND idempotency_key=$3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	record, err := scanRecord(tx.QueryRow(ctx, query, tenantID, userID, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert persists the snapshot and records the outbox event inside a single transaction.
func (r *Repository) Insert(ctx context.Context, record domain.ActivityRecord, idempotencyKey string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", record.TenantID); err != nil {
		return err
	}

	insertSnapshot := `INSERT INTO activity_snapshots (snapshot_id, tenant_id, user_id, application, window_title, observed_at, duration_seconds, is_active, is_focused, memory_mb, cpu_percent, source, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err = tx.Exec(ctx, insertSnapshot,
		record.ID,
		record.TenantID,
		record.UserID,
		record.Application,
		record.WindowTitle,
		record.ObservedAt,
		record.DurationSeconds,
		record.IsActive,
		record.IsFocused,
		record.MemoryMB,
		record.CPUPercent,
		record.Source,
		nullIfEmpty(idempotencyKey),
		record.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, record, "snapshot.recorded", events.SnapshotRecorded{
		SnapshotID:      record.ID,
		TenantID:        record.TenantID,
		UserID:          record.UserID,
		Application:     record.Application,
		WindowTitle:     record.WindowTitle,
		ObservedAt:      record.ObservedAt,
		DurationSeconds: record.DurationSeconds,
		IsActive:        record.IsActive,
		IsFocused:       record.IsFocused,
		MemoryMB:        record.MemoryMB,
		CPUPercent:      record.CPUPercent,
		Source:          record.Source,
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordSnapshotPersisted(record.CreatedAt)
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, record domain.ActivityRecord, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(record)
	dedupeKey := fmt.Sprintf("%s:%s", record.ID, eventType)

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		record.TenantID,
		"snapshot",
		record.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// Get retrieves a snapshot by ID.
func (r *Repository) Get(ctx context.Context, tenantID, recordID string) (*domain.ActivityRecord, error) {
	query := `SELECT ` + snapshotColumns + `
        FROM activity_snapshots WHERE tenant_id=$1 AND snapshot_id=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	record, err := scanRecord(tx.QueryRow(ctx, query, tenantID, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns snapshots for a user ordered by observation time.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	args := []interface{}{tenantID, userID, limit}
	query := `SELECT ` + snapshotColumns + `
        FROM activity_snapshots WHERE tenant_id=$1 AND user_id=$2`

	if cursor != nil {
		query += ` AND (observed_at, snapshot_id) < ($4, $5)`
		args = append(args, cursor.ObservedAt, cursor.ID)
	}

	query += ` ORDER BY observed_at DESC, snapshot_id DESC LIMIT $3`

	records, err := r.queryRecords(ctx, tenantID, query, args...)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(records) == limit {
		last := records[len(records)-1]
		nextCursor = &domain.Cursor{ObservedAt: last.ObservedAt, ID: last.ID}
	}

	return records, nextCursor, nil
}

// RecordsByUser returns every snapshot for a user observed at or after since.
// A zero since returns the user's full history.
func (r *Repository) RecordsByUser(ctx context.Context, tenantID, userID string, since time.Time) ([]domain.ActivityRecord, error) {
	args := []interface{}{tenantID, userID}
	query := `SELECT ` + snapshotColumns + `
        FROM activity_snapshots WHERE tenant_id=$1 AND user_id=$2`

	if !since.IsZero() {
		query += ` AND observed_at >= $3`
		args = append(args, since)
	}

	return r.queryRecords(ctx, tenantID, query, args...)
}

func (r *Repository) queryRecords(ctx context.Context, tenantID, query string, args ...interface{}) ([]domain.ActivityRecord, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ActivityRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.ActivityRecord) string
}

var eventCatalog = map[string]EventMetadata{
	"snapshot.recorded": {
		Topic:         "activity_snapshots",
		SchemaSubject: "activity_snapshots-value",
		PartitionKeyFn: func(r domain.ActivityRecord) string {
			return fmt.Sprintf("%s:%s", r.TenantID, r.UserID)
		},
	},
}
