package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/events"
)

// EventTypeSnapshotRecorded is the event type emitted for accepted collector snapshots.
const EventTypeSnapshotRecorded = "snapshot.recorded"

// SnapshotHandler ingests snapshot.recorded events into the activity store.
type SnapshotHandler struct {
	store  domain.RecordStore
	logger *log.Logger
}

// NewSnapshotHandler constructs a handler backed by the provided store.
func NewSnapshotHandler(store domain.RecordStore, logger *log.Logger) *SnapshotHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[snapshot-handler] ", log.LstdFlags)
	}
	return &SnapshotHandler{store: store, logger: logger}
}

// Handle decodes a snapshot event and persists it. Unknown event types are
// skipped so the processor commits past them.
func (h *SnapshotHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != EventTypeSnapshotRecorded {
		h.logger.Printf("skipping unhandled event type %q (topic=%s, offset=%d)", msg.EventType, msg.Topic, msg.Offset)
		return nil
	}

	var event events.SnapshotRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode snapshot payload: %w", err)
	}

	tenantID := event.TenantID
	if tenantID == "" {
		tenantID = msg.TenantID
	}
	if tenantID == "" {
		return fmt.Errorf("snapshot event missing tenant id (offset=%d)", msg.Offset)
	}

	record := domain.ActivityRecord{
		ID:              event.SnapshotID,
		TenantID:        tenantID,
		UserID:          event.UserID,
		Application:     event.Application,
		WindowTitle:     event.WindowTitle,
		ObservedAt:      event.ObservedAt.UTC(),
		DurationSeconds: event.DurationSeconds,
		IsActive:        event.IsActive,
		IsFocused:       event.IsFocused,
		MemoryMB:        event.MemoryMB,
		CPUPercent:      event.CPUPercent,
		Source:          event.Source,
		CreatedAt:       time.Now().UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if !record.Wellformed() {
		// Malformed snapshots are dropped rather than retried forever.
		h.logger.Printf("dropping malformed snapshot (tenant=%s, user=%s, offset=%d)", tenantID, event.UserID, msg.Offset)
		return nil
	}

	idempotencyKey := event.SnapshotID
	if idempotencyKey == "" {
		idempotencyKey = fmt.Sprintf("%s:%s:%s", tenantID, event.UserID, record.ObservedAt.Format(time.RFC3339Nano))
	}

	existing, err := h.store.FindByIdempotency(ctx, tenantID, event.UserID, idempotencyKey)
	if err != nil {
		return fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		return nil
	}

	if err := h.store.Insert(ctx, record, idempotencyKey); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
