package consumer

import (
	"context"
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/events"
)

func TestSnapshotHandlerPersistsEvent(t *testing.T) {
	store := &memStore{}
	handler := NewSnapshotHandler(store, log.New(testWriter{t}, "", 0))

	observed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	payload, err := json.Marshal(events.SnapshotRecorded{
		SnapshotID:      "snap-1",
		TenantID:        "tenant-1",
		UserID:          "user-1",
		Application:     "Visual Studio Code",
		ObservedAt:      observed,
		DurationSeconds: 300,
		IsActive:        true,
		Source:          "desktop-agent",
	})
	require.NoError(t, err)

	msg := Message{
		Topic:     "collector_snapshots",
		EventType: EventTypeSnapshotRecorded,
		TenantID:  "tenant-1",
		Payload:   payload,
	}
	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Len(t, store.inserted, 1)
	record := store.inserted[0]
	require.Equal(t, "snap-1", record.ID)
	require.Equal(t, "tenant-1", record.TenantID)
	require.Equal(t, "Visual Studio Code", record.Application)
	require.Equal(t, observed, record.ObservedAt)
}

func TestSnapshotHandlerSkipsReplays(t *testing.T) {
	existing := domain.ActivityRecord{ID: "snap-1", TenantID: "tenant-1", UserID: "user-1"}
	store := &memStore{existing: &existing}
	handler := NewSnapshotHandler(store, log.New(testWriter{t}, "", 0))

	payload, err := json.Marshal(events.SnapshotRecorded{
		SnapshotID:  "snap-1",
		TenantID:    "tenant-1",
		UserID:      "user-1",
		Application: "Slack",
		ObservedAt:  time.Now().UTC(),
		Source:      "desktop-agent",
	})
	require.NoError(t, err)

	msg := Message{EventType: EventTypeSnapshotRecorded, TenantID: "tenant-1", Payload: payload}
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Empty(t, store.inserted)
}

func TestSnapshotHandlerDropsMalformed(t *testing.T) {
	store := &memStore{}
	handler := NewSnapshotHandler(store, log.New(testWriter{t}, "", 0))

	payload, err := json.Marshal(events.SnapshotRecorded{
		SnapshotID: "snap-2",
		TenantID:   "tenant-1",
		UserID:     "user-1",
		// Missing application and observed_at.
	})
	require.NoError(t, err)

	msg := Message{EventType: EventTypeSnapshotRecorded, TenantID: "tenant-1", Payload: payload}
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Empty(t, store.inserted)
}

func TestSnapshotHandlerIgnoresOtherEventTypes(t *testing.T) {
	store := &memStore{}
	handler := NewSnapshotHandler(store, log.New(testWriter{t}, "", 0))

	msg := Message{EventType: "something.else", Payload: json.RawMessage(`{}`)}
	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Empty(t, store.inserted)
}

func TestSnapshotHandlerRejectsMissingTenant(t *testing.T) {
	store := &memStore{}
	handler := NewSnapshotHandler(store, log.New(testWriter{t}, "", 0))

	payload, err := json.Marshal(events.SnapshotRecorded{
		SnapshotID:  "snap-3",
		UserID:      "user-1",
		Application: "Slack",
		ObservedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	msg := Message{EventType: EventTypeSnapshotRecorded, Payload: payload}
	require.Error(t, handler.Handle(context.Background(), msg))
}

type memStore struct {
	existing *domain.ActivityRecord
	inserted []domain.ActivityRecord
}

func (m *memStore) FindByIdempotency(_ context.Context, _, _, _ string) (*domain.ActivityRecord, error) {
	return m.existing, nil
}

func (m *memStore) Insert(_ context.Context, record domain.ActivityRecord, _ string) error {
	m.inserted = append(m.inserted, record)
	return nil
}

func (m *memStore) Get(_ context.Context, _, _ string) (*domain.ActivityRecord, error) {
	return nil, nil
}

func (m *memStore) ListByUser(_ context.Context, _, _ string, _ *domain.Cursor, _ int) ([]domain.ActivityRecord, *domain.Cursor, error) {
	return nil, nil, nil
}

func (m *memStore) RecordsByUser(_ context.Context, _, _ string, _ time.Time) ([]domain.ActivityRecord, error) {
	return nil, nil
}
