//go:build integration

package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestDLQReplayRedeliversSnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	tenantID := uuid.NewString()
	userID := uuid.NewString()
	snapshotID := uuid.NewString()

	payload := map[string]any{
		"snapshot_id":      snapshotID,
		"tenant_id":        tenantID,
		"user_id":          userID,
		"application":      "Visual Studio Code",
		"observed_at":      time.Now().UTC().Truncate(time.Second),
		"duration_seconds": 300,
		"source":           "integration-test",
	}
	insertOutboxPayload(t, ctx, pool, tenantID, snapshotID, payload)

	registry := &stubRegistry{id: 100}

	// 1. Initial dispatch fails and moves the message to DLQ.
	failingProducer := &stubProducer{err: errors.New("upstream kafka unavailable")}
	dispatcher := NewDispatcher(pool, failingProducer, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	var dlqCount int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount, "expected message routed to DLQ on failure")

	// 2. Requeue the DLQ entry.
	manager := NewDLQManager(pool, 5, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount)
	require.NoError(t, err)
	require.Equal(t, 0, dlqCount, "expected DLQ cleared after requeue")

	// 3. Redispatch against a real broker and read the message back.
	kContainer, err := kafkacontainer.RunContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kContainer.Terminate(context.Background()) })

	brokers, err := kContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             "activity_snapshots",
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	producer := NewKafkaProducer([]string{broker})
	defer producer.Close()

	dispatcher = NewDispatcher(pool, producer, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    "activity_snapshots",
		GroupID:  "dlq-replay-test",
		MaxWait:  time.Second,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 45*time.Second)
	defer readCancel()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%s:%s", tenantID, snapshotID), string(msg.Key))

	require.GreaterOrEqual(t, len(msg.Value), 5)
	require.Equal(t, byte(0), msg.Value[0], "expected Confluent magic byte")
	require.Equal(t, uint32(100), binary.BigEndian.Uint32(msg.Value[1:5]))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value[5:], &decoded))
	require.Equal(t, snapshotID, decoded["snapshot_id"])
	require.Equal(t, tenantID, decoded["tenant_id"])
}

func insertOutboxPayload(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID, snapshotID string, payload map[string]any) {
	t.Helper()

	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID)
	require.NoError(t, err)

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		tenantID,
		"snapshot",
		snapshotID,
		"snapshot.recorded",
		"activity_snapshots",
		"activity_snapshots-value",
		fmt.Sprintf("%s:%s", tenantID, snapshotID),
		payloadBytes,
	)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}
