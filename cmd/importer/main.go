// Command importer loads collector JSONL snapshot files into the activity
// store. Re-running the importer over the same files is safe: each line maps
// to a deterministic idempotency key.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workwatch/internal/collector"
	"example.com/workwatch/internal/config"
	"example.com/workwatch/internal/domain"
	"example.com/workwatch/internal/persistence/jsonl"
	persistence "example.com/workwatch/internal/persistence/postgres"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant the imported snapshots belong to (required)")
	flag.Parse()

	if *tenantID == "" {
		log.Fatal("missing required -tenant flag")
	}
	if flag.NArg() == 0 {
		log.Fatal("usage: importer -tenant <tenant-id> <file.jsonl> [file.jsonl ...]")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var store domain.RecordStore
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		store = persistence.NewRepository(pool)
	case config.StorageJSONL:
		fileStore, err := jsonl.NewStore(cfg.SnapshotDir)
		if err != nil {
			log.Fatalf("failed to open snapshot directory: %v", err)
		}
		store = fileStore
	default:
		log.Fatalf("unknown storage backend: %q", cfg.StorageBackend)
	}

	service := domain.NewService(store)

	var imported, replayed, skipped int
	for _, path := range flag.Args() {
		result, err := collector.ReadFile(path)
		if err != nil {
			log.Fatalf("failed to read %s: %v", path, err)
		}
		skipped += result.Skipped

		for _, snapshot := range result.Snapshots {
			_, replay, err := service.RecordSnapshot(ctx, domain.RecordSnapshotInput{
				TenantID:        *tenantID,
				UserID:          snapshot.UserID,
				Application:     snapshot.Application,
				WindowTitle:     snapshot.WindowTitle,
				ObservedAt:      snapshot.ObservedAt,
				DurationSeconds: snapshot.DurationSeconds,
				IsActive:        snapshot.IsActive,
				IsFocused:       snapshot.IsFocused,
				MemoryMB:        snapshot.MemoryMB,
				CPUPercent:      snapshot.CPUPercent,
				Source:          snapshot.Source,
				IdempotencyKey:  importKey(snapshot),
			})
			if err != nil {
				log.Fatalf("failed to import snapshot from %s: %v", path, err)
			}
			if replay {
				replayed++
			} else {
				imported++
			}
		}
		log.Printf("imported %s (%d snapshots, %d malformed lines skipped)", path, len(result.Snapshots), result.Skipped)
	}

	log.Printf("done: %d imported, %d replayed, %d skipped", imported, replayed, skipped)
}

// importKey derives a stable idempotency key so re-imports do not duplicate
// rows.
func importKey(s collector.Snapshot) string {
	return fmt.Sprintf("import:%s:%s:%s", s.UserID, s.Application, s.ObservedAt.Format(time.RFC3339Nano))
}
