package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeCollectorFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestReadFileParsesSnapshots(t *testing.T) {
	path := writeCollectorFile(t, `{"user_id":"user-1","application":"Visual Studio Code","window_title":"main.go","timestamp":"2026-03-02T09:00:00Z","duration":300,"is_active":true,"is_focused":true,"memory_usage_mb":512.5,"cpu_usage_percent":4.2}
{"user_id":"user-1","application":"Slack","timestamp":"2026-03-02T09:05:00Z","duration":120}
`)

	result, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 2)
	require.Zero(t, result.Skipped)

	first := result.Snapshots[0]
	require.Equal(t, "user-1", first.UserID)
	require.Equal(t, "Visual Studio Code", first.Application)
	require.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), first.ObservedAt)
	require.Equal(t, 300.0, first.DurationSeconds)
	require.Equal(t, 512.5, first.MemoryMB)
	require.True(t, first.IsFocused)
	require.Equal(t, DefaultSource, first.Source)
}

func TestReadFileSkipsMalformedLines(t *testing.T) {
	path := writeCollectorFile(t, `not json at all
{"user_id":"user-1","application":"Slack","timestamp":"2026-03-02T09:05:00Z"}
{"user_id":"","application":"Slack","timestamp":"2026-03-02T09:05:00Z"}
{"user_id":"user-1","application":"Slack","timestamp":"yesterday"}

{"user_id":"user-1","application":"Terminal","timestamp":"2026-03-02T09:10:00Z"}
`)

	result, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 2)
	require.Equal(t, 3, result.Skipped)
}

func TestReadFileKeepsExplicitSource(t *testing.T) {
	path := writeCollectorFile(t, `{"user_id":"user-1","application":"Slack","timestamp":"2026-03-02T09:05:00Z","source":"browser-extension"}
`)

	result, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)
	require.Equal(t, "browser-extension", result.Snapshots[0].Source)
}

func TestReadFileMissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}
