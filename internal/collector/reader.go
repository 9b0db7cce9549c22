// Package collector parses activity snapshot files produced by the desktop
// data-collector. Files are JSONL: one snapshot object per line.
package collector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultSource labels records imported from collector files when the line
// carries no source of its own.
const DefaultSource = "data-collector"

// Snapshot is a single parsed collector line.
type Snapshot struct {
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
}

// Result carries the parsed snapshots plus a count of lines that could not be
// decoded.
type Result struct {
	Snapshots []Snapshot
	Skipped   int
}

type snapshotLine struct {
	UserID          string  `json:"user_id"`
	Application     string  `json:"application"`
	WindowTitle     string  `json:"window_title"`
	Timestamp       string  `json:"timestamp"`
	Duration        float64 `json:"duration"`
	IsActive        bool    `json:"is_active"`
	IsFocused       bool    `json:"is_focused"`
	MemoryUsageMB   float64 `json:"memory_usage_mb"`
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	Source          string  `json:"source"`
}

// ReadFile parses a collector JSONL file. Malformed lines are skipped and
// counted rather than failing the whole file.
func ReadFile(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open collector file: %w", err)
	}
	defer file.Close()

	var result Result

	scanner := bufio.NewScanner(file)
	// Window titles can make lines long; raise the scanner limit.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry snapshotLine
		if err := json.Unmarshal(line, &entry); err != nil {
			result.Skipped++
			continue
		}

		snapshot, ok := entry.toSnapshot()
		if !ok {
			result.Skipped++
			continue
		}
		result.Snapshots = append(result.Snapshots, snapshot)
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scan collector file: %w", err)
	}
	return result, nil
}

func (l snapshotLine) toSnapshot() (Snapshot, bool) {
	if l.UserID == "" || l.Application == "" || l.Timestamp == "" {
		return Snapshot{}, false
	}

	observed, err := time.Parse(time.RFC3339Nano, l.Timestamp)
	if err != nil {
		return Snapshot{}, false
	}

	source := l.Source
	if source == "" {
		source = DefaultSource
	}

	return Snapshot{
		UserID:          l.UserID,
		Application:     l.Application,
		WindowTitle:     l.WindowTitle,
		ObservedAt:      observed.UTC(),
		DurationSeconds: l.Duration,
		IsActive:        l.IsActive,
		IsFocused:       l.IsFocused,
		MemoryMB:        l.MemoryUsageMB,
		CPUPercent:      l.CPUUsagePercent,
		Source:          source,
	}, true
}
