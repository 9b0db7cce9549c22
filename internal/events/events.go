// Package events defines the event payloads published to downstream consumers.
package events

import "time"

// SnapshotRecorded is emitted when a collector snapshot is accepted into the
// activity store. Downstream dashboards and the suggestion pipeline consume it.
type SnapshotRecorded struct {
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
	Source          string    `json:"source"`
}
