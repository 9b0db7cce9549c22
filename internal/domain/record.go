package domain

import (
	"strings"
	"time"
)

// defaultSampleSeconds is substituted when a collector omits the duration or
// reports a non-positive value. Collectors sample at roughly one-minute
// intervals, so a missing duration is assumed to cover one interval.
const defaultSampleSeconds = 60

// ActivityRecord is a single collector snapshot persisted in the store.
// Records are append-only; nothing in the service mutates them after write.
type ActivityRecord struct {
	ID              string
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
	CreatedAt       time.Time
}

// EffectiveDurationSeconds returns the reported duration, falling back to the
// default sampling interval for absent or non-positive values. Every aggregate
// must use this accessor so sums and counts stay consistent.
func (r ActivityRecord) EffectiveDurationSeconds() float64 {
	if r.DurationSeconds > 0 {
		return r.DurationSeconds
	}
	return defaultSampleSeconds
}

// EffectiveDurationMinutes converts the effective duration for reporting.
func (r ActivityRecord) EffectiveDurationMinutes() float64 {
	return r.EffectiveDurationSeconds() / 60
}

// Wellformed reports whether the record carries the minimum fields every
// aggregate depends on. Malformed records are skipped during aggregation
// rather than failing the whole report.
func (r ActivityRecord) Wellformed() bool {
	if strings.TrimSpace(r.Application) == "" {
		return false
	}
	if r.ObservedAt.IsZero() {
		return false
	}
	return true
}
