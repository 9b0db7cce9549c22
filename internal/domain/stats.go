package domain

import (
	"math"
	"sort"
)

// UsageSummary describes how a user's tracked time is spread across
// applications within the selected record set.
type UsageSummary struct {
	TotalRecords        int     `json:"total_records"`
	SkippedRecords      int     `json:"skipped_records"`
	UniqueApplications  int     `json:"unique_applications"`
	MostUsedApplication string  `json:"most_used_application,omitempty"`
	MostUsedRecordCount int     `json:"most_used_record_count"`
	TotalTimeMinutes    float64 `json:"total_time_minutes"`
	ActiveRecords       int     `json:"active_records"`
	FocusedRecords      int     `json:"focused_records"`
}

// ResourceStats summarises the instantaneous memory/CPU readings carried on
// each snapshot.
type ResourceStats struct {
	SampleCount       int     `json:"sample_count"`
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	AverageMemoryMB   float64 `json:"average_memory_mb"`
	PeakMemoryMB      float64 `json:"peak_memory_mb"`
	AverageCPUPercent float64 `json:"average_cpu_percent"`
}

// ApplicationMemory is one row of the top-memory ranking.
type ApplicationMemory struct {
	Application     string  `json:"application"`
	AverageMemoryMB float64 `json:"average_memory_mb"`
	PeakMemoryMB    float64 `json:"peak_memory_mb"`
	Samples         int     `json:"samples"`
}

// ComputeUsageSummary derives application-usage counts from a record set.
// Each stats reduction recomputes its own view; nothing is shared or cached.
func ComputeUsageSummary(records []ActivityRecord) UsageSummary {
	summary := UsageSummary{}
	counts := make(map[string]int)

	for _, record := range records {
		if !record.Wellformed() {
			summary.SkippedRecords++
			continue
		}
		summary.TotalRecords++
		summary.TotalTimeMinutes += record.EffectiveDurationMinutes()
		counts[record.Application]++
		if record.IsActive {
			summary.ActiveRecords++
		}
		if record.IsFocused {
			summary.FocusedRecords++
		}
	}

	summary.TotalTimeMinutes = roundMinutes(summary.TotalTimeMinutes)
	summary.UniqueApplications = len(counts)

	// Mode of application by record count; lexicographic tie-break keeps the
	// result deterministic.
	for app, count := range counts {
		if count > summary.MostUsedRecordCount ||
			(count == summary.MostUsedRecordCount && app < summary.MostUsedApplication) {
			summary.MostUsedApplication = app
			summary.MostUsedRecordCount = count
		}
	}

	return summary
}

// ComputeResourceStats derives memory/CPU aggregates, guarding every division
// against an empty set.
func ComputeResourceStats(records []ActivityRecord) ResourceStats {
	stats := ResourceStats{}
	var totalCPU float64

	for _, record := range records {
		if !record.Wellformed() {
			continue
		}
		stats.SampleCount++
		stats.TotalMemoryMB += record.MemoryMB
		totalCPU += record.CPUPercent
		if record.MemoryMB > stats.PeakMemoryMB {
			stats.PeakMemoryMB = record.MemoryMB
		}
	}

	if stats.SampleCount > 0 {
		stats.AverageMemoryMB = round2(stats.TotalMemoryMB / float64(stats.SampleCount))
		stats.AverageCPUPercent = round2(totalCPU / float64(stats.SampleCount))
	}
	stats.TotalMemoryMB = round2(stats.TotalMemoryMB)
	stats.PeakMemoryMB = round2(stats.PeakMemoryMB)

	return stats
}

// TopMemoryApplications ranks applications by average memory usage, highest
// first. A non-positive limit returns every application.
func TopMemoryApplications(records []ActivityRecord, limit int) []ApplicationMemory {
	type accumulator struct {
		total   float64
		peak    float64
		samples int
	}
	byApp := make(map[string]*accumulator)

	for _, record := range records {
		if !record.Wellformed() {
			continue
		}
		acc, ok := byApp[record.Application]
		if !ok {
			acc = &accumulator{}
			byApp[record.Application] = acc
		}
		acc.total += record.MemoryMB
		acc.samples++
		if record.MemoryMB > acc.peak {
			acc.peak = record.MemoryMB
		}
	}

	ranking := make([]ApplicationMemory, 0, len(byApp))
	for app, acc := range byApp {
		ranking = append(ranking, ApplicationMemory{
			Application:     app,
			AverageMemoryMB: round2(acc.total / float64(acc.samples)),
			PeakMemoryMB:    round2(acc.peak),
			Samples:         acc.samples,
		})
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].AverageMemoryMB != ranking[j].AverageMemoryMB {
			return ranking[i].AverageMemoryMB > ranking[j].AverageMemoryMB
		}
		return ranking[i].Application < ranking[j].Application
	})

	if limit > 0 && limit < len(ranking) {
		ranking = ranking[:limit]
	}
	return ranking
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
