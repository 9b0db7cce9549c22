package domain

import (
	"math"
	"sort"
)

// Productivity weights per category. The composite score is the time-weighted
// average of these, scaled to 0-100.
var productivityWeights = map[Category]float64{
	CategoryFocus:    1.0,
	CategoryMeetings: 0.75,
	CategoryBreaks:   0.25,
	CategoryOther:    0.5,
}

// DataSource flags whether a report was computed from the requested window or
// fell back to the user's full history.
const (
	DataSourceRecent     = "recent"
	DataSourceHistorical = "historical"
)

// WorkPatternSummary is one category row of a work-pattern report.
type WorkPatternSummary struct {
	Category                  Category `json:"category"`
	TotalTimeMinutes          float64  `json:"total_time_minutes"`
	SessionCount              int      `json:"session_count"`
	AvgSessionDurationMinutes float64  `json:"avg_session_duration_minutes"`
	UniqueApplications        int      `json:"unique_applications"`
	Percentage                int      `json:"percentage"`
	ProductivityWeight        float64  `json:"productivity_score"`
}

// ProductivityMetrics is the composite view across all categories.
type ProductivityMetrics struct {
	FocusTimePercentage   int `json:"focus_time_percentage"`
	MeetingTimePercentage int `json:"meeting_time_percentage"`
	BreakTimePercentage   int `json:"break_time_percentage"`
	OtherTimePercentage   int `json:"other_time_percentage"`
	ProductivityScore     int `json:"productivity_score"`
}

// WorkPatternReport bundles the per-category rows with the composite metrics.
type WorkPatternReport struct {
	WorkPatterns   []WorkPatternSummary `json:"work_patterns"`
	Metrics        ProductivityMetrics  `json:"metrics"`
	DataSource     string               `json:"data_source"`
	RecordCount    int                  `json:"record_count"`
	SkippedRecords int                  `json:"skipped_records"`
}

type categoryBucket struct {
	totalMinutes float64
	sessions     []float64
	applications map[string]struct{}
}

// AggregateWorkPatterns reduces a record set into per-category totals,
// percentages, and the weighted productivity score. The computation is pure:
// the same records always produce the same report. Malformed records are
// skipped and counted, never fatal.
func AggregateWorkPatterns(records []ActivityRecord) WorkPatternReport {
	buckets := make(map[Category]*categoryBucket, len(Categories))
	for _, cat := range Categories {
		buckets[cat] = &categoryBucket{applications: make(map[string]struct{})}
	}

	skipped := 0
	counted := 0
	for _, record := range records {
		if !record.Wellformed() {
			skipped++
			continue
		}
		counted++

		minutes := record.EffectiveDurationMinutes()
		bucket := buckets[Categorize(record.Application)]
		bucket.totalMinutes += minutes
		bucket.sessions = append(bucket.sessions, minutes)
		bucket.applications[record.Application] = struct{}{}
	}

	var totalMinutes float64
	for _, bucket := range buckets {
		totalMinutes += bucket.totalMinutes
	}

	summaries := make([]WorkPatternSummary, 0, len(Categories))
	var weightedMinutes float64
	percentages := make(map[Category]int, len(Categories))

	for _, cat := range Categories {
		bucket := buckets[cat]

		percentage := 0
		if totalMinutes > 0 {
			percentage = int(math.Round(bucket.totalMinutes / totalMinutes * 100))
		}
		percentages[cat] = percentage

		avgSession := 0.0
		if len(bucket.sessions) > 0 {
			avgSession = bucket.totalMinutes / float64(len(bucket.sessions))
		}

		weightedMinutes += bucket.totalMinutes * productivityWeights[cat]

		summaries = append(summaries, WorkPatternSummary{
			Category:                  cat,
			TotalTimeMinutes:          roundMinutes(bucket.totalMinutes),
			SessionCount:              len(bucket.sessions),
			AvgSessionDurationMinutes: roundMinutes(avgSession),
			UniqueApplications:        len(bucket.applications),
			Percentage:                percentage,
			ProductivityWeight:        productivityWeights[cat],
		})
	}

	// Stable ordering: busiest category first, fixed category order on ties.
	order := map[Category]int{}
	for i, cat := range Categories {
		order[cat] = i
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].TotalTimeMinutes != summaries[j].TotalTimeMinutes {
			return summaries[i].TotalTimeMinutes > summaries[j].TotalTimeMinutes
		}
		return order[summaries[i].Category] < order[summaries[j].Category]
	})

	score := 0
	if totalMinutes > 0 {
		score = int(math.Round(weightedMinutes / totalMinutes * 100))
	}

	return WorkPatternReport{
		WorkPatterns: summaries,
		Metrics: ProductivityMetrics{
			FocusTimePercentage:   percentages[CategoryFocus],
			MeetingTimePercentage: percentages[CategoryMeetings],
			BreakTimePercentage:   percentages[CategoryBreaks],
			OtherTimePercentage:   percentages[CategoryOther],
			ProductivityScore:     score,
		},
		DataSource:     DataSourceRecent,
		RecordCount:    counted,
		SkippedRecords: skipped,
	}
}

// roundMinutes keeps reported minutes to two decimal places so JSON output is
// stable across runs.
func roundMinutes(minutes float64) float64 {
	return math.Round(minutes*100) / 100
}
