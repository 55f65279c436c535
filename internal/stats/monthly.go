package stats

import (
	"math"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

// MonthlyWindowMonths is the trailing window used for monthly trends.
const MonthlyWindowMonths = 12

// AggregateMonthlyRuns buckets runs into the trailing monthly window using
// the same status rule as the health summary. Every month in the window is
// present, zero-filled, oldest first.
func AggregateMonthlyRuns(runs []models.WorkflowRunRecord, anchor time.Time, months int) []models.MonthlyRunBucket {
	keys := MonthlyKeys(anchor, months)
	index := keyIndex(keys)

	buckets := make([]models.MonthlyRunBucket, len(keys))
	for i, key := range keys {
		buckets[i] = models.MonthlyRunBucket{Month: key}
	}

	for _, run := range runs {
		i, ok := index[MonthKey(run.WorkflowCreatedAt)]
		if !ok {
			continue
		}
		buckets[i].Total++
		switch run.Status {
		case models.RunStatusSuccess:
			buckets[i].Succeeded++
		case models.RunStatusFailure:
			buckets[i].Failed++
		}
	}
	return buckets
}

// AggregateDurationTrend produces per-month duration summaries over the
// trailing window. Only runs with a present, strictly positive duration
// enter the sample; a missing or zero duration is excluded entirely rather
// than dragging the average toward zero. Empty months are all-zero.
func AggregateDurationTrend(runs []models.WorkflowRunRecord, anchor time.Time, months int) []models.MonthlyDurationBucket {
	keys := MonthlyKeys(anchor, months)
	index := keyIndex(keys)

	buckets := make([]models.MonthlyDurationBucket, len(keys))
	sums := make([]int64, len(keys))
	for i, key := range keys {
		buckets[i] = models.MonthlyDurationBucket{Month: key}
	}

	for _, run := range runs {
		if run.DurationMillis == nil || *run.DurationMillis <= 0 {
			continue
		}
		i, ok := index[MonthKey(run.WorkflowCreatedAt)]
		if !ok {
			continue
		}
		d := *run.DurationMillis
		if buckets[i].SampleCount == 0 {
			buckets[i].MinDuration = d
			buckets[i].MaxDuration = d
		} else {
			if d < buckets[i].MinDuration {
				buckets[i].MinDuration = d
			}
			if d > buckets[i].MaxDuration {
				buckets[i].MaxDuration = d
			}
		}
		sums[i] += d
		buckets[i].SampleCount++
	}

	for i := range buckets {
		if buckets[i].SampleCount > 0 {
			buckets[i].AvgDuration = int64(math.Round(float64(sums[i]) / float64(buckets[i].SampleCount)))
		}
	}
	return buckets
}
