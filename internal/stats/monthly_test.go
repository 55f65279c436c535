package stats

import (
	"testing"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

func millis(v int64) *int64 { return &v }

func TestAggregateMonthlyRuns_WindowShape(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	buckets := AggregateMonthlyRuns(nil, anchor, 12)

	if len(buckets) != 12 {
		t.Fatalf("got %d buckets, want 12", len(buckets))
	}
	if buckets[0].Month != "2023-07" || buckets[11].Month != "2024-06" {
		t.Errorf("window bounds = %s..%s, want 2023-07..2024-06", buckets[0].Month, buckets[11].Month)
	}
	for _, b := range buckets {
		if b.Total != 0 || b.Succeeded != 0 || b.Failed != 0 {
			t.Errorf("empty input produced non-zero bucket %+v", b)
		}
	}
}

func TestAggregateMonthlyRuns_StatusRule(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	inMonth := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	runs := []models.WorkflowRunRecord{
		runWithStatus(models.RunStatusSuccess, inMonth),
		runWithStatus(models.RunStatusFailure, inMonth),
		runWithStatus(models.RunStatusCancelled, inMonth),
	}

	buckets := AggregateMonthlyRuns(runs, anchor, 12)
	last := buckets[11]
	if last.Total != 3 || last.Succeeded != 1 || last.Failed != 1 {
		t.Errorf("bucket = %+v, want total=3 succeeded=1 failed=1", last)
	}
}

func TestAggregateMonthlyRuns_IgnoresRunsOutsideWindow(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	ancient := runWithStatus(models.RunStatusSuccess, time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local))

	buckets := AggregateMonthlyRuns([]models.WorkflowRunRecord{ancient}, anchor, 12)
	for _, b := range buckets {
		if b.Total != 0 {
			t.Errorf("out-of-window run leaked into bucket %+v", b)
		}
	}
}

func TestAggregateDurationTrend_ExcludesMissingAndZero(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	inMonth := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

	runs := []models.WorkflowRunRecord{
		{WorkflowCreatedAt: inMonth, DurationMillis: millis(1000)},
		{WorkflowCreatedAt: inMonth, DurationMillis: nil},
		{WorkflowCreatedAt: inMonth, DurationMillis: millis(0)},
		{WorkflowCreatedAt: inMonth, DurationMillis: millis(3000)},
	}

	buckets := AggregateDurationTrend(runs, anchor, 12)
	last := buckets[11]

	if last.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2 (nil and zero excluded)", last.SampleCount)
	}
	if last.AvgDuration != 2000 {
		t.Errorf("AvgDuration = %d, want 2000", last.AvgDuration)
	}
	if last.MinDuration != 1000 || last.MaxDuration != 3000 {
		t.Errorf("min/max = %d/%d, want 1000/3000", last.MinDuration, last.MaxDuration)
	}
}

func TestAggregateDurationTrend_EmptyMonthIsAllZero(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	buckets := AggregateDurationTrend(nil, anchor, 12)

	if len(buckets) != 12 {
		t.Fatalf("got %d buckets, want 12", len(buckets))
	}
	for _, b := range buckets {
		if b.AvgDuration != 0 || b.MinDuration != 0 || b.MaxDuration != 0 || b.SampleCount != 0 {
			t.Errorf("empty month not all-zero: %+v", b)
		}
	}
}

func TestAggregateDurationTrend_AverageRounds(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	inMonth := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	runs := []models.WorkflowRunRecord{
		{WorkflowCreatedAt: inMonth, DurationMillis: millis(1)},
		{WorkflowCreatedAt: inMonth, DurationMillis: millis(2)},
	}
	// 1.5 rounds half away from zero to 2.
	if avg := AggregateDurationTrend(runs, anchor, 12)[11].AvgDuration; avg != 2 {
		t.Errorf("AvgDuration = %d, want 2", avg)
	}
}
