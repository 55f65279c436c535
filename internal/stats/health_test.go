package stats

import (
	"testing"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

func runWithStatus(status string, createdAt time.Time) models.WorkflowRunRecord {
	return models.WorkflowRunRecord{Status: status, WorkflowCreatedAt: createdAt}
}

func TestAggregateHealth_Counts(t *testing.T) {
	anchor := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	runs := []models.WorkflowRunRecord{
		runWithStatus(models.RunStatusSuccess, anchor),
		runWithStatus(models.RunStatusSuccess, anchor.AddDate(0, 0, -1)),
		runWithStatus(models.RunStatusFailure, anchor.AddDate(0, 0, -1)),
		runWithStatus(models.RunStatusCancelled, anchor),
		runWithStatus(models.RunStatusInProgress, anchor),
		runWithStatus(models.RunStatusQueued, anchor),
	}

	summary := AggregateHealth(runs, anchor, 7)

	if summary.Total != 6 {
		t.Errorf("Total = %d, want 6", summary.Total)
	}
	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	// Cancelled/in-progress/queued count toward the total only.
	if summary.Succeeded+summary.Failed > summary.Total {
		t.Error("succeeded + failed must never exceed total")
	}
	// round(2/6*100) = 33
	if summary.HealthPercentage != 33 {
		t.Errorf("HealthPercentage = %d, want 33", summary.HealthPercentage)
	}
}

func TestAggregateHealth_EmptyWindowIsInactive(t *testing.T) {
	anchor := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	summary := AggregateHealth(nil, anchor, 7)

	if summary.Total != 0 || summary.HealthPercentage != 0 {
		t.Errorf("empty window: total=%d pct=%d, want 0/0", summary.Total, summary.HealthPercentage)
	}
	if len(summary.PerDay) != 7 {
		t.Fatalf("PerDay has %d entries, want 7", len(summary.PerDay))
	}
	for _, day := range summary.PerDay {
		if day.Succeeded != 0 || day.Failed != 0 {
			t.Errorf("day %s not zero-filled: %+v", day.Date, day)
		}
	}
}

func TestAggregateHealth_PerDayAssignment(t *testing.T) {
	anchor := time.Date(2024, 3, 10, 23, 0, 0, 0, time.Local)
	runs := []models.WorkflowRunRecord{
		runWithStatus(models.RunStatusSuccess, time.Date(2024, 3, 10, 1, 0, 0, 0, time.Local)),
		runWithStatus(models.RunStatusFailure, time.Date(2024, 3, 10, 2, 0, 0, 0, time.Local)),
		runWithStatus(models.RunStatusSuccess, time.Date(2024, 3, 8, 9, 0, 0, 0, time.Local)),
	}

	summary := AggregateHealth(runs, anchor, 7)

	last := summary.PerDay[len(summary.PerDay)-1]
	if last.Date != "2024-03-10" || last.Succeeded != 1 || last.Failed != 1 {
		t.Errorf("2024-03-10 bucket = %+v, want {2024-03-10 1 1}", last)
	}

	found := false
	for _, day := range summary.PerDay {
		if day.Date == "2024-03-08" {
			found = true
			if day.Succeeded != 1 || day.Failed != 0 {
				t.Errorf("2024-03-08 bucket = %+v, want 1 success", day)
			}
		}
	}
	if !found {
		t.Error("2024-03-08 bucket missing from window")
	}
}

func TestAggregateHealth_PercentageBounds(t *testing.T) {
	anchor := time.Now()
	allSuccess := []models.WorkflowRunRecord{
		runWithStatus(models.RunStatusSuccess, anchor),
		runWithStatus(models.RunStatusSuccess, anchor),
	}
	if pct := AggregateHealth(allSuccess, anchor, 7).HealthPercentage; pct != 100 {
		t.Errorf("all-success percentage = %d, want 100", pct)
	}

	allFailed := []models.WorkflowRunRecord{runWithStatus(models.RunStatusFailure, anchor)}
	if pct := AggregateHealth(allFailed, anchor, 7).HealthPercentage; pct != 0 {
		t.Errorf("all-failure percentage = %d, want 0", pct)
	}
}
