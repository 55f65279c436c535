package stats

import (
	"math"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

// HealthWindowDays is the trailing window used for the health summary.
const HealthWindowDays = 7

// AggregateHealth reduces the run set into total/success/failure counts, an
// integer health percentage, and zero-filled per-day buckets. Cancelled,
// in-progress, and queued runs count toward the total only. A window with no
// runs is the defined "inactive" state: percentage 0, not an error.
func AggregateHealth(runs []models.WorkflowRunRecord, anchor time.Time, days int) models.HealthSummary {
	keys := DailyKeys(anchor, days)
	index := keyIndex(keys)

	perDay := make([]models.DailyBucket, len(keys))
	for i, key := range keys {
		perDay[i] = models.DailyBucket{Date: key}
	}

	summary := models.HealthSummary{}
	for _, run := range runs {
		summary.Total++
		switch run.Status {
		case models.RunStatusSuccess:
			summary.Succeeded++
			if i, ok := index[DayKey(run.WorkflowCreatedAt)]; ok {
				perDay[i].Succeeded++
			}
		case models.RunStatusFailure:
			summary.Failed++
			if i, ok := index[DayKey(run.WorkflowCreatedAt)]; ok {
				perDay[i].Failed++
			}
		}
	}

	if summary.Total > 0 {
		summary.HealthPercentage = int(math.Round(float64(summary.Succeeded) / float64(summary.Total) * 100))
	}
	summary.PerDay = perDay
	return summary
}
