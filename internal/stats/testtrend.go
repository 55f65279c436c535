package stats

import "github.com/cipulse/cipulse-api/internal/models"

// ReconstructTestTrend joins workflow runs (newest first, as returned from
// storage) to at most one test result each, keyed by workflow run ID, and
// returns the series oldest first for chart consumers. Each point is dated
// by the run's creation time, since test parsing can lag behind the run.
// Runs without a joined result are skipped, not emitted as zero points.
func ReconstructTestTrend(runs []models.WorkflowRunRecord, results map[int64]models.TestResultRecord) []models.TestTrendPoint {
	points := make([]models.TestTrendPoint, 0, len(runs))
	for _, run := range runs {
		result, ok := results[run.RunID]
		if !ok {
			continue
		}
		points = append(points, models.TestTrendPoint{
			Date:         run.WorkflowCreatedAt,
			TotalTests:   result.TotalTests,
			PassedTests:  result.PassedTests,
			FailedTests:  result.FailedTests,
			SkippedTests: result.SkippedTests,
		})
	}

	// Input is newest first; charts expect chronological order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}
