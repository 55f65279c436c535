package models

import "time"

// DailyBucket holds run counts for a single calendar day.
type DailyBucket struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// MonthlyRunBucket holds run counts for a single calendar month.
type MonthlyRunBucket struct {
	Month     string `json:"month"` // YYYY-MM
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}

// MonthlyDurationBucket summarizes run durations for a single month, in
// integer milliseconds. Runs without a positive duration are excluded from
// the sample entirely.
type MonthlyDurationBucket struct {
	Month       string `json:"month"` // YYYY-MM
	AvgDuration int64  `json:"avg_duration"`
	MinDuration int64  `json:"min_duration"`
	MaxDuration int64  `json:"max_duration"`
	SampleCount int    `json:"sample_count"`
}

// HealthSummary is the aggregated outcome over the trailing 7-day window.
// Cancelled, in-progress, and queued runs count toward Total only.
type HealthSummary struct {
	Total            int           `json:"total"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	HealthPercentage int           `json:"health_percentage"` // 0 when Total == 0
	PerDay           []DailyBucket `json:"per_day"`
}

// TestTrendPoint is one time-stamped test-count sample, dated by the
// workflow run's creation time rather than the parse time.
type TestTrendPoint struct {
	Date         time.Time `json:"date"`
	TotalTests   int       `json:"total_tests"`
	PassedTests  int       `json:"passed_tests"`
	FailedTests  int       `json:"failed_tests"`
	SkippedTests int       `json:"skipped_tests"`
}

// RepositoryMetadata is the metadata block of the statistics object, served
// either from the commit-SHA-keyed cache or freshly fetched.
type RepositoryMetadata struct {
	Tags                 []string       `json:"tags"`
	TotalCommits         int            `json:"total_commits"`
	TotalContributors    int            `json:"total_contributors"`
	MonthlyCommits       []MonthlyCount `json:"monthly_commits"`
	Contributors         []Contributor  `json:"contributors"`
	MostUpdatedFiles     []FileActivity `json:"most_updated_files"`
	SevenDayCommits      int            `json:"seven_day_commits"`
	SevenDayContributors int            `json:"seven_day_contributors"`
	FromCache            bool           `json:"from_cache"`
}

// BuildStatistics is the full dashboard statistics object. It is assembled
// fresh on every request; only the metadata cache sub-fields are persisted.
type BuildStatistics struct {
	BuildID       string                  `json:"build_id"`
	Health        HealthSummary           `json:"health"`
	MonthlyRuns   []MonthlyRunBucket      `json:"monthly_runs"`
	DurationTrend []MonthlyDurationBucket `json:"duration_trend"`
	TestTrend     []TestTrendPoint        `json:"test_trend"`
	Metadata      RepositoryMetadata      `json:"metadata"`
	LastFetchedAt time.Time               `json:"last_fetched_at"`
}
