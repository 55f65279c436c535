package models

import "time"

// TestResultRecord holds parsed test counts for a single workflow run.
// Totals are stored as reported by the CI artifact; the aggregation layer
// tolerates totals that do not add up.
type TestResultRecord struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	BuildID       string    `json:"build_id" db:"build_id"`
	WorkflowRunID int64     `json:"workflow_run_id" db:"workflow_run_id"`
	TotalTests    int       `json:"total_tests" db:"total_tests"`
	PassedTests   int       `json:"passed_tests" db:"passed_tests"`
	FailedTests   int       `json:"failed_tests" db:"failed_tests"`
	SkippedTests  int       `json:"skipped_tests" db:"skipped_tests"`
	ParsedAt      time.Time `json:"parsed_at" db:"parsed_at"`
}
