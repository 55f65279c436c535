package temporal

import "time"

// TaskQueueName is the Temporal task queue for build run-sync workflows.
const TaskQueueName = "CIPULSE_SYNC"

// SyncWorkflowIDPrefix is the prefix used for run-sync workflow IDs.
const SyncWorkflowIDPrefix = "cipulse-sync-"

// DefaultActivityTimeout bounds a single sync activity, which may page
// through several months of workflow runs.
const DefaultActivityTimeout = 5 * time.Minute

// SyncParams is the input for a run-sync workflow. An empty BuildID means
// the scheduled variant: sync every build across all tenants.
type SyncParams struct {
	TenantID string
	BuildID  string
}

// BuildRef identifies one build to sync.
type BuildRef struct {
	TenantID string
	BuildID  string
	Name     string
}

// SyncBuildResult summarizes one build's sync for completion handling.
type SyncBuildResult struct {
	TenantID            string
	BuildID             string
	Name                string
	RunsUpserted        int
	TestResultsUpserted int
	LatestFailed        bool
	Recovered           bool
}
