package models

import "time"

// Workflow run statuses as recorded by the sync process.
const (
	RunStatusSuccess    = "success"
	RunStatusFailure    = "failure"
	RunStatusCancelled  = "cancelled"
	RunStatusInProgress = "in_progress"
	RunStatusQueued     = "queued"
)

// WorkflowRunRecord is one CI execution, appended by the sync worker and
// never mutated afterwards. It belongs to exactly one build.
type WorkflowRunRecord struct {
	ID                string    `json:"id" db:"id"`
	TenantID          string    `json:"tenant_id" db:"tenant_id"`
	BuildID           string    `json:"build_id" db:"build_id"`
	RunID             int64     `json:"run_id" db:"run_id"`
	Name              string    `json:"name" db:"name"`
	Status            string    `json:"status" db:"status"`
	HeadBranch        string    `json:"head_branch" db:"head_branch"`
	Event             string    `json:"event" db:"event"`
	DurationMillis    *int64    `json:"duration_millis,omitempty" db:"duration_millis"`
	CommitSHA         string    `json:"commit_sha" db:"commit_sha"`
	CommitAuthor      string    `json:"commit_author" db:"commit_author"`
	CommitMessage     string    `json:"commit_message" db:"commit_message"`
	CommitDate        time.Time `json:"commit_date" db:"commit_date"`
	WorkflowCreatedAt time.Time `json:"workflow_created_at" db:"workflow_created_at"`
	WorkflowUpdatedAt time.Time `json:"workflow_updated_at" db:"workflow_updated_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
