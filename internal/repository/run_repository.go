package repository

import (
	"database/sql"
	"time"

	"github.com/cipulse/cipulse-api/internal/models"
)

type RunRepository interface {
	// UpsertRuns appends run records for a build; existing run IDs are
	// updated in place since in-flight runs change status on later syncs.
	UpsertRuns(runs []models.WorkflowRunRecord) error

	// Listing methods return runs newest first.
	ListRunsSince(tenantID, buildID string, since time.Time) ([]models.WorkflowRunRecord, error)
	ListRunsInRange(tenantID, buildID string, start, end time.Time) ([]models.WorkflowRunRecord, error)
	GetLatestRun(tenantID, buildID string) (models.WorkflowRunRecord, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

const runColumns = `
	id, tenant_id, build_id, run_id, name, status, head_branch, event,
	duration_millis, commit_sha, commit_author, commit_message, commit_date,
	workflow_created_at, workflow_updated_at, created_at`

func (r *runRepository) UpsertRuns(runs []models.WorkflowRunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tenant.workflow_runs (
			tenant_id, build_id, run_id, name, status, head_branch, event,
			duration_millis, commit_sha, commit_author, commit_message, commit_date,
			workflow_created_at, workflow_updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (build_id, run_id) DO UPDATE
		SET status = EXCLUDED.status,
		    duration_millis = EXCLUDED.duration_millis,
		    workflow_updated_at = EXCLUDED.workflow_updated_at
	`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, run := range runs {
		if _, err := stmt.Exec(
			run.TenantID,
			run.BuildID,
			run.RunID,
			run.Name,
			run.Status,
			run.HeadBranch,
			run.Event,
			run.DurationMillis,
			run.CommitSHA,
			run.CommitAuthor,
			run.CommitMessage,
			run.CommitDate,
			run.WorkflowCreatedAt,
			run.WorkflowUpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *runRepository) ListRunsSince(tenantID, buildID string, since time.Time) ([]models.WorkflowRunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM tenant.workflow_runs
		WHERE tenant_id = $1 AND build_id = $2 AND workflow_created_at >= $3
		ORDER BY workflow_created_at DESC
	`
	rows, err := r.db.Query(query, tenantID, buildID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *runRepository) ListRunsInRange(tenantID, buildID string, start, end time.Time) ([]models.WorkflowRunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM tenant.workflow_runs
		WHERE tenant_id = $1 AND build_id = $2
		  AND workflow_created_at >= $3 AND workflow_created_at < $4
		ORDER BY workflow_created_at DESC
	`
	rows, err := r.db.Query(query, tenantID, buildID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *runRepository) GetLatestRun(tenantID, buildID string) (models.WorkflowRunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM tenant.workflow_runs
		WHERE tenant_id = $1 AND build_id = $2
		ORDER BY workflow_created_at DESC
		LIMIT 1
	`
	return scanRun(r.db.QueryRow(query, tenantID, buildID))
}

func scanRun(row rowScanner) (models.WorkflowRunRecord, error) {
	var run models.WorkflowRunRecord
	err := row.Scan(
		&run.ID,
		&run.TenantID,
		&run.BuildID,
		&run.RunID,
		&run.Name,
		&run.Status,
		&run.HeadBranch,
		&run.Event,
		&run.DurationMillis,
		&run.CommitSHA,
		&run.CommitAuthor,
		&run.CommitMessage,
		&run.CommitDate,
		&run.WorkflowCreatedAt,
		&run.WorkflowUpdatedAt,
		&run.CreatedAt,
	)
	return run, err
}

func collectRuns(rows *sql.Rows) ([]models.WorkflowRunRecord, error) {
	var runs []models.WorkflowRunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
