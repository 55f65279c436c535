package repository

import (
	"database/sql"
	"errors"

	"github.com/cipulse/cipulse-api/internal/models"
)

var ErrTestResultNotFound = errors.New("test result not found")

type TestResultRepository interface {
	Upsert(result models.TestResultRecord) (models.TestResultRecord, error)
	FindByWorkflowRunID(tenantID string, runID int64) (models.TestResultRecord, error)
	FindRecentByBuildID(tenantID, buildID string, limit int) ([]models.TestResultRecord, error)
}

type testResultRepository struct {
	db *sql.DB
}

func NewTestResultRepository(db *sql.DB) TestResultRepository {
	return &testResultRepository{db: db}
}

func (r *testResultRepository) Upsert(result models.TestResultRecord) (models.TestResultRecord, error) {
	query := `
		INSERT INTO tenant.test_results (tenant_id, build_id, workflow_run_id, total_tests, passed_tests, failed_tests, skipped_tests, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (build_id, workflow_run_id) DO UPDATE
		SET total_tests = EXCLUDED.total_tests,
		    passed_tests = EXCLUDED.passed_tests,
		    failed_tests = EXCLUDED.failed_tests,
		    skipped_tests = EXCLUDED.skipped_tests,
		    parsed_at = now()
		RETURNING id, parsed_at
	`
	err := r.db.QueryRow(query,
		result.TenantID,
		result.BuildID,
		result.WorkflowRunID,
		result.TotalTests,
		result.PassedTests,
		result.FailedTests,
		result.SkippedTests,
	).Scan(&result.ID, &result.ParsedAt)
	return result, err
}

func (r *testResultRepository) FindByWorkflowRunID(tenantID string, runID int64) (models.TestResultRecord, error) {
	query := `
		SELECT id, tenant_id, build_id, workflow_run_id, total_tests, passed_tests, failed_tests, skipped_tests, parsed_at
		FROM tenant.test_results
		WHERE tenant_id = $1 AND workflow_run_id = $2
	`
	var result models.TestResultRecord
	err := r.db.QueryRow(query, tenantID, runID).Scan(
		&result.ID,
		&result.TenantID,
		&result.BuildID,
		&result.WorkflowRunID,
		&result.TotalTests,
		&result.PassedTests,
		&result.FailedTests,
		&result.SkippedTests,
		&result.ParsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return result, ErrTestResultNotFound
	}
	return result, err
}

func (r *testResultRepository) FindRecentByBuildID(tenantID, buildID string, limit int) ([]models.TestResultRecord, error) {
	query := `
		SELECT id, tenant_id, build_id, workflow_run_id, total_tests, passed_tests, failed_tests, skipped_tests, parsed_at
		FROM tenant.test_results
		WHERE tenant_id = $1 AND build_id = $2
		ORDER BY parsed_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(query, tenantID, buildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.TestResultRecord
	for rows.Next() {
		var result models.TestResultRecord
		if err := rows.Scan(
			&result.ID,
			&result.TenantID,
			&result.BuildID,
			&result.WorkflowRunID,
			&result.TotalTests,
			&result.PassedTests,
			&result.FailedTests,
			&result.SkippedTests,
			&result.ParsedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
