package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cipulse/cipulse-api/internal/models"
)

var ErrBuildNotFound = errors.New("build not found")

type BuildRepository interface {
	CreateBuild(build models.Build) (models.Build, error)
	GetBuildByID(tenantID, buildID string) (models.Build, error)
	ListBuilds(tenantID string) ([]models.Build, error)
	ListAllBuilds() ([]models.Build, error)
	DeleteBuild(tenantID, buildID string) error

	// Cache write-backs. Fields are replaced wholesale per sub-cache so a
	// reader never observes an interleaved partial write.
	UpdateCachedMetadata(tenantID, buildID string, meta models.CachedMetadata, activity *models.SevenDayActivity, commitSHA string) error
	UpdateSevenDayActivity(tenantID, buildID string, activity models.SevenDayActivity) error
	UpdateLastSyncedAt(tenantID, buildID string) error
}

type buildRepository struct {
	db *sql.DB
}

func NewBuildRepository(db *sql.DB) BuildRepository {
	return &buildRepository{db: db}
}

const buildColumns = `
	id, tenant_id, name, organization, repository, selectors,
	saved_token_id, inline_token, last_analyzed_commit_sha,
	cached_metadata, seven_day_activity, last_synced_at, created_at, updated_at`

func (r *buildRepository) CreateBuild(build models.Build) (models.Build, error) {
	selectors, err := json.Marshal(build.Selectors)
	if err != nil {
		return build, fmt.Errorf("marshal selectors: %w", err)
	}

	query := `
		INSERT INTO tenant.builds (tenant_id, name, organization, repository, selectors, saved_token_id, inline_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(query,
		build.TenantID,
		build.Name,
		build.Organization,
		build.Repository,
		selectors,
		build.SavedTokenID,
		build.InlineToken,
	).Scan(&build.ID, &build.CreatedAt, &build.UpdatedAt)

	return build, err
}

func (r *buildRepository) GetBuildByID(tenantID, buildID string) (models.Build, error) {
	query := `
		SELECT ` + buildColumns + `
		FROM tenant.builds
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	build, err := scanBuild(r.db.QueryRow(query, buildID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return build, ErrBuildNotFound
		}
		return build, err
	}
	return build, nil
}

func (r *buildRepository) ListBuilds(tenantID string) ([]models.Build, error) {
	query := `
		SELECT ` + buildColumns + `
		FROM tenant.builds
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBuilds(rows)
}

// ListAllBuilds returns builds across all tenants, used by the sync worker.
func (r *buildRepository) ListAllBuilds() ([]models.Build, error) {
	query := `
		SELECT ` + buildColumns + `
		FROM tenant.builds
		WHERE deleted_at IS NULL
		ORDER BY created_at
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBuilds(rows)
}

func (r *buildRepository) DeleteBuild(tenantID, buildID string) error {
	query := `
		UPDATE tenant.builds
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	res, err := r.db.Exec(query, buildID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete build: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBuildNotFound
	}
	return nil
}

func (r *buildRepository) UpdateCachedMetadata(tenantID, buildID string, meta models.CachedMetadata, activity *models.SevenDayActivity, commitSHA string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal cached metadata: %w", err)
	}
	var activityJSON interface{}
	if activity != nil {
		raw, err := json.Marshal(activity)
		if err != nil {
			return fmt.Errorf("marshal seven day activity: %w", err)
		}
		activityJSON = raw
	}

	query := `
		UPDATE tenant.builds
		SET cached_metadata = $1,
		    seven_day_activity = COALESCE($2, seven_day_activity),
		    last_analyzed_commit_sha = $3,
		    updated_at = now()
		WHERE id = $4 AND tenant_id = $5 AND deleted_at IS NULL
	`
	res, err := r.db.Exec(query, metaJSON, activityJSON, commitSHA, buildID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBuildNotFound
	}
	return nil
}

// UpdateSevenDayActivity writes only the bounded-window sub-cache, leaving
// the SHA-keyed metadata block untouched.
func (r *buildRepository) UpdateSevenDayActivity(tenantID, buildID string, activity models.SevenDayActivity) error {
	raw, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal seven day activity: %w", err)
	}
	query := `
		UPDATE tenant.builds
		SET seven_day_activity = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`
	_, err = r.db.Exec(query, raw, buildID, tenantID)
	return err
}

func (r *buildRepository) UpdateLastSyncedAt(tenantID, buildID string) error {
	query := `
		UPDATE tenant.builds
		SET last_synced_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	_, err := r.db.Exec(query, buildID, tenantID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuild(row rowScanner) (models.Build, error) {
	var (
		build     models.Build
		selectors []byte
		metadata  []byte
		activity  []byte
	)
	err := row.Scan(
		&build.ID,
		&build.TenantID,
		&build.Name,
		&build.Organization,
		&build.Repository,
		&selectors,
		&build.SavedTokenID,
		&build.InlineToken,
		&build.LastAnalyzedCommitSHA,
		&metadata,
		&activity,
		&build.LastSyncedAt,
		&build.CreatedAt,
		&build.UpdatedAt,
	)
	if err != nil {
		return build, err
	}

	if len(selectors) > 0 {
		if err := json.Unmarshal(selectors, &build.Selectors); err != nil {
			return build, fmt.Errorf("unmarshal selectors: %w", err)
		}
	}
	if len(metadata) > 0 {
		build.CachedMetadata = &models.CachedMetadata{}
		if err := json.Unmarshal(metadata, build.CachedMetadata); err != nil {
			return build, fmt.Errorf("unmarshal cached metadata: %w", err)
		}
	}
	if len(activity) > 0 {
		build.SevenDayActivity = &models.SevenDayActivity{}
		if err := json.Unmarshal(activity, build.SevenDayActivity); err != nil {
			return build, fmt.Errorf("unmarshal seven day activity: %w", err)
		}
	}
	return build, nil
}

func collectBuilds(rows *sql.Rows) ([]models.Build, error) {
	var builds []models.Build
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}
