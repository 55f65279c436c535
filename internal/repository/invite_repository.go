package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/cipulse/cipulse-api/internal/models"
)

var ErrInviteNotFound = errors.New("invite not found")

type InviteRepository interface {
	CreateInvite(invite models.Invite) (models.Invite, error)
	GetInviteByTokenHash(tokenHash string) (models.Invite, error)
	MarkInviteAccepted(inviteID string) (models.Invite, error)
	ListInvitesByTenant(tenantID string) ([]models.Invite, error)
	CancelInvite(inviteID, tenantID string) error
}

type inviteRepository struct {
	db *sql.DB
}

func NewInviteRepository(db *sql.DB) InviteRepository {
	return &inviteRepository{db: db}
}

const inviteColumns = `
	id, tenant_id, email, roles, token_hash, created_by, created_at, updated_at, expires_at, accepted_at`

func (r *inviteRepository) CreateInvite(invite models.Invite) (models.Invite, error) {
	const query = `
		INSERT INTO tenant.invites (tenant_id, email, roles, token_hash, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + inviteColumns

	var createdBy interface{}
	if invite.CreatedBy != nil && *invite.CreatedBy != "" {
		createdBy = *invite.CreatedBy
	}

	return scanInvite(r.db.QueryRow(query,
		invite.TenantID,
		invite.Email,
		pq.Array(roleStrings(invite.Roles)),
		invite.TokenHash,
		createdBy,
		invite.ExpiresAt,
	))
}

func (r *inviteRepository) GetInviteByTokenHash(tokenHash string) (models.Invite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM tenant.invites
		WHERE token_hash = $1`

	return scanInvite(r.db.QueryRow(query, tokenHash))
}

// MarkInviteAccepted stamps accepted_at exactly once; a second call for the
// same invite reports ErrInviteNotFound because the guard row no longer
// matches.
func (r *inviteRepository) MarkInviteAccepted(inviteID string) (models.Invite, error) {
	const query = `
		UPDATE tenant.invites
		SET accepted_at = now(), updated_at = now()
		WHERE id = $1 AND accepted_at IS NULL
		RETURNING ` + inviteColumns

	return scanInvite(r.db.QueryRow(query, inviteID))
}

func (r *inviteRepository) ListInvitesByTenant(tenantID string) ([]models.Invite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM tenant.invites
		WHERE tenant_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}

	return invites, rows.Err()
}

func (r *inviteRepository) CancelInvite(inviteID, tenantID string) error {
	const query = `
		DELETE FROM tenant.invites
		WHERE id = $1 AND tenant_id = $2 AND accepted_at IS NULL`

	result, err := r.db.Exec(query, inviteID, tenantID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrInviteNotFound
	}

	return nil
}

func scanInvite(row rowScanner) (models.Invite, error) {
	var (
		invite    models.Invite
		roles     pq.StringArray
		createdBy sql.NullString
	)
	err := row.Scan(
		&invite.ID,
		&invite.TenantID,
		&invite.Email,
		&roles,
		&invite.TokenHash,
		&createdBy,
		&invite.CreatedAt,
		&invite.UpdatedAt,
		&invite.ExpiresAt,
		&invite.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invite{}, ErrInviteNotFound
		}
		return models.Invite{}, err
	}

	invite.Roles = rolesFromStrings(roles)
	if createdBy.Valid {
		invite.CreatedBy = &createdBy.String
	}

	return invite, nil
}
