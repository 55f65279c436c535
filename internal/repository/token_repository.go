package repository

import (
	"database/sql"
	"errors"

	"github.com/cipulse/cipulse-api/internal/models"
)

var ErrTokenNotFound = errors.New("saved token not found")

type TokenRepository interface {
	CreateToken(tenantID, name string, ciphertext []byte) (models.SavedToken, error)
	GetToken(tenantID, tokenID string) (models.SavedToken, error)
	ListTokens(tenantID string) ([]models.SavedToken, error)
	DeleteToken(tenantID, tokenID string) error
	TouchLastUsed(tenantID, tokenID string) error
}

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) CreateToken(tenantID, name string, ciphertext []byte) (models.SavedToken, error) {
	query := `
		INSERT INTO tenant.saved_tokens (tenant_id, name, token_encrypted)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, name, created_at, updated_at
	`
	var token models.SavedToken
	err := r.db.QueryRow(query, tenantID, name, ciphertext).Scan(
		&token.ID,
		&token.TenantID,
		&token.Name,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	return token, err
}

func (r *tokenRepository) GetToken(tenantID, tokenID string) (models.SavedToken, error) {
	query := `
		SELECT id, tenant_id, name, token_encrypted, last_used_at, created_at, updated_at
		FROM tenant.saved_tokens
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	var token models.SavedToken
	err := r.db.QueryRow(query, tokenID, tenantID).Scan(
		&token.ID,
		&token.TenantID,
		&token.Name,
		&token.Ciphertext,
		&token.LastUsedAt,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return token, ErrTokenNotFound
	}
	return token, err
}

func (r *tokenRepository) ListTokens(tenantID string) ([]models.SavedToken, error) {
	query := `
		SELECT id, tenant_id, name, last_used_at, created_at, updated_at
		FROM tenant.saved_tokens
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.SavedToken
	for rows.Next() {
		var token models.SavedToken
		if err := rows.Scan(
			&token.ID,
			&token.TenantID,
			&token.Name,
			&token.LastUsedAt,
			&token.CreatedAt,
			&token.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *tokenRepository) DeleteToken(tenantID, tokenID string) error {
	query := `
		UPDATE tenant.saved_tokens
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	res, err := r.db.Exec(query, tokenID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *tokenRepository) TouchLastUsed(tenantID, tokenID string) error {
	query := `
		UPDATE tenant.saved_tokens
		SET last_used_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	_, err := r.db.Exec(query, tokenID, tenantID)
	return err
}
