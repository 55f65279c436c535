package repository

import (
	"database/sql"
	"errors"

	"github.com/cipulse/cipulse-api/internal/models"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantExists   = errors.New("tenant already exists")
)

type TenantRepository interface {
	CreateTenant(name string) (models.Tenant, error)
	GetTenantByID(id string) (models.Tenant, error)
}

type tenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) CreateTenant(name string) (models.Tenant, error) {
	const query = `
		INSERT INTO tenant.tenants (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at`

	var tenant models.Tenant
	err := r.db.QueryRow(query, name).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Tenant{}, ErrTenantExists
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (r *tenantRepository) GetTenantByID(id string) (models.Tenant, error) {
	const query = `
		SELECT id, name, created_at, updated_at
		FROM tenant.tenants
		WHERE id = $1`

	var tenant models.Tenant
	err := r.db.QueryRow(query, id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Tenant{}, ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}
