package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/cipulse/cipulse-api/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

// uniqueViolation is the postgres error code for duplicate-key inserts.
const uniqueViolation = "23505"

type UserRepository interface {
	CreateUser(tenantID, email, password, firstName, lastName string, roles []models.UserRole) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	ListUsersByTenant(tenantID string) ([]models.User, error)
	GetUserByEmail(email string) (models.User, error)
	GetUserByID(userID string) (models.User, error)
	UpdateUserRoles(userID string, roles []models.UserRole) (models.User, error)
	DeleteUser(userID string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, tenant_id, email, first_name, last_name, password_hash, is_active, roles`

func (u *userRepository) CreateUser(tenantID string, email string, password string, firstName string, lastName string, roles []models.UserRole) (models.User, error) {
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))
	if !models.IsValidRoleList(normalized) {
		return models.User{}, errors.New("invalid roles")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		TenantID:     tenantID,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		IsActive:     true,
		Roles:        normalized,
	}

	const query = `
		INSERT INTO tenant.users (tenant_id, email, first_name, last_name, password_hash, is_active, roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = u.db.QueryRow(query,
		user.TenantID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		pq.Array(roleStrings(user.Roles)),
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}

	return user, nil
}

// AuthenticateUser deliberately collapses "no such user" and "wrong password"
// into ErrInvalidCredentials so login responses do not leak which one failed.
func (u *userRepository) AuthenticateUser(email string, password string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM tenant.users
		WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(u.db.QueryRow(query, email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (u *userRepository) GetUserByEmail(email string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM tenant.users
		WHERE email = $1 AND deleted_at IS NULL`

	return scanUser(u.db.QueryRow(query, email))
}

func (u *userRepository) GetUserByID(userID string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM tenant.users
		WHERE id = $1 AND deleted_at IS NULL`

	return scanUser(u.db.QueryRow(query, userID))
}

func (u *userRepository) UpdateUserRoles(userID string, roles []models.UserRole) (models.User, error) {
	normalized := models.EnsureDefaultRole(models.NormalizeRoles(roles))
	if !models.IsValidRoleList(normalized) {
		return models.User{}, errors.New("invalid roles")
	}

	const query = `
		UPDATE tenant.users
		SET roles = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	return scanUser(u.db.QueryRow(query, userID, pq.Array(roleStrings(normalized))))
}

func (u *userRepository) DeleteUser(userID string) error {
	const query = `
		UPDATE tenant.users
		SET is_active = FALSE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := u.db.Exec(query, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (u *userRepository) ListUsersByTenant(tenantID string) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM tenant.users
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY email`

	rows, err := u.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user  models.User
		roles pq.StringArray
	)
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&roles,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	user.Roles = models.EnsureDefaultRole(rolesFromStrings(roles))
	if !models.IsValidRoleList(user.Roles) {
		return models.User{}, errors.New("user has invalid roles")
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func roleStrings(roles []models.UserRole) []string {
	result := make([]string, 0, len(roles))
	for _, role := range roles {
		result = append(result, string(role))
	}
	return result
}

func rolesFromStrings(roles []string) []models.UserRole {
	result := make([]models.UserRole, 0, len(roles))
	for _, role := range roles {
		result = append(result, models.UserRole(role))
	}
	return models.NormalizeRoles(result)
}
