package models

import "time"

// SavedToken is a tenant-scoped GitHub access token stored encrypted at rest.
// The ciphertext never leaves the repository layer; the resolver decrypts on
// demand.
type SavedToken struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	Name       string     `json:"name" db:"name"`
	Ciphertext []byte     `json:"-" db:"token_encrypted"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
