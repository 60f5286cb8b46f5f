package models

import "time"

// HealthCenter is a reporting unit that submits periodic statistics.
type HealthCenter struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	District  *string   `db:"district" json:"district,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	ManagerID *string   `db:"manager_id" json:"manager_id,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HealthCenterFilter narrows health center listings.
type HealthCenterFilter struct {
	Active   *bool
	District string
	Search   string
}
