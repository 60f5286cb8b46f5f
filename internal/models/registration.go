package models

import "time"

// RegistrationStatus is the decision state of a self-registration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// RegistrationRequest is a self-registered account waiting for an
// administrator. The account stays inactive until it is approved.
type RegistrationRequest struct {
	ID              string             `db:"id" json:"id"`
	UserID          string             `db:"user_id" json:"user_id"`
	Phone           *string            `db:"phone" json:"phone,omitempty"`
	Status          RegistrationStatus `db:"status" json:"status"`
	DecidedBy       *string            `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt       *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	RejectionReason *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`

	Email          string  `db:"email" json:"email"`
	FullName       string  `db:"full_name" json:"full_name"`
	HealthCenterID *string `db:"health_center_id" json:"health_center_id,omitempty"`
	CenterName     *string `db:"center_name" json:"center_name,omitempty"`
}
