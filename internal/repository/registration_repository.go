package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

// ErrRegistrationDecided is returned when a request was already approved or
// rejected.
var ErrRegistrationDecided = errors.New("registration already decided")

const registrationSelect = `SELECT r.id, r.user_id, r.phone, r.status, r.decided_by, r.decided_at, r.rejection_reason, r.created_at,
u.email, u.full_name, u.health_center_id, hc.name AS center_name
FROM registration_requests r
JOIN users u ON u.id = r.user_id
LEFT JOIN health_centers hc ON hc.id = u.health_center_id`

// RegistrationRepository persists self-registration requests.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts the inactive account and its pending request together.
func (r *RegistrationRepository) Create(ctx context.Context, user *models.User, phone *string) (*models.RegistrationRequest, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Active = false
	request := &models.RegistrationRequest{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Phone:          phone,
		Status:         models.RegistrationPending,
		CreatedAt:      now,
		Email:          user.Email,
		FullName:       user.FullName,
		HealthCenterID: user.HealthCenterID,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const insertUser = `INSERT INTO users (id, email, password_hash, full_name, role, health_center_id, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, insertUser, user.ID, user.Email, user.PasswordHash, user.FullName, user.Role, user.HealthCenterID, user.Active, user.CreatedAt, user.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create registered user: %w", err)
	}
	const insertRequest = `INSERT INTO registration_requests (id, user_id, phone, status, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertRequest, request.ID, request.UserID, request.Phone, request.Status, request.CreatedAt); err != nil {
		return nil, fmt.Errorf("create registration request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	commit = true
	return request, nil
}

// ListPending returns undecided requests, oldest first.
func (r *RegistrationRepository) ListPending(ctx context.Context) ([]models.RegistrationRequest, error) {
	const query = registrationSelect + ` WHERE r.status = 'pending' ORDER BY r.created_at ASC`
	var requests []models.RegistrationRequest
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list pending registrations: %w", err)
	}
	return requests, nil
}

// FindByID returns one request with its applicant details.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	const query = registrationSelect + ` WHERE r.id = $1`
	var request models.RegistrationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &request, nil
}

// Approve marks the request approved and activates the account with role.
// Only pending requests can be decided.
func (r *RegistrationRepository) Approve(ctx context.Context, id, deciderID string, role models.UserRole) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin approve registration: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	userID, err := decide(ctx, tx, id, models.RegistrationApproved, deciderID, nil, now)
	if err != nil {
		return "", err
	}
	const activate = `UPDATE users SET role = $2, active = TRUE, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, activate, userID, role, now); err != nil {
		return "", fmt.Errorf("activate registered user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit approve registration: %w", err)
	}
	commit = true
	return userID, nil
}

// Reject marks the request rejected. The account stays inactive.
func (r *RegistrationRepository) Reject(ctx context.Context, id, deciderID string, reason *string) (string, error) {
	return decide(ctx, r.db, id, models.RegistrationRejected, deciderID, reason, time.Now().UTC())
}

// ListApproverIDs returns active administrators who may decide requests.
func (r *RegistrationRepository) ListApproverIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users WHERE role IN ('SUPERADMIN', 'ADMIN') AND active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	return ids, nil
}

func decide(ctx context.Context, q sqlx.QueryerContext, id string, status models.RegistrationStatus, deciderID string, reason *string, at time.Time) (string, error) {
	const query = `UPDATE registration_requests SET status = $2, decided_by = $3, decided_at = $4, rejection_reason = $5
WHERE id = $1 AND status = 'pending' RETURNING user_id`
	var userID string
	err := sqlx.GetContext(ctx, q, &userID, query, id, status, deciderID, at, reason)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("decide registration: %w", err)
	}
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM registration_requests WHERE id = $1)`, id); err != nil {
		return "", fmt.Errorf("check registration: %w", err)
	}
	if exists {
		return "", ErrRegistrationDecided
	}
	return "", sql.ErrNoRows
}
