package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const userColumns = "id, email, password_hash, full_name, role, health_center_id, active, last_login, created_at, updated_at"

var userSortColumns = map[string]string{
	"email":      "email",
	"full_name":  "full_name",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

// UserRepository stores staff accounts. It also owns their refresh tokens and
// the audit trail, see session_repository.go.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns the user with email, compared case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "find user by email", `LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "find user by id", `id = $1`, id)
}

func (r *UserRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	var user models.User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// List returns one page of users matching filter and the total match count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := sq.And{}
	if filter.Role != nil {
		where = append(where, sq.Eq{"role": *filter.Role})
	}
	if filter.Active != nil {
		where = append(where, sq.Eq{"active": *filter.Active})
	}
	if filter.HealthCenterID != nil {
		where = append(where, sq.Eq{"health_center_id": *filter.HealthCenterID})
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		pattern := "%" + term + "%"
		where = append(where, sq.Or{sq.Like{"LOWER(email)": pattern}, sq.Like{"LOWER(full_name)": pattern}})
	}

	sortBy, ok := userSortColumns[filter.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := psql.Select(userColumns).From("users").
		OrderBy(sortBy + " " + order).
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))
	countQuery := psql.Select("COUNT(*)").From("users")
	if len(where) > 0 {
		listQuery = listQuery.Where(where)
		countQuery = countQuery.Where(where)
	}

	stmt, args, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users: %w", err)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, stmt, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	stmt, args, err = countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, stmt, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create inserts user, assigning an ID and timestamps when missing.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, health_center_id, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :health_center_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the profile, role, center assignment and active flag.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, role = :role, health_center_id = :health_center_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps a successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CountByRole returns how many users hold the role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}

// Delete deactivates the user. The row itself is kept.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
