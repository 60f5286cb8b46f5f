package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const healthCenterColumns = "id, name, code, district, address, manager_id, is_active, created_at, updated_at"

// HealthCenterRepository persists health centers.
type HealthCenterRepository struct {
	db *sqlx.DB
}

// NewHealthCenterRepository constructs the repository.
func NewHealthCenterRepository(db *sqlx.DB) *HealthCenterRepository {
	return &HealthCenterRepository{db: db}
}

// List returns centers matching the filter ordered by name.
func (r *HealthCenterRepository) List(ctx context.Context, filter models.HealthCenterFilter) ([]models.HealthCenter, error) {
	query := psql.Select(healthCenterColumns).From("health_centers").OrderBy("name ASC")
	if filter.Active != nil {
		query = query.Where(sq.Eq{"is_active": *filter.Active})
	}
	if filter.District != "" {
		query = query.Where(sq.Eq{"district": filter.District})
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(sq.Or{sq.Like{"LOWER(name)": pattern}, sq.Like{"LOWER(code)": pattern}})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list health centers: %w", err)
	}
	var centers []models.HealthCenter
	if err := r.db.SelectContext(ctx, &centers, stmt, args...); err != nil {
		return nil, fmt.Errorf("list health centers: %w", err)
	}
	return centers, nil
}

// FindByID returns a center by identifier.
func (r *HealthCenterRepository) FindByID(ctx context.Context, id string) (*models.HealthCenter, error) {
	const query = `SELECT ` + healthCenterColumns + ` FROM health_centers WHERE id = $1`
	var center models.HealthCenter
	if err := r.db.GetContext(ctx, &center, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find health center: %w", err)
	}
	return &center, nil
}

// ExistsByCode reports whether another center already uses the code.
func (r *HealthCenterRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM health_centers WHERE LOWER(code) = LOWER($1) AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check health center code: %w", err)
	}
	return exists, nil
}

// Create inserts a new center.
func (r *HealthCenterRepository) Create(ctx context.Context, center *models.HealthCenter) error {
	if center.ID == "" {
		center.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	center.CreatedAt = now
	center.UpdatedAt = now
	const query = `INSERT INTO health_centers (id, name, code, district, address, manager_id, is_active, created_at, updated_at)
VALUES (:id, :name, :code, :district, :address, :manager_id, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, center); err != nil {
		return fmt.Errorf("create health center: %w", err)
	}
	return nil
}

// Update persists mutable center fields.
func (r *HealthCenterRepository) Update(ctx context.Context, center *models.HealthCenter) error {
	center.UpdatedAt = time.Now().UTC()
	const query = `UPDATE health_centers SET name = :name, code = :code, district = :district, address = :address, manager_id = :manager_id, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, center); err != nil {
		return fmt.Errorf("update health center: %w", err)
	}
	return nil
}

// CountActive returns the number of active centers.
func (r *HealthCenterRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM health_centers WHERE is_active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count active health centers: %w", err)
	}
	return total, nil
}
