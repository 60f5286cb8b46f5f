package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const categoryColumns = "id, name, name_ar, description, sort_order, is_active, created_at, updated_at"

// CategoryRepository persists registry categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns categories by display order.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]models.StatCategory, error) {
	query := psql.Select(categoryColumns).From("stat_categories").OrderBy("sort_order ASC", "name ASC")
	if !includeInactive {
		query = query.Where(sq.Eq{"is_active": true})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list categories: %w", err)
	}
	var categories []models.StatCategory
	if err := r.db.SelectContext(ctx, &categories, stmt, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID returns a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.StatCategory, error) {
	const query = `SELECT ` + categoryColumns + ` FROM stat_categories WHERE id = $1`
	var category models.StatCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &category, nil
}

// Create inserts a category. The identifier is supplied by the caller.
func (r *CategoryRepository) Create(ctx context.Context, category *models.StatCategory) error {
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now
	const query = `INSERT INTO stat_categories (id, name, name_ar, description, sort_order, is_active, created_at, updated_at)
VALUES (:id, :name, :name_ar, :description, :sort_order, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update persists mutable category fields.
func (r *CategoryRepository) Update(ctx context.Context, category *models.StatCategory) error {
	category.UpdatedAt = time.Now().UTC()
	const query = `UPDATE stat_categories SET name = :name, name_ar = :name_ar, description = :description, sort_order = :sort_order, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// CountTopics returns how many topics, active or not, reference the category.
func (r *CategoryRepository) CountTopics(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM stat_topics WHERE category_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, id); err != nil {
		return 0, fmt.Errorf("count category topics: %w", err)
	}
	return total, nil
}

// Delete hard deletes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM stat_categories WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
