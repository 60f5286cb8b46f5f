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

const topicColumns = "id, category_id, name, name_ar, sort_order, is_active, created_at, updated_at"

// TopicRepository persists registry topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository constructs the repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// List returns topics ordered by category then display order.
func (r *TopicRepository) List(ctx context.Context, filter models.TopicFilter) ([]models.StatTopic, error) {
	query := psql.Select(topicColumns).From("stat_topics").OrderBy("category_id ASC", "sort_order ASC", "name ASC")
	if filter.CategoryID != "" {
		query = query.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	if !filter.IncludeInactive {
		query = query.Where(sq.Eq{"is_active": true})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list topics: %w", err)
	}
	var topics []models.StatTopic
	if err := r.db.SelectContext(ctx, &topics, stmt, args...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// FindByID returns a topic by identifier.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.StatTopic, error) {
	const query = `SELECT ` + topicColumns + ` FROM stat_topics WHERE id = $1`
	var topic models.StatTopic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return &topic, nil
}

// Create inserts a topic. The identifier is supplied by the caller.
func (r *TopicRepository) Create(ctx context.Context, topic *models.StatTopic) error {
	now := time.Now().UTC()
	topic.CreatedAt = now
	topic.UpdatedAt = now
	const query = `INSERT INTO stat_topics (id, category_id, name, name_ar, sort_order, is_active, created_at, updated_at)
VALUES (:id, :category_id, :name, :name_ar, :sort_order, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// Update persists mutable topic fields.
func (r *TopicRepository) Update(ctx context.Context, topic *models.StatTopic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE stat_topics SET category_id = :category_id, name = :name, name_ar = :name_ar, sort_order = :sort_order, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// Delete hard deletes a topic.
func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM stat_topics WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}
