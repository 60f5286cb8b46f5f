package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

const activityColumns = "id, campaign_id, activity_type, activity_date, location, attendees, notes, created_by, created_at"

// ActivityRepository persists campaign activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ListByCampaign returns a campaign's activities, most recent first.
func (r *ActivityRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.Activity, error) {
	const query = `SELECT ` + activityColumns + ` FROM activities WHERE campaign_id = $1 ORDER BY activity_date DESC, created_at DESC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, campaignID); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// Create inserts an activity.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO activities (id, campaign_id, activity_type, activity_date, location, attendees, notes, created_by, created_at)
VALUES (:id, :campaign_id, :activity_type, :activity_date, :location, :attendees, :notes, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

type activityTypeRow struct {
	Type      string `db:"activity_type"`
	Count     int    `db:"count"`
	Attendees int64  `db:"attendees"`
}

// Stats summarises activities, optionally restricted to one center's
// campaigns.
func (r *ActivityRepository) Stats(ctx context.Context, centerID string) (*models.ActivityStats, error) {
	query := psql.Select("a.activity_type", "COUNT(*) AS count", "COALESCE(SUM(a.attendees), 0) AS attendees").
		From("activities a").
		GroupBy("a.activity_type")
	if centerID != "" {
		query = query.Join("campaigns c ON c.id = a.campaign_id").Where(sq.Eq{"c.health_center_id": centerID})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build activity stats: %w", err)
	}
	var rows []activityTypeRow
	if err := r.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("activity stats: %w", err)
	}

	stats := &models.ActivityStats{ByType: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalAttendees += row.Attendees
		stats.ByType[row.Type] = row.Count
	}
	return stats, nil
}
