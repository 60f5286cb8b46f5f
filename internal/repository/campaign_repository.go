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

const campaignColumns = "c.id, c.title, c.description, c.start_date, c.end_date, c.health_center_id, COALESCE(hc.name, '') AS center_name, c.target_audience, c.status, c.created_by, c.created_at, c.updated_at"

// CampaignRepository persists campaigns.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs the repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) selectCampaigns() sq.SelectBuilder {
	return psql.Select(campaignColumns).
		From("campaigns c").
		LeftJoin("health_centers hc ON hc.id = c.health_center_id")
}

// List returns campaigns matching the filter, newest start date first.
func (r *CampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	query := r.selectCampaigns().OrderBy("c.start_date DESC", "c.title ASC")
	if filter.HealthCenterID != "" {
		query = query.Where(sq.Eq{"c.health_center_id": filter.HealthCenterID})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"c.status": string(filter.Status)})
	}
	if filter.Search != "" {
		query = query.Where(sq.Like{"LOWER(c.title)": "%" + strings.ToLower(filter.Search) + "%"})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list campaigns: %w", err)
	}
	var campaigns []models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, stmt, args...); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// FindByID returns a campaign with its center name.
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	stmt, args, err := r.selectCampaigns().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find campaign: %w", err)
	}
	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, stmt, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return &campaign, nil
}

// Create inserts a campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	const query = `INSERT INTO campaigns (id, title, description, start_date, end_date, health_center_id, target_audience, status, created_by, created_at, updated_at)
VALUES (:id, :title, :description, :start_date, :end_date, :health_center_id, :target_audience, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// UpdateStatus moves a campaign to a new status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	const query = `UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a campaign and, by cascade, its activities.
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireAffected(res)
}

// CountByStatus returns campaign counts grouped by status, optionally for one
// center.
func (r *CampaignRepository) CountByStatus(ctx context.Context, centerID string) ([]models.StatusCount, error) {
	query := psql.Select("status", "COUNT(*) AS count").From("campaigns").GroupBy("status")
	if centerID != "" {
		query = query.Where(sq.Eq{"health_center_id": centerID})
	}
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count campaigns: %w", err)
	}
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, stmt, args...); err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}
	return counts, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
