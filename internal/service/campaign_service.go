package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

// upcomingWindow is how far ahead an activity date triggers a reminder.
const upcomingWindow = 3 * 24 * time.Hour

type campaignRepository interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	FindByID(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, centerID string) ([]models.StatusCount, error)
}

type activityRepository interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Stats(ctx context.Context, centerID string) (*models.ActivityStats, error)
}

// CampaignService runs health-promotion campaigns and records their field
// activities.
type CampaignService struct {
	campaigns     campaignRepository
	activities    activityRepository
	centers       reportCenterLookup
	notifications *NotificationService
	audit         auditRecorder
	policy        Policy
	validator     *validator.Validate
	logger        *zap.Logger
	loc           *time.Location
	now           func() time.Time
}

// CampaignServiceConfig groups the collaborators of CampaignService.
type CampaignServiceConfig struct {
	Campaigns     campaignRepository
	Activities    activityRepository
	Centers       reportCenterLookup
	Notifications *NotificationService
	Audit         auditRecorder
	Policy        Policy
	Validator     *validator.Validate
	Logger        *zap.Logger
	Location      *time.Location
}

// NewCampaignService constructs the service.
func NewCampaignService(cfg CampaignServiceConfig) *CampaignService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CampaignService{
		campaigns:     cfg.Campaigns,
		activities:    cfg.Activities,
		centers:       cfg.Centers,
		notifications: cfg.Notifications,
		audit:         cfg.Audit,
		policy:        cfg.Policy,
		validator:     cfg.Validator,
		logger:        cfg.Logger,
		loc:           cfg.Location,
		now:           time.Now,
	}
}

// List returns campaigns. Plain users only see their own center's.
func (s *CampaignService) List(ctx context.Context, actor Actor, query dto.CampaignQuery) ([]models.Campaign, error) {
	if err := authorize(s.policy, actor, OpCampaignsRead); err != nil {
		return nil, err
	}
	filter := models.CampaignFilter{
		HealthCenterID: strings.TrimSpace(query.HealthCenterID),
		Status:         models.CampaignStatus(query.Status),
		Search:         strings.TrimSpace(query.Search),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown campaign status")
	}
	if !actor.Can(s.policy, OpStatsReadAll) {
		if actor.HealthCenterID == "" {
			return []models.Campaign{}, nil
		}
		filter.HealthCenterID = actor.HealthCenterID
	}
	campaigns, err := s.campaigns.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list campaigns")
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	return campaigns, nil
}

// Get loads one campaign within the actor's scope.
func (s *CampaignService) Get(ctx context.Context, actor Actor, id string) (*models.Campaign, error) {
	if err := authorize(s.policy, actor, OpCampaignsRead); err != nil {
		return nil, err
	}
	return s.load(ctx, actor, id)
}

// Create plans a new campaign for an active center. Plain users always plan
// for their own center. The center manager is told about campaigns planned by
// someone else.
func (s *CampaignService) Create(ctx context.Context, actor Actor, req dto.CampaignRequest) (*models.Campaign, error) {
	if err := authorize(s.policy, actor, OpCampaignsManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid campaign payload")
	}
	start, err := s.parseDate(req.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := s.parseDate(req.EndDate, "endDate")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}

	centerID, err := s.targetCenter(actor, req.HealthCenterID)
	if err != nil {
		return nil, err
	}
	center, err := s.loadCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if !center.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "health center is inactive")
	}

	campaign := &models.Campaign{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		StartDate:      start,
		EndDate:        end,
		HealthCenterID: center.ID,
		CenterName:     center.Name,
		TargetAudience: strings.TrimSpace(req.TargetAudience),
		Status:         models.CampaignPlanned,
		CreatedBy:      actor.ID,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, internalError(err, "failed to create campaign")
	}
	s.logger.Info("campaign created", zap.String("id", campaign.ID), zap.String("health_center_id", center.ID))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCampaign, "campaign_created", campaign.ID)

	if center.ManagerID != nil && *center.ManagerID != actor.ID {
		message := fmt.Sprintf("Campaign %q was planned for %s starting %s", campaign.Title, center.Name, start.Format(dateLayout))
		s.notifications.Notify(ctx, *center.ManagerID, models.NotificationInfo, "Campaign planned", message, campaignLink(campaign.ID))
	}
	return campaign, nil
}

// UpdateStatus moves a campaign forward through planned, active and
// completed. Setting the current status again is a no-op; going back is a
// conflict. The creator is told when a campaign starts or completes.
func (s *CampaignService) UpdateStatus(ctx context.Context, actor Actor, id string, req dto.CampaignStatusRequest) (*models.Campaign, error) {
	if err := authorize(s.policy, actor, OpCampaignsManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid campaign status")
	}
	campaign, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next := models.CampaignStatus(req.Status)
	if next == campaign.Status {
		return campaign, nil
	}
	if !campaign.Status.Precedes(next) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("campaign cannot move from %s to %s", campaign.Status, next))
	}
	if err := s.campaigns.UpdateStatus(ctx, id, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, internalError(err, "failed to update campaign status")
	}
	campaign.Status = next
	campaign.UpdatedAt = s.now().UTC()
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCampaign, "campaign_"+string(next), id)

	if campaign.CreatedBy != actor.ID {
		switch next {
		case models.CampaignActive:
			s.notifications.Notify(ctx, campaign.CreatedBy, models.NotificationInfo, "Campaign started",
				fmt.Sprintf("Campaign %q is now active", campaign.Title), campaignLink(id))
		case models.CampaignCompleted:
			s.notifications.Notify(ctx, campaign.CreatedBy, models.NotificationSuccess, "Campaign completed",
				fmt.Sprintf("Campaign %q has been completed", campaign.Title), campaignLink(id))
		}
	}
	return campaign, nil
}

// Delete removes a campaign and its activities.
func (s *CampaignService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := authorize(s.policy, actor, OpCampaignsDelete); err != nil {
		return err
	}
	if err := s.campaigns.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return internalError(err, "failed to delete campaign")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCampaign, "campaign_deleted", id)
	return nil
}

// Stats counts campaigns per status within the actor's scope.
func (s *CampaignService) Stats(ctx context.Context, actor Actor) (*models.CampaignStats, error) {
	if err := authorize(s.policy, actor, OpCampaignsRead); err != nil {
		return nil, err
	}
	centerID, ok := s.scope(actor)
	if !ok {
		return &models.CampaignStats{}, nil
	}
	counts, err := s.campaigns.CountByStatus(ctx, centerID)
	if err != nil {
		return nil, internalError(err, "failed to count campaigns")
	}
	stats := &models.CampaignStats{}
	for _, row := range counts {
		stats.Total += row.Count
		switch models.CampaignStatus(row.Status) {
		case models.CampaignPlanned:
			stats.Planned = row.Count
		case models.CampaignActive:
			stats.Active = row.Count
		case models.CampaignCompleted:
			stats.Completed = row.Count
		}
	}
	return stats, nil
}

// AddActivity records a field activity on a campaign. Completed campaigns
// take no new activities. The campaign creator hears about activities logged
// by others, and the actor gets a reminder for activities in the next days.
func (s *CampaignService) AddActivity(ctx context.Context, actor Actor, campaignID string, req dto.ActivityRequest) (*models.Activity, error) {
	if err := authorize(s.policy, actor, OpCampaignsManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid activity payload")
	}
	day, err := s.parseDate(req.Date, "date")
	if err != nil {
		return nil, err
	}
	campaign, err := s.load(ctx, actor, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "campaign is completed")
	}

	activity := &models.Activity{
		CampaignID: campaign.ID,
		Type:       models.ActivityType(req.Type),
		Date:       day,
		Location:   strings.TrimSpace(req.Location),
		Attendees:  req.Attendees,
		Notes:      req.Notes,
		CreatedBy:  actor.ID,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, internalError(err, "failed to create activity")
	}

	if campaign.CreatedBy != actor.ID {
		message := fmt.Sprintf("A %s activity was added to campaign %q", strings.ReplaceAll(req.Type, "_", " "), campaign.Title)
		s.notifications.Notify(ctx, campaign.CreatedBy, models.NotificationInfo, "Activity added", message, campaignLink(campaign.ID))
	}
	today := s.today()
	if !day.Before(today) && !day.After(today.Add(upcomingWindow)) {
		message := fmt.Sprintf("Activity at %s for campaign %q is scheduled on %s", activity.Location, campaign.Title, day.Format(dateLayout))
		s.notifications.Notify(ctx, actor.ID, models.NotificationWarning, "Upcoming activity", message, campaignLink(campaign.ID))
	}
	return activity, nil
}

// ListActivities returns the activities of a campaign within the actor's
// scope.
func (s *CampaignService) ListActivities(ctx context.Context, actor Actor, campaignID string) ([]models.Activity, error) {
	if err := authorize(s.policy, actor, OpCampaignsRead); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	activities, err := s.activities.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, internalError(err, "failed to list activities")
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, nil
}

// ActivityStats summarises activities within the actor's scope.
func (s *CampaignService) ActivityStats(ctx context.Context, actor Actor) (*models.ActivityStats, error) {
	if err := authorize(s.policy, actor, OpCampaignsRead); err != nil {
		return nil, err
	}
	centerID, ok := s.scope(actor)
	if !ok {
		return &models.ActivityStats{ByType: map[string]int{}}, nil
	}
	stats, err := s.activities.Stats(ctx, centerID)
	if err != nil {
		return nil, internalError(err, "failed to summarise activities")
	}
	return stats, nil
}

func (s *CampaignService) load(ctx context.Context, actor Actor, id string) (*models.Campaign, error) {
	campaign, err := s.campaigns.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "campaign not found")
		}
		return nil, internalError(err, "failed to load campaign")
	}
	if !actor.Can(s.policy, OpStatsReadAll) && campaign.HealthCenterID != actor.HealthCenterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "campaign belongs to another health center")
	}
	return campaign, nil
}

// scope returns the center filter for aggregate reads. An empty id means all
// centers; ok is false for plain users without a center.
func (s *CampaignService) scope(actor Actor) (string, bool) {
	if actor.Can(s.policy, OpStatsReadAll) {
		return "", true
	}
	return actor.HealthCenterID, actor.HealthCenterID != ""
}

func (s *CampaignService) targetCenter(actor Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if actor.Can(s.policy, OpStatsReadAll) {
		if requested == "" {
			requested = actor.HealthCenterID
		}
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "healthCenterId is required")
		}
		return requested, nil
	}
	if actor.HealthCenterID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to a health center")
	}
	if requested != "" && requested != actor.HealthCenterID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "cannot plan campaigns for another health center")
	}
	return actor.HealthCenterID, nil
}

func (s *CampaignService) loadCenter(ctx context.Context, id string) (*models.HealthCenter, error) {
	center, err := s.centers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health center not found")
		}
		return nil, internalError(err, "failed to load health center")
	}
	return center, nil
}

func (s *CampaignService) parseDate(value, field string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), s.loc)
	if err != nil {
		return time.Time{}, invalidInput(err, field+" must use YYYY-MM-DD")
	}
	return day, nil
}

func (s *CampaignService) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func campaignLink(id string) *string {
	link := "/campaigns/" + id
	return &link
}
