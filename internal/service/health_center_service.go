package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type healthCenterRepository interface {
	List(ctx context.Context, filter models.HealthCenterFilter) ([]models.HealthCenter, error)
	FindByID(ctx context.Context, id string) (*models.HealthCenter, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, center *models.HealthCenter) error
	Update(ctx context.Context, center *models.HealthCenter) error
}

// HealthCenterService manages the reporting units.
type HealthCenterService struct {
	repo      healthCenterRepository
	audit     auditRecorder
	policy    Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHealthCenterService constructs the service.
func NewHealthCenterService(repo healthCenterRepository, audit auditRecorder, policy Policy, validate *validator.Validate, logger *zap.Logger) *HealthCenterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy == nil {
		policy = DefaultPolicy
	}
	return &HealthCenterService{repo: repo, audit: audit, policy: policy, validator: validate, logger: logger}
}

// List returns centers. Plain users only see their own center.
func (s *HealthCenterService) List(ctx context.Context, actor Actor, filter models.HealthCenterFilter) ([]models.HealthCenter, error) {
	if err := authorize(s.policy, actor, OpStatsRead); err != nil {
		return nil, err
	}
	if !actor.Can(s.policy, OpStatsReadAll) {
		if actor.HealthCenterID == "" {
			return []models.HealthCenter{}, nil
		}
		center, err := s.Get(ctx, actor, actor.HealthCenterID)
		if err != nil {
			return nil, err
		}
		return []models.HealthCenter{*center}, nil
	}
	centers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list health centers")
	}
	return centers, nil
}

// Get loads one center.
func (s *HealthCenterService) Get(ctx context.Context, actor Actor, id string) (*models.HealthCenter, error) {
	if err := authorize(s.policy, actor, OpStatsRead); err != nil {
		return nil, err
	}
	if !actor.Can(s.policy, OpStatsReadAll) && actor.HealthCenterID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "health center belongs to another user")
	}
	center, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "health center not found")
		}
		return nil, internalError(err, "failed to load health center")
	}
	return center, nil
}

// Create registers a center with a unique code.
func (s *HealthCenterService) Create(ctx context.Context, actor Actor, req dto.HealthCenterRequest) (*models.HealthCenter, error) {
	if err := authorize(s.policy, actor, OpCentersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid health center payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.ensureUniqueCode(ctx, code, ""); err != nil {
		return nil, err
	}
	center := &models.HealthCenter{
		Name:      strings.TrimSpace(req.Name),
		Code:      code,
		District:  req.District,
		Address:   req.Address,
		ManagerID: req.ManagerID,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	if err := s.repo.Create(ctx, center); err != nil {
		return nil, internalError(err, "failed to create health center")
	}
	s.logger.Info("health center created", zap.String("id", center.ID), zap.String("code", center.Code))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCenterChange, "health_center_created", center.ID)
	return center, nil
}

// Update changes a center. Deactivated centers drop out of coverage but keep their reports.
func (s *HealthCenterService) Update(ctx context.Context, actor Actor, id string, req dto.HealthCenterRequest) (*models.HealthCenter, error) {
	if err := authorize(s.policy, actor, OpCentersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid health center payload")
	}
	center, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code != center.Code {
		if err := s.ensureUniqueCode(ctx, code, id); err != nil {
			return nil, err
		}
	}
	center.Name = strings.TrimSpace(req.Name)
	center.Code = code
	center.District = req.District
	center.Address = req.Address
	center.ManagerID = req.ManagerID
	if req.IsActive != nil {
		center.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, center); err != nil {
		return nil, internalError(err, "failed to update health center")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCenterChange, "health_center_updated", center.ID)
	return center, nil
}

func (s *HealthCenterService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check health center code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "health center code already in use")
	}
	return nil
}
