package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/health-campaign-api/internal/dto"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/repository"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type registrationRepository interface {
	Create(ctx context.Context, user *models.User, phone *string) (*models.RegistrationRequest, error)
	ListPending(ctx context.Context) ([]models.RegistrationRequest, error)
	FindByID(ctx context.Context, id string) (*models.RegistrationRequest, error)
	Approve(ctx context.Context, id, deciderID string, role models.UserRole) (string, error)
	Reject(ctx context.Context, id, deciderID string, reason *string) (string, error)
	ListApproverIDs(ctx context.Context) ([]string, error)
}

type emailLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// RegistrationService lets people request an account and administrators
// approve or reject them. Requested accounts stay inactive, so they cannot
// sign in, until approved.
type RegistrationService struct {
	repo          registrationRepository
	users         emailLookup
	centers       userCenterLookup
	notifications *NotificationService
	audit         auditRecorder
	policy        Policy
	validator     *validator.Validate
	logger        *zap.Logger
}

// RegistrationServiceConfig groups the collaborators of RegistrationService.
type RegistrationServiceConfig struct {
	Repo          registrationRepository
	Users         emailLookup
	Centers       userCenterLookup
	Notifications *NotificationService
	Audit         auditRecorder
	Policy        Policy
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// NewRegistrationService constructs the service.
func NewRegistrationService(cfg RegistrationServiceConfig) *RegistrationService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy
	}
	return &RegistrationService{
		repo:          cfg.Repo,
		users:         cfg.Users,
		centers:       cfg.Centers,
		notifications: cfg.Notifications,
		audit:         cfg.Audit,
		policy:        cfg.Policy,
		validator:     cfg.Validator,
		logger:        cfg.Logger,
	}
}

// Register stores an inactive USER account with a pending request and tells
// every administrator about it.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegisterRequest) (*models.RegistrationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid registration payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check email uniqueness")
	}

	centerID := lo.FromPtr(req.HealthCenterID)
	if centerID != "" {
		if err := s.checkCenter(ctx, centerID); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		Email:          email,
		FullName:       strings.TrimSpace(req.FullName),
		Role:           models.RoleUser,
		HealthCenterID: lo.EmptyableToPtr(centerID),
		PasswordHash:   string(hash),
	}
	request, err := s.repo.Create(ctx, user, req.Phone)
	if err != nil {
		return nil, internalError(err, "failed to register account")
	}
	s.logger.Info("account registration requested", zap.String("user_id", user.ID))
	recordAudit(ctx, s.audit, s.logger, Actor{ID: user.ID}, models.AuditActionRegistration, "registration_requested", request.ID)

	approvers, err := s.repo.ListApproverIDs(ctx)
	if err != nil {
		s.logger.Warn("failed to load approvers", zap.Error(err))
	}
	message := fmt.Sprintf("%s (%s) is waiting for approval", user.FullName, user.Email)
	for _, id := range approvers {
		s.notifications.Notify(ctx, id, models.NotificationInfo, "New registration", message, lo.ToPtr("/users/registrations"))
	}
	return request, nil
}

// ListPending returns undecided registrations, oldest first.
func (s *RegistrationService) ListPending(ctx context.Context, actor Actor) ([]models.RegistrationRequest, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, err
	}
	requests, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list registrations")
	}
	if requests == nil {
		requests = []models.RegistrationRequest{}
	}
	return requests, nil
}

// Approve activates the requested account with role. Field users need a
// health center.
func (s *RegistrationService) Approve(ctx context.Context, actor Actor, id string, req dto.ApproveRegistrationRequest) (*models.RegistrationRequest, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid approval payload")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role := models.UserRole(req.Role)
	if role == models.RoleUser && lo.FromPtr(request.HealthCenterID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "field users need a health center")
	}

	if _, err := s.repo.Approve(ctx, id, actor.ID, role); err != nil {
		return nil, decisionError(err)
	}
	request.Status = models.RegistrationApproved
	request.DecidedBy = lo.ToPtr(actor.ID)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistration, "registration_approved", id)
	s.notifications.Notify(ctx, request.UserID, models.NotificationSuccess, "Account approved",
		fmt.Sprintf("Your account was approved with role %s", role), nil)
	return request, nil
}

// Reject declines the request. The account stays inactive.
func (s *RegistrationService) Reject(ctx context.Context, actor Actor, id string, req dto.RejectRegistrationRequest) (*models.RegistrationRequest, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid rejection payload")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Reject(ctx, id, actor.ID, req.Reason); err != nil {
		return nil, decisionError(err)
	}
	request.Status = models.RegistrationRejected
	request.DecidedBy = lo.ToPtr(actor.ID)
	request.RejectionReason = req.Reason
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRegistration, "registration_rejected", id)

	message := "Your account request was rejected"
	if reason := lo.FromPtr(req.Reason); reason != "" {
		message += ": " + reason
	}
	s.notifications.Notify(ctx, request.UserID, models.NotificationError, "Account rejected", message, nil)
	return request, nil
}

func (s *RegistrationService) load(ctx context.Context, id string) (*models.RegistrationRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	if err != nil {
		return nil, internalError(err, "failed to load registration")
	}
	return request, nil
}

func (s *RegistrationService) checkCenter(ctx context.Context, id string) error {
	center, err := s.centers.FindByID(ctx, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrValidation, "health center does not exist")
	case err != nil:
		return internalError(err, "failed to load health center")
	case !center.IsActive:
		return appErrors.Clone(appErrors.ErrValidation, "health center is inactive")
	}
	return nil
}

func decisionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRegistrationDecided):
		return appErrors.Clone(appErrors.ErrConflict, "registration already decided")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	return internalError(err, "failed to decide registration")
}
