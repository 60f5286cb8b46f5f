package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userCenterLookup interface {
	FindByID(ctx context.Context, id string) (*models.HealthCenter, error)
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email          string          `json:"email" validate:"required,email"`
	FullName       string          `json:"full_name" validate:"required"`
	Role           models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN USER"`
	HealthCenterID *string         `json:"health_center_id"`
	Active         bool            `json:"active"`
	Password       string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	FullName       string          `json:"full_name" validate:"required"`
	Role           models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN USER"`
	HealthCenterID *string         `json:"health_center_id"`
	Active         *bool           `json:"active"`
}

// BootstrapRequest creates the first super administrator.
type BootstrapRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	centers   userCenterLookup
	policy    Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, centers userCenterLookup, policy Policy, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy == nil {
		policy = DefaultPolicy
	}
	return &UserService{repo: repo, centers: centers, policy: policy, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, actor Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	page := lo.Ternary(filter.Page < 1, 1, filter.Page)
	pageSize := lo.Ternary(filter.PageSize <= 0 || filter.PageSize > 100, 20, filter.PageSize)
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, actor Actor, id string) (*models.User, error) {
	if actor.ID != id {
		if err := authorize(s.policy, actor, OpUsersManage); err != nil {
			return nil, err
		}
	}
	return s.load(ctx, id)
}

// Create adds an account. Only super administrators create super
// administrators, and field users need an active health center.
func (s *UserService) Create(ctx context.Context, actor Actor, req CreateUserRequest, meta models.LoginRequest) (*models.User, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid create user payload")
	}
	if err := s.guardSuperAdmin(actor, req.Role); err != nil {
		return nil, err
	}
	if err := s.checkCenter(ctx, req.Role, req.HealthCenterID); err != nil {
		return nil, err
	}

	user, err := s.insert(ctx, req.Email, req.FullName, req.Password, req.Role, req.HealthCenterID, req.Active)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor.ID, models.AuditActionUserCreate, user.ID, nil, accountState(user), meta)
	return user, nil
}

// Bootstrap creates the first super administrator. It conflicts once one exists.
func (s *UserService) Bootstrap(ctx context.Context, req BootstrapRequest, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid bootstrap payload")
	}
	count, err := s.repo.CountByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return nil, internalError(err, "failed to check existing administrators")
	}
	if count > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a super administrator already exists")
	}

	user, err := s.insert(ctx, req.Email, req.FullName, req.Password, models.RoleSuperAdmin, nil, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("super administrator bootstrapped", zap.String("user_id", user.ID))
	s.record(ctx, user.ID, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{"bootstrap": true}, meta)
	return user, nil
}

// Update changes name, role, center and active flag. Deactivating an account
// revokes its refresh tokens.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, req UpdateUserRequest, meta models.LoginRequest) (*models.User, error) {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guardSuperAdmin(actor, user.Role, req.Role); err != nil {
		return nil, err
	}
	if err := s.checkCenter(ctx, req.Role, req.HealthCenterID); err != nil {
		return nil, err
	}

	before := accountState(user)
	wasActive := user.Active
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.HealthCenterID = req.HealthCenterID
	user.Active = lo.FromPtrOr(req.Active, user.Active)

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalError(err, "failed to update user")
	}
	if wasActive && !user.Active {
		s.revokeSessions(ctx, user.ID)
	}
	s.record(ctx, actor.ID, models.AuditActionUserUpdate, user.ID, before, accountState(user), meta)
	return user, nil
}

// Deactivate marks the account inactive and signs it out everywhere.
func (s *UserService) Deactivate(ctx context.Context, actor Actor, id string, meta models.LoginRequest) error {
	if err := authorize(s.policy, actor, OpUsersManage); err != nil {
		return err
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot deactivate your own account")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardSuperAdmin(actor, user.Role); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to deactivate user")
	}
	s.revokeSessions(ctx, id)
	s.record(ctx, actor.ID, models.AuditActionUserUpdate, id,
		map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false}, meta)
	return nil
}

func (s *UserService) insert(ctx context.Context, email, fullName, password string, role models.UserRole, centerID *string, active bool) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		Role:           role,
		HealthCenterID: centerID,
		Active:         active,
		PasswordHash:   string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, internalError(err, "failed to create user")
	}
	return user, nil
}

// guardSuperAdmin refuses non-super administrators touching any of roles
// when one of them is SUPERADMIN.
func (s *UserService) guardSuperAdmin(actor Actor, roles ...models.UserRole) error {
	if actor.Role == models.RoleSuperAdmin || !lo.Contains(roles, models.RoleSuperAdmin) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only a super administrator can manage super administrators")
}

func (s *UserService) checkCenter(ctx context.Context, role models.UserRole, centerID *string) error {
	if lo.FromPtr(centerID) == "" {
		if role == models.RoleUser {
			return appErrors.Clone(appErrors.ErrValidation, "health_center_id is required for field users")
		}
		return nil
	}
	if s.centers == nil {
		return nil
	}
	center, err := s.centers.FindByID(ctx, *centerID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrValidation, "health center does not exist")
	case err != nil:
		return internalError(err, "failed to load health center")
	case role == models.RoleUser && !center.IsActive:
		return appErrors.Clone(appErrors.ErrValidation, "health center is inactive")
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *UserService) record(ctx context.Context, actorID, action, userID string, before, after map[string]interface{}, meta models.LoginRequest) {
	entry := &models.AuditLog{
		UserID:     lo.ToPtr(actorID),
		Action:     action,
		Resource:   "users",
		ResourceID: lo.ToPtr(userID),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func accountState(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"email":            user.Email,
		"role":             user.Role,
		"active":           user.Active,
		"health_center_id": user.HealthCenterID,
	}
}
