package service

import (
	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

// Operation names a guarded use case.
type Operation string

const (
	OpRegistryManage   Operation = "registry.manage"
	OpCentersManage    Operation = "centers.manage"
	OpUsersManage      Operation = "users.manage"
	OpStatsRead        Operation = "stats.read"
	OpStatsReadAll     Operation = "stats.read_all"
	OpStatsSubmit      Operation = "stats.submit"
	OpStatsReview      Operation = "stats.review"
	OpStatsDelete      Operation = "stats.delete"
	OpStatsConsolidate Operation = "stats.consolidate"
	OpStatsExport      Operation = "stats.export"
	OpCampaignsRead    Operation = "campaigns.read"
	OpCampaignsManage  Operation = "campaigns.manage"
	OpCampaignsDelete  Operation = "campaigns.delete"
)

// Policy decides whether a role may perform an operation.
type Policy func(role models.UserRole, op Operation) bool

var rolePermissions = map[models.UserRole]map[Operation]bool{
	models.RoleAdmin: {
		OpRegistryManage:   true,
		OpCentersManage:    true,
		OpUsersManage:      true,
		OpStatsRead:        true,
		OpStatsReadAll:     true,
		OpStatsSubmit:      true,
		OpStatsReview:      true,
		OpStatsDelete:      true,
		OpStatsConsolidate: true,
		OpStatsExport:      true,
		OpCampaignsRead:    true,
		OpCampaignsManage:  true,
		OpCampaignsDelete:  true,
	},
	models.RoleUser: {
		OpStatsRead:       true,
		OpStatsSubmit:     true,
		OpStatsExport:     true,
		OpCampaignsRead:   true,
		OpCampaignsManage: true,
	},
}

// DefaultPolicy grants SUPERADMIN everything, ADMIN every management and
// review operation, and USER reading, submitting and exporting its own center's
// data and running its own center's campaigns.
func DefaultPolicy(role models.UserRole, op Operation) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	return rolePermissions[role][op]
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID             string
	Role           models.UserRole
	HealthCenterID string
}

// ActorFromClaims builds an Actor from access token claims.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, HealthCenterID: claims.HealthCenterID}
}

// Can reports whether the actor may perform op under policy.
func (a Actor) Can(policy Policy, op Operation) bool {
	if policy == nil {
		policy = DefaultPolicy
	}
	return a.ID != "" && policy(a.Role, op)
}

func authorize(policy Policy, actor Actor, op Operation) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !actor.Can(policy, op) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	return nil
}
