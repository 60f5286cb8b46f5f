package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/models"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

func TestDefaultPolicy(t *testing.T) {
	cases := []struct {
		role  models.UserRole
		op    Operation
		allow bool
	}{
		{models.RoleSuperAdmin, OpUsersManage, true},
		{models.RoleSuperAdmin, Operation("anything"), true},
		{models.RoleAdmin, OpStatsReview, true},
		{models.RoleAdmin, OpRegistryManage, true},
		{models.RoleUser, OpStatsSubmit, true},
		{models.RoleUser, OpStatsReview, false},
		{models.RoleUser, OpStatsReadAll, false},
		{models.RoleUser, OpStatsConsolidate, false},
		{models.RoleUser, OpRegistryManage, false},
		{models.RoleUser, OpCampaignsManage, true},
		{models.RoleUser, OpCampaignsDelete, false},
		{models.RoleAdmin, OpCampaignsDelete, true},
		{models.UserRole("GUEST"), OpStatsRead, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allow, DefaultPolicy(tc.role, tc.op), "%s %s", tc.role, tc.op)
	}
}

func TestAuthorize(t *testing.T) {
	err := authorize(nil, Actor{}, OpStatsRead)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	err = authorize(nil, Actor{ID: "u1", Role: models.RoleUser}, OpStatsDelete)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	deny := func(models.UserRole, Operation) bool { return false }
	err = authorize(deny, Actor{ID: "u1", Role: models.RoleSuperAdmin}, OpStatsRead)
	require.Error(t, err)

	require.NoError(t, authorize(nil, Actor{ID: "u1", Role: models.RoleAdmin}, OpStatsReview))
}

func TestActorFromClaims(t *testing.T) {
	actor := ActorFromClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleUser, HealthCenterID: "hc-1"})
	require.Equal(t, Actor{ID: "u1", Role: models.RoleUser, HealthCenterID: "hc-1"}, actor)
	require.Equal(t, Actor{}, ActorFromClaims(nil))
}
