package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/health-campaign-api/internal/middleware"
	"github.com/noah-isme/health-campaign-api/internal/models"
	"github.com/noah-isme/health-campaign-api/internal/service"
	appErrors "github.com/noah-isme/health-campaign-api/pkg/errors"
)

type fakeAuth struct {
	login     models.LoginRequest
	loginErr  error
	logoutFor string
}

func (f *fakeAuth) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}, nil
}

func (f *fakeAuth) RefreshToken(_ context.Context, _ models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (f *fakeAuth) Logout(_ context.Context, _ string, userID string, _ models.LoginRequest) error {
	f.logoutFor = userID
	return nil
}

func (f *fakeAuth) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (f *fakeAuth) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	center := "hc-1"
	return &models.UserInfo{ID: userID, Email: "field@example.org", Role: models.RoleUser, HealthCenterID: &center}, nil
}

type fakeBootstrapper struct {
	err error
}

func (f fakeBootstrapper) Bootstrap(_ context.Context, req service.BootstrapRequest, _ models.LoginRequest) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "root", Email: req.Email, Role: models.RoleSuperAdmin}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	handler := NewAuthHandler(auth, fakeBootstrapper{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@example.org","password":"secret"}`))
	c.Request.Header.Set("User-Agent", "field-app")
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "field-app", auth.login.UserAgent)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "access", envelope.Data["access_token"])
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuth{loginErr: appErrors.ErrInvalidCredentials}, fakeBootstrapper{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@example.org","password":"nope"}`))
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeAndLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	handler := NewAuthHandler(auth, fakeBootstrapper{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, userClaims)
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "hc-1", envelope.Data["health_center_id"])

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	c.Set(middleware.ContextUserKey, userClaims)
	handler.Logout(c)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user-1", auth.logoutFor)
}

func TestAuthHandlerBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := []byte(`{"email":"root@example.org","full_name":"Root","password":"long-enough"}`)

	c, w := newGinContext(http.MethodPost, "/auth/bootstrap", body)
	NewAuthHandler(&fakeAuth{}, fakeBootstrapper{}).Bootstrap(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/bootstrap", body)
	NewAuthHandler(&fakeAuth{}, fakeBootstrapper{err: appErrors.Clone(appErrors.ErrConflict, "already bootstrapped")}).Bootstrap(c)
	require.Equal(t, http.StatusConflict, w.Code)
}
