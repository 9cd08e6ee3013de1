package controller

import (
	"net/http"
	"testing"

	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthController_Register(t *testing.T) {
	s := setupTestServer(t)

	w := s.do("POST", "/api/v1/auth/register", "", RegisterRequest{
		Email:    "cp@example.com",
		Password: "password123",
		Name:     "Acme Studio",
		Phone:    "010-1234-5678",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp AuthResponse
	env := decode(t, w, &resp)
	assert.Equal(t, apperrors.StatusOK, env.StatusCode)
	assert.Equal(t, "cp@example.com", resp.User.Email)
	assert.Equal(t, "cp", string(resp.User.Role))
	require.NotNil(t, resp.Tokens)
	assert.NotEmpty(t, resp.Tokens.AccessToken)

	tests := []struct {
		name       string
		req        interface{}
		httpStatus int
		code       string
	}{
		{"Duplicate email", RegisterRequest{Email: "cp@example.com", Password: "password123", Name: "Dup"}, http.StatusConflict, apperrors.AuthEmailAlreadyExists},
		{"Invalid email", RegisterRequest{Email: "not-an-email", Password: "password123", Name: "X"}, http.StatusBadRequest, apperrors.ValidationInvalidInput},
		{"Missing name", map[string]string{"email": "x@example.com", "password": "password123"}, http.StatusBadRequest, apperrors.ValidationInvalidInput},
		{"Short password", RegisterRequest{Email: "short@example.com", Password: "abc", Name: "Short"}, http.StatusBadRequest, apperrors.AuthPasswordPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("POST", "/api/v1/auth/register", "", tt.req)
			assert.Equal(t, tt.code, statusOf(t, w, tt.httpStatus))
		})
	}
}

func TestAuthController_LoginAndMe(t *testing.T) {
	s := setupTestServer(t)
	s.registerCP("cp@example.com")

	w := s.do("POST", "/api/v1/auth/login", "", LoginRequest{Email: "cp@example.com", Password: "wrong-password"})
	assert.Equal(t, apperrors.AuthInvalidCredentials, statusOf(t, w, http.StatusUnauthorized))

	w = s.do("POST", "/api/v1/auth/login", "", LoginRequest{Email: "cp@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp AuthResponse
	decode(t, w, &resp)

	w = s.do("GET", "/api/v1/auth/me", resp.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User UserView `json:"user"`
	}
	decode(t, w, &me)
	assert.Equal(t, resp.User.ID, me.User.ID)

	w = s.do("GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, apperrors.AuthUnauthorized, statusOf(t, w, http.StatusUnauthorized))
}

func TestAuthController_Refresh(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")

	w := s.do("POST", "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do("POST", "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, apperrors.AuthTokenRevoked, statusOf(t, w, http.StatusUnauthorized))

	w = s.do("POST", "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.AccessToken})
	assert.Equal(t, apperrors.AuthTokenInvalid, statusOf(t, w, http.StatusUnauthorized))
}

func TestAuthController_LogoutRevokesAccessToken(t *testing.T) {
	s := setupTestServer(t)
	_, tokens := s.registerCP("cp@example.com")

	w := s.do("POST", "/api/v1/auth/logout", tokens.AccessToken, LogoutRequest{RefreshToken: tokens.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, apperrors.StatusOK, decode(t, w, nil).StatusCode)

	w = s.do("GET", "/api/v1/auth/me", tokens.AccessToken, nil)
	assert.Equal(t, apperrors.AuthTokenRevoked, statusOf(t, w, http.StatusUnauthorized))

	w = s.do("POST", "/api/v1/auth/refresh", "", RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	assert.Equal(t, apperrors.AuthTokenRevoked, statusOf(t, w, http.StatusUnauthorized))
}
