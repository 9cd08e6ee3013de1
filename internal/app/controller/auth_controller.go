package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/pkg/util"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UserView struct {
	ID    uint           `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Phone string         `json:"phone"`
	Role  model.UserRole `json:"role"`
}

type AuthResponse struct {
	User   UserView        `json:"user"`
	Tokens *util.TokenPair `json:"tokens"`
}

func newUserView(u *model.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Role: u.Role}
}

// Register handles CP account registration
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		respondBindError(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Register(req.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		log.Warn("Registration failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		respondServiceError(c, err, "register user")
		return
	}

	log.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	apperrors.Respond(c, http.StatusCreated, AuthResponse{User: newUserView(user), Tokens: tokens})
}

// Login handles user login
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		respondBindError(c, err)
		return
	}

	user, tokens, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		log.Warn("Login failed", map[string]interface{}{
			"email": req.Email,
			"error": err.Error(),
		})
		respondServiceError(c, err, "login")
		return
	}

	log.Info("Login successful", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})

	apperrors.OK(c, AuthResponse{User: newUserView(user), Tokens: tokens})
}

// Refresh rotates the token pair
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tokens, err := ctrl.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		log.Warn("Token refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondServiceError(c, err, "refresh token")
		return
	}

	apperrors.OK(c, gin.H{"tokens": tokens})
}

// Logout revokes the current tokens and closes the user's sockets
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	claims, ok := middleware.GetClaims(c)
	if !ok {
		apperrors.Unauthorized(c, "로그인이 필요합니다")
		return
	}

	// body is optional
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := ctrl.authService.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		log.Error("Logout failed", err, map[string]interface{}{
			"user_id": claims.UserID,
		})
		respondServiceError(c, err, "logout")
		return
	}

	log.Info("User logged out", map[string]interface{}{
		"user_id": claims.UserID,
	})
	apperrors.OK(c, nil)
}

// GetMe returns current user information
// GET /api/v1/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := ctrl.authService.GetUserByID(userID)
	if err != nil {
		log.Warn("Failed to load current user", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		respondServiceError(c, err, "get user")
		return
	}

	apperrors.OK(c, gin.H{"user": newUserView(user)})
}
