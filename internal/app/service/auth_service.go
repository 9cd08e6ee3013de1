package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"github.com/ikkim/cpportal-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrNotRefreshToken    = errors.New("not a refresh token")
)

type AuthService interface {
	Register(email, password, name, phone string) (*model.User, *util.TokenPair, error)
	Login(email, password string) (*model.User, *util.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error)
	Logout(ctx context.Context, access *util.Claims, refreshToken string) error
	IsRevoked(ctx context.Context, claims *util.Claims) (bool, error)
	GetUserByID(id uint) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	blacklist     TokenBlacklist
	publisher     EventPublisher
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	blacklist TokenBlacklist,
	publisher EventPublisher,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	if blacklist == nil {
		blacklist = NewLocalTokenBlacklist(10000, refreshExpiry)
	}
	return &authService{
		userRepo:      userRepo,
		blacklist:     blacklist,
		publisher:     publisherOrNoop(publisher),
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 신규 계정은 항상 CP 권한 (관리자는 seed로만 생성)
func (s *authService) Register(email, password, name, phone string) (*model.User, *util.TokenPair, error) {
	email = normalizeEmail(email)
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": email,
		"name":  name,
	})

	if err := util.CheckPasswordPolicy(password); err != nil {
		return nil, nil, err
	}

	// Check if user already exists
	existingUser, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}
	if existingUser != nil {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         strings.TrimSpace(name),
		Phone:        phone,
		Role:         model.RoleCP,
	}

	if err := s.userRepo.Create(user); err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   email,
		"role":    user.Role,
	})

	return user, tokens, nil
}

func (s *authService) Login(email, password string) (*model.User, *util.TokenPair, error) {
	email = normalizeEmail(email)
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, nil, ErrInvalidCredentials
		}
		logger.Error("Failed to find user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"email":   email,
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   email,
		"role":    user.Role,
	})

	return user, tokens, nil
}

func (s *authService) issue(user *model.User) (*util.TokenPair, error) {
	tokens, err := util.GenerateTokenPair(
		user.ID,
		user.Email,
		string(user.Role),
		s.jwtSecret,
		s.accessExpiry,
		s.refreshExpiry,
	)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}
	return tokens, nil
}

// Refresh 리프레시 토큰 회전: 사용한 토큰은 폐기
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, ErrNotRefreshToken
	}

	revoked, err := s.IsRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.RemainingTTL(time.Now())); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Logout 토큰을 폐기하고 사용자의 모든 탭에 세션 종료를 알린다
func (s *authService) Logout(ctx context.Context, access *util.Claims, refreshToken string) error {
	logger.Info("Logging out", map[string]interface{}{
		"user_id": access.UserID,
	})

	now := time.Now()
	if err := s.blacklist.BlacklistToken(ctx, access.ID, access.RemainingTTL(now)); err != nil {
		logger.Error("Failed to revoke access token", err, map[string]interface{}{
			"user_id": access.UserID,
		})
		return err
	}

	if refreshToken != "" {
		// an invalid refresh token cannot be used anyway
		if claims, err := util.ValidateToken(refreshToken, s.jwtSecret); err == nil && claims.UserID == access.UserID {
			if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.RemainingTTL(now)); err != nil {
				return err
			}
		}
	}

	s.publisher.InvalidateSession(access.UserID, ws.NewEvent(ws.EventSessionInvalidated, map[string]interface{}{
		"user_id": access.UserID,
		"reason":  "logout",
	}))
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, claims *util.Claims) (bool, error) {
	if claims.ID == "" {
		return false, nil
	}
	return s.blacklist.IsTokenBlacklisted(ctx, claims.ID)
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	logger.Debug("Fetching user by ID", map[string]interface{}{
		"user_id": id,
	})

	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("User not found", map[string]interface{}{
				"user_id": id,
			})
			return nil, ErrUserNotFound
		}
		logger.Error("Failed to fetch user", err, map[string]interface{}{
			"user_id": id,
		})
		return nil, err
	}

	return user, nil
}
