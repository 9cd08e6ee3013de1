package db

import (
	"errors"

	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"github.com/ikkim/cpportal-backend/pkg/util"
	"gorm.io/gorm"
)

// Models lists every table owned by the service
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Material{},
		&model.MaterialReview{},
		&model.Notification{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// SeedAdmin 관리자 계정이 없으면 생성한다
func SeedAdmin(db *gorm.DB, email, password, name string) (*model.User, error) {
	if email == "" || password == "" {
		logger.Info("Admin seed skipped, credentials not configured")
		return nil, nil
	}

	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		logger.Info("Admin already seeded, skipping...", map[string]interface{}{
			"email": email,
		})
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		logger.Error("Failed to seed admin", err, map[string]interface{}{
			"email": email,
		})
		return nil, err
	}

	logger.Info("Admin seeded successfully", map[string]interface{}{
		"user_id": admin.ID,
		"email":   email,
	})
	return admin, nil
}
