package repository

import (
	"errors"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"gorm.io/gorm"
)

// ErrStatusChanged is returned when the stored status no longer matches the
// status a transition was computed from.
var ErrStatusChanged = errors.New("material status changed concurrently")

// MaterialFilter 관리자 심사 목록 조회 조건
type MaterialFilter struct {
	Status   *lifecycle.Status
	Page     int
	PageSize int
}

type MaterialRepository interface {
	CreateWithReview(material *model.Material, review *model.MaterialReview) error
	UpdateWithReview(material *model.Material, from lifecycle.Status, review *model.MaterialReview) error
	FindByID(id uint) (*model.Material, error)
	FindByCPID(cpID uint) (*model.Material, error)
	List(filter MaterialFilter) ([]model.Material, int64, error)
	FindReviewingSubmittedBefore(before time.Time) ([]model.Material, error)
	ListReviews(materialID uint) ([]model.MaterialReview, error)
}

type materialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepository{db: db}
}

// CreateWithReview 자료와 첫 이력을 한 트랜잭션으로 저장
func (r *materialRepository) CreateWithReview(material *model.Material, review *model.MaterialReview) error {
	logger.Debug("Creating material in database", map[string]interface{}{
		"cp_id":  material.CPID,
		"status": material.Status.String(),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(material).Error; err != nil {
			return err
		}
		review.MaterialID = material.ID
		return tx.Create(review).Error
	})
	if err != nil {
		logger.Error("Failed to create material in database", err, map[string]interface{}{
			"cp_id": material.CPID,
		})
		return err
	}

	logger.Debug("Material created in database", map[string]interface{}{
		"material_id": material.ID,
		"cp_id":       material.CPID,
	})
	return nil
}

// UpdateWithReview 상태가 from일 때만 자료 전체를 덮어쓰고 이력을 남긴다
func (r *materialRepository) UpdateWithReview(material *model.Material, from lifecycle.Status, review *model.MaterialReview) error {
	logger.Debug("Updating material in database", map[string]interface{}{
		"material_id": material.ID,
		"from":        from.String(),
		"to":          material.Status.String(),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(material).
			Where("status = ?", from).
			Select("*").
			Omit("ID", "CreatedAt", "CPID", "CP").
			Updates(material)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}
		review.MaterialID = material.ID
		return tx.Create(review).Error
	})
	if err != nil {
		logger.Error("Failed to update material in database", err, map[string]interface{}{
			"material_id": material.ID,
		})
		return err
	}

	logger.Debug("Material updated in database", map[string]interface{}{
		"material_id": material.ID,
	})
	return nil
}

func (r *materialRepository) FindByID(id uint) (*model.Material, error) {
	logger.Debug("Finding material by ID in database", map[string]interface{}{
		"material_id": id,
	})

	var material model.Material
	if err := r.db.First(&material, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find material by ID in database", err, map[string]interface{}{
				"material_id": id,
			})
		}
		return nil, err
	}
	return &material, nil
}

func (r *materialRepository) FindByCPID(cpID uint) (*model.Material, error) {
	logger.Debug("Finding material by CP ID in database", map[string]interface{}{
		"cp_id": cpID,
	})

	var material model.Material
	if err := r.db.Where("cp_id = ?", cpID).First(&material).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find material by CP ID in database", err, map[string]interface{}{
				"cp_id": cpID,
			})
		}
		return nil, err
	}
	return &material, nil
}

// List 심사 목록 (최근 수정 순)
func (r *materialRepository) List(filter MaterialFilter) ([]model.Material, int64, error) {
	var materials []model.Material
	var total int64

	query := r.db.Model(&model.Material{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count materials", err)
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("updated_at DESC").Order("id DESC").
		Limit(filter.PageSize).Offset(offset).
		Find(&materials).Error; err != nil {
		logger.Error("Failed to list materials", err, map[string]interface{}{
			"page":      filter.Page,
			"page_size": filter.PageSize,
		})
		return nil, 0, err
	}

	return materials, total, nil
}

// FindReviewingSubmittedBefore 오래 검토 대기 중인 자료
func (r *materialRepository) FindReviewingSubmittedBefore(before time.Time) ([]model.Material, error) {
	var materials []model.Material
	err := r.db.
		Where("status = ? AND submitted_at < ?", lifecycle.StatusReviewing, before).
		Order("submitted_at ASC").
		Find(&materials).Error
	if err != nil {
		logger.Error("Failed to find stale reviewing materials", err)
		return nil, err
	}
	return materials, nil
}

// ListReviews 자료의 상태 전이 이력 (오래된 순)
func (r *materialRepository) ListReviews(materialID uint) ([]model.MaterialReview, error) {
	var reviews []model.MaterialReview
	if err := r.db.Where("material_id = ?", materialID).Order("id ASC").Find(&reviews).Error; err != nil {
		logger.Error("Failed to list material reviews", err, map[string]interface{}{
			"material_id": materialID,
		})
		return nil, err
	}
	return reviews, nil
}
