package repository

import (
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"gorm.io/gorm"
)

// NotificationRepository 알림 저장소 인터페이스
type NotificationRepository interface {
	CreateNotification(notification *model.Notification) error
	GetNotificationByID(id uint) (*model.Notification, error)
	GetNotifications(userID uint, isRead *bool, limit, offset int) ([]model.Notification, int64, error)
	GetUnreadCount(userID uint) (int64, error)
	HasUnread(userID uint, notifType model.NotificationType, materialID uint) (bool, error)
	MarkAsRead(id uint) error
	MarkAllAsRead(userID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 알림 저장소 생성자
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotification 알림 생성
func (r *notificationRepository) CreateNotification(notification *model.Notification) error {
	return r.db.Create(notification).Error
}

// GetNotificationByID 알림 ID로 조회
func (r *notificationRepository) GetNotificationByID(id uint) (*model.Notification, error) {
	var notification model.Notification
	if err := r.db.First(&notification, id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

// GetNotifications 알림 목록 조회
func (r *notificationRepository) GetNotifications(userID uint, isRead *bool, limit, offset int) ([]model.Notification, int64, error) {
	var notifications []model.Notification
	var total int64

	query := r.db.Model(&model.Notification{}).Where("user_id = ?", userID)

	// 읽음 상태 필터
	if isRead != nil {
		query = query.Where("is_read = ?", *isRead)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 페이지네이션
	query = query.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// GetUnreadCount 안읽은 알림 개수 조회
func (r *notificationRepository) GetUnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// HasUnread 같은 자료에 대한 안읽은 알림이 이미 있는지 (리마인더 중복 방지)
func (r *notificationRepository) HasUnread(userID uint, notifType model.NotificationType, materialID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND type = ? AND related_material_id = ? AND is_read = ?", userID, notifType, materialID, false).
		Count(&count).Error
	return count > 0, err
}

// MarkAsRead 알림 읽음 처리
func (r *notificationRepository) MarkAsRead(id uint) error {
	return r.db.Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// MarkAllAsRead 모든 알림 읽음 처리
func (r *notificationRepository) MarkAllAsRead(userID uint) error {
	return r.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}
