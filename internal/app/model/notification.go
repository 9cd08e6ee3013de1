package model

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeMaterialApproved      NotificationType = "material_approved"
	NotificationTypeMaterialRejected      NotificationType = "material_rejected"
	NotificationTypeMaterialReviewPending NotificationType = "material_review_pending"
)

// Notification 알림 모델
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 알림 받을 사용자
	UserID uint  `gorm:"not null;index" json:"user_id"`
	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// 알림 타입
	Type NotificationType `gorm:"type:varchar(50);not null;index" json:"type"`

	// 알림 내용
	Title   string `gorm:"type:text;not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	Link    string `gorm:"type:text;not null" json:"link"`

	// 상태
	IsRead bool `gorm:"default:false;index" json:"is_read"`

	// 관련 자료 (nullable)
	RelatedMaterialID *uint `gorm:"index" json:"related_material_id,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
