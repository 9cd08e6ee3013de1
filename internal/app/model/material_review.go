package model

import (
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
)

// MaterialReview 상태 전이 이력 (게이트웨이가 저장할 때마다 1건)
type MaterialReview struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	MaterialID uint             `gorm:"not null;index" json:"material_id"`
	ActorID    uint             `gorm:"not null" json:"actor_id"` // 요청한 CP 또는 관리자
	Action     lifecycle.Action `gorm:"type:varchar(20);not null" json:"action"`
	FromStatus lifecycle.Status `gorm:"type:smallint;not null" json:"from_status"`
	ToStatus   lifecycle.Status `gorm:"type:smallint;not null" json:"to_status"`
	Comment    string           `gorm:"type:text" json:"comment,omitempty"` // 반려 사유
}

func (MaterialReview) TableName() string {
	return "cp_material_reviews"
}
