package model

import (
	"fmt"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Material CP 자료 (CP 계정당 1건)
type Material struct {
	ID        uint      `gorm:"primarykey" json:"material_id"` // 자료 ID (최초 저장 전 0)
	CreatedAt time.Time `json:"create_time"`                   // 생성 시각
	UpdatedAt time.Time `json:"modify_time"`                   // 수정 시각

	// 소유자
	CPID uint  `gorm:"column:cp_id;uniqueIndex;not null" json:"cp_id"` // CP 계정 ID (변경 불가)
	CP   *User `gorm:"foreignKey:CPID" json:"-"`

	// 자료 내용
	CpName             string                      `gorm:"type:varchar(100);not null" json:"cp_name"`          // CP 이름
	CpIcon             string                      `gorm:"type:text" json:"cp_icon"`                           // 아이콘 이미지 URL
	BusinessLicense    string                      `gorm:"type:varchar(100);not null" json:"business_license"` // 사업자등록번호
	Website            string                      `gorm:"type:text" json:"website"`                           // 웹사이트
	VerificationImages datatypes.JSONSlice[string] `gorm:"type:json" json:"verification_images"`               // 인증 이미지 URL 목록 (순서 유지)

	// 심사 상태
	Status        lifecycle.Status `gorm:"type:smallint;not null;default:0;index" json:"status"`
	ReviewComment string           `gorm:"type:text" json:"review_comment"` // 반려 사유 (Rejected 상태에서만 의미 있음)
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`          // 마지막 심사 요청 일시
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`           // 심사 완료 일시
	ReviewedBy    *uint            `json:"reviewed_by,omitempty"`           // 심사한 관리자 ID

	// 추적 정보 (보안/로그용)
	IPAddress string `gorm:"type:varchar(50)" json:"-"`
	UserAgent string `gorm:"type:text" json:"-"`
}

func (Material) TableName() string {
	return "cp_materials"
}

// Candidate 상태 전이 검증에 필요한 필드만 추린다
func (m *Material) Candidate() lifecycle.Candidate {
	return lifecycle.Candidate{
		CpName:             m.CpName,
		BusinessLicense:    m.BusinessLicense,
		VerificationImages: []string(m.VerificationImages),
	}
}

// Editable CP가 현재 상태에서 수정할 수 있는지
func (m *Material) Editable() bool {
	return lifecycle.IsEditable(m.Status)
}

// AfterFind 알 수 없는 상태 값은 로드 단계에서 거부한다
func (m *Material) AfterFind(tx *gorm.DB) error {
	if !m.Status.Valid() {
		return fmt.Errorf("material %d has unknown status %d", m.ID, int(m.Status))
	}
	return nil
}
