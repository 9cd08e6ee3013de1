package controller

import (
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
)

// MaterialView 자료 응답 (상태에서 파생된 editable/badge 포함)
type MaterialView struct {
	MaterialID         uint             `json:"material_id"`
	CPID               uint             `json:"cp_id"`
	CpName             string           `json:"cp_name"`
	CpIcon             string           `json:"cp_icon"`
	BusinessLicense    string           `json:"business_license"`
	Website            string           `json:"website"`
	VerificationImages []string         `json:"verification_images"`
	Status             lifecycle.Status `json:"status"`
	StatusName         string           `json:"status_name"`
	ReviewComment      string           `json:"review_comment"`
	Editable           bool             `json:"editable"`
	Badge              lifecycle.Badge  `json:"badge"`
	SubmittedAt        *time.Time       `json:"submitted_at,omitempty"`
	ReviewedAt         *time.Time       `json:"reviewed_at,omitempty"`
	CreateTime         time.Time        `json:"create_time"`
	ModifyTime         time.Time        `json:"modify_time"`
}

func newMaterialView(m *model.Material) *MaterialView {
	if m == nil {
		return nil
	}
	images := []string(m.VerificationImages)
	if images == nil {
		images = []string{}
	}
	return &MaterialView{
		MaterialID:         m.ID,
		CPID:               m.CPID,
		CpName:             m.CpName,
		CpIcon:             m.CpIcon,
		BusinessLicense:    m.BusinessLicense,
		Website:            m.Website,
		VerificationImages: images,
		Status:             m.Status,
		StatusName:         m.Status.String(),
		ReviewComment:      m.ReviewComment,
		Editable:           m.Editable(),
		Badge:              m.Status.Badge(),
		SubmittedAt:        m.SubmittedAt,
		ReviewedAt:         m.ReviewedAt,
		CreateTime:         m.CreatedAt,
		ModifyTime:         m.UpdatedAt,
	}
}

func newMaterialViews(materials []model.Material) []*MaterialView {
	views := make([]*MaterialView, 0, len(materials))
	for i := range materials {
		views = append(views, newMaterialView(&materials[i]))
	}
	return views
}
