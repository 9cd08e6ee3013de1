package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/middleware"
)

// MaterialController CP 자료 제출 컨트롤러
type MaterialController struct {
	materialService service.MaterialService
}

func NewMaterialController(materialService service.MaterialService) *MaterialController {
	return &MaterialController{
		materialService: materialService,
	}
}

// SaveMaterialRequest 자료 저장 요청 (mode: save_draft | submit_review)
type SaveMaterialRequest struct {
	CpName             string   `json:"cp_name"`
	CpIcon             string   `json:"cp_icon"`
	BusinessLicense    string   `json:"business_license"`
	Website            string   `json:"website"`
	VerificationImages []string `json:"verification_images"`
	Mode               string   `json:"mode" binding:"required"`
}

func (r SaveMaterialRequest) input() service.MaterialInput {
	return service.MaterialInput{
		CpName:             r.CpName,
		CpIcon:             r.CpIcon,
		BusinessLicense:    r.BusinessLicense,
		Website:            r.Website,
		VerificationImages: r.VerificationImages,
	}
}

func bindSaveRequest(c *gin.Context) (SaveMaterialRequest, lifecycle.Action, bool) {
	log := middleware.GetLoggerFromContext(c)

	var req SaveMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid material request", map[string]interface{}{
			"error": err.Error(),
		})
		respondBindError(c, err)
		return req, "", false
	}

	mode, err := lifecycle.ParseAction(req.Mode)
	if err != nil || !mode.SaveMode() {
		log.Warn("Invalid material save mode", map[string]interface{}{
			"mode": req.Mode,
		})
		apperrors.BadRequest(c, apperrors.MaterialInvalidMode, "저장 방식이 올바르지 않습니다")
		return req, "", false
	}
	return req, mode, true
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// GetMyMaterial 내 자료 조회 (없으면 data 없음)
// GET /api/v1/cp/material
func (ctrl *MaterialController) GetMyMaterial(c *gin.Context) {
	cpID, ok := requireUserID(c)
	if !ok {
		return
	}

	m, err := ctrl.materialService.FetchMaterial(c.Request.Context(), 0, cpID)
	if err != nil {
		respondServiceError(c, err, "get material")
		return
	}
	if m == nil {
		apperrors.OK(c, nil)
		return
	}
	apperrors.OK(c, newMaterialView(m))
}

// GetMaterial ID로 자료 조회 (소유자 확인)
// GET /api/v1/cp/material/:id
func (ctrl *MaterialController) GetMaterial(c *gin.Context) {
	cpID, ok := requireUserID(c)
	if !ok {
		return
	}
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	m, err := ctrl.materialService.FetchMaterial(c.Request.Context(), materialID, cpID)
	if err != nil {
		respondServiceError(c, err, "get material")
		return
	}
	apperrors.OK(c, newMaterialView(m))
}

// CreateMaterial 최초 저장
// POST /api/v1/cp/material
func (ctrl *MaterialController) CreateMaterial(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	cpID, ok := requireUserID(c)
	if !ok {
		return
	}
	req, mode, ok := bindSaveRequest(c)
	if !ok {
		return
	}

	m, err := ctrl.materialService.CreateMaterial(c.Request.Context(), cpID, req.input(), mode, requestMeta(c))
	if err != nil {
		log.Warn("Material create failed", map[string]interface{}{
			"cp_id": cpID,
			"mode":  mode,
			"error": err.Error(),
		})
		respondServiceError(c, err, "create material")
		return
	}

	log.Info("Material created", map[string]interface{}{
		"material_id": m.ID,
		"status":      m.Status.String(),
	})
	apperrors.Respond(c, http.StatusCreated, newMaterialView(m))
}

// UpdateMaterial 수정 저장 / 심사 요청
// PUT /api/v1/cp/material/:id
func (ctrl *MaterialController) UpdateMaterial(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	cpID, ok := requireUserID(c)
	if !ok {
		return
	}
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	req, mode, ok := bindSaveRequest(c)
	if !ok {
		return
	}

	m, err := ctrl.materialService.UpdateMaterial(c.Request.Context(), materialID, cpID, req.input(), mode, requestMeta(c))
	if err != nil {
		log.Warn("Material update failed", map[string]interface{}{
			"material_id": materialID,
			"mode":        mode,
			"error":       err.Error(),
		})
		respondServiceError(c, err, "update material")
		return
	}

	log.Info("Material updated", map[string]interface{}{
		"material_id": m.ID,
		"status":      m.Status.String(),
	})
	apperrors.OK(c, newMaterialView(m))
}

// ListMyReviews 내 자료의 심사 이력
// GET /api/v1/cp/material/:id/reviews
func (ctrl *MaterialController) ListMyReviews(c *gin.Context) {
	cpID, ok := requireUserID(c)
	if !ok {
		return
	}
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// ownership check
	if _, err := ctrl.materialService.FetchMaterial(c.Request.Context(), materialID, cpID); err != nil {
		respondServiceError(c, err, "get material")
		return
	}

	reviews, err := ctrl.materialService.ListReviews(c.Request.Context(), materialID)
	if err != nil {
		respondServiceError(c, err, "list material reviews")
		return
	}
	apperrors.OK(c, gin.H{"reviews": reviews})
}

// ListStatuses 상태별 배지 정보
// GET /api/v1/materials/statuses
func (ctrl *MaterialController) ListStatuses(c *gin.Context) {
	type statusView struct {
		lifecycle.Badge
		Name     string `json:"name"`
		Editable bool   `json:"editable"`
	}

	views := make([]statusView, 0, len(lifecycle.Statuses()))
	for _, b := range lifecycle.Badges() {
		views = append(views, statusView{Badge: b, Name: b.Status.String(), Editable: lifecycle.IsEditable(b.Status)})
	}
	apperrors.OK(c, gin.H{"statuses": views})
}

// ValidateMaterial 저장 전 필드 검증 (저장하지 않음)
// POST /api/v1/materials/validate
func (ctrl *MaterialController) ValidateMaterial(c *gin.Context) {
	req, mode, ok := bindSaveRequest(c)
	if !ok {
		return
	}

	candidate := lifecycle.Candidate{
		CpName:             req.CpName,
		BusinessLicense:    req.BusinessLicense,
		VerificationImages: req.VerificationImages,
	}
	if err := lifecycle.ValidateForSave(candidate, mode); err != nil {
		respondServiceError(c, err, "validate material")
		return
	}
	apperrors.OK(c, gin.H{"valid": true})
}
