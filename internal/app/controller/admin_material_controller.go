package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/middleware"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportMaxRows   = 10000
	exportPageSize  = 100
)

// AdminMaterialController 관리자 심사 컨트롤러
type AdminMaterialController struct {
	materialService service.MaterialService
}

func NewAdminMaterialController(materialService service.MaterialService) *AdminMaterialController {
	return &AdminMaterialController{
		materialService: materialService,
	}
}

type RejectMaterialRequest struct {
	Comment string `json:"comment"`
}

// parseStatusFilter status 쿼리 (이름 또는 숫자), 비어 있으면 전체
func parseStatusFilter(c *gin.Context) (*lifecycle.Status, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status, err := lifecycle.ParseStatus(raw)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "상태 값이 올바르지 않습니다")
		return nil, false
	}
	return &status, true
}

// ListMaterials 심사 대기열
// GET /api/v1/admin/materials
func (ctrl *AdminMaterialController) ListMaterials(c *gin.Context) {
	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	materials, total, err := ctrl.materialService.ListMaterials(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondServiceError(c, err, "list materials")
		return
	}

	apperrors.OK(c, gin.H{
		"materials": newMaterialViews(materials),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ExportMaterials 심사 대기열 엑셀 다운로드
// GET /api/v1/admin/materials/export
func (ctrl *AdminMaterialController) ExportMaterials(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	status, ok := parseStatusFilter(c)
	if !ok {
		return
	}

	var materials []model.Material
	for page := 1; len(materials) < exportMaxRows; page++ {
		batch, total, err := ctrl.materialService.ListMaterials(c.Request.Context(), status, page, exportPageSize)
		if err != nil {
			respondServiceError(c, err, "export materials")
			return
		}
		materials = append(materials, batch...)
		if len(batch) < exportPageSize || int64(len(materials)) >= total {
			break
		}
	}

	var buf bytes.Buffer
	if err := service.WriteMaterialsXLSX(&buf, materials); err != nil {
		log.Error("Failed to build material export", err, nil)
		apperrors.InternalError(c, "")
		return
	}

	filename := fmt.Sprintf("cp-materials-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())

	log.Info("Materials exported", map[string]interface{}{
		"rows": len(materials),
	})
}

// GetMaterial 자료 상세 (소유자 확인 없음)
// GET /api/v1/admin/materials/:id
func (ctrl *AdminMaterialController) GetMaterial(c *gin.Context) {
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	m, err := ctrl.materialService.GetMaterial(c.Request.Context(), materialID)
	if err != nil {
		respondServiceError(c, err, "get material")
		return
	}
	reviews, err := ctrl.materialService.ListReviews(c.Request.Context(), materialID)
	if err != nil {
		respondServiceError(c, err, "list material reviews")
		return
	}

	apperrors.OK(c, gin.H{
		"material": newMaterialView(m),
		"reviews":  reviews,
	})
}

// ApproveMaterial 승인
// POST /api/v1/admin/materials/:id/approve
func (ctrl *AdminMaterialController) ApproveMaterial(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	m, err := ctrl.materialService.ApproveMaterial(c.Request.Context(), materialID, reviewerID)
	if err != nil {
		log.Warn("Approve failed", map[string]interface{}{
			"material_id": materialID,
			"error":       err.Error(),
		})
		respondServiceError(c, err, "review material")
		return
	}

	log.Info("Material approved", map[string]interface{}{
		"material_id": m.ID,
		"reviewer_id": reviewerID,
	})
	apperrors.OK(c, newMaterialView(m))
}

// RejectMaterial 반려 (사유 필수)
// POST /api/v1/admin/materials/:id/reject
func (ctrl *AdminMaterialController) RejectMaterial(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	materialID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RejectMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	m, err := ctrl.materialService.RejectMaterial(c.Request.Context(), materialID, reviewerID, req.Comment)
	if err != nil {
		log.Warn("Reject failed", map[string]interface{}{
			"material_id": materialID,
			"error":       err.Error(),
		})
		respondServiceError(c, err, "review material")
		return
	}

	log.Info("Material rejected", map[string]interface{}{
		"material_id": m.ID,
		"reviewer_id": reviewerID,
	})
	apperrors.OK(c, newMaterialView(m))
}
