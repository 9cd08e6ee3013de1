package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/metrics"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/internal/storage"
)

// multipart overhead on top of the file itself
const multipartSlack = 1 << 20

type UploadController struct {
	uploader storage.Uploader
	maxBytes int64
}

func NewUploadController(uploader storage.Uploader, maxBytes int64) *UploadController {
	return &UploadController{
		uploader: uploader,
		maxBytes: maxBytes,
	}
}

type GeneratePresignedURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Folder      string `json:"folder"` // Optional: defaults to verification images
}

func (ctrl *UploadController) record(result string) {
	metrics.UploadsTotal.WithLabelValues(ctrl.uploader.Driver(), result).Inc()
}

// UploadImage 이미지를 서버를 거쳐 저장소에 올린다
// POST /api/v1/upload/image (multipart: file, folder)
func (ctrl *UploadController) UploadImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxBytes+multipartSlack)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warn("Invalid upload request", map[string]interface{}{
			"error": err.Error(),
		})
		ctrl.record("rejected")
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "업로드할 파일이 없습니다")
		return
	}

	folder := c.DefaultPostForm("folder", storage.FolderVerification)
	contentType := fileHeader.Header.Get("Content-Type")

	if err := storage.ValidateFolder(folder); err != nil {
		ctrl.record("rejected")
		respondServiceError(c, err, "upload")
		return
	}
	if err := storage.ValidateImage(contentType, fileHeader.Size, ctrl.maxBytes); err != nil {
		log.Warn("Upload rejected", map[string]interface{}{
			"content_type": contentType,
			"size":         fileHeader.Size,
			"error":        err.Error(),
		})
		ctrl.record("rejected")
		respondServiceError(c, err, "upload")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.record("error")
		apperrors.InternalError(c, "")
		return
	}
	defer file.Close()

	url, err := ctrl.uploader.Upload(c.Request.Context(), folder, fileHeader.Filename, contentType, file, fileHeader.Size)
	if err != nil {
		log.Error("Failed to upload image", err, map[string]interface{}{
			"folder": folder,
			"driver": ctrl.uploader.Driver(),
		})
		ctrl.record("error")
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.UploadFailed, "파일 업로드에 실패했습니다")
		return
	}

	ctrl.record("ok")
	log.Info("Image uploaded", map[string]interface{}{
		"folder": folder,
		"size":   fileHeader.Size,
		"url":    url,
	})
	apperrors.OK(c, gin.H{"url": url})
}

// GeneratePresignedURL generates a presigned URL for uploading directly to storage
// POST /api/v1/upload/presigned-url
func (ctrl *UploadController) GeneratePresignedURL(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req GeneratePresignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid presigned URL request", map[string]interface{}{
			"error": err.Error(),
		})
		respondBindError(c, err)
		return
	}

	folder := req.Folder
	if folder == "" {
		folder = storage.FolderVerification
	}
	if err := storage.ValidateFolder(folder); err != nil {
		respondServiceError(c, err, "presign")
		return
	}
	// size is enforced by the storage policy, not known here
	if err := storage.ValidateImage(req.ContentType, 0, ctrl.maxBytes); err != nil {
		log.Warn("Invalid content type", map[string]interface{}{
			"content_type": req.ContentType,
		})
		respondServiceError(c, err, "presign")
		return
	}

	response, err := ctrl.uploader.PresignUpload(c.Request.Context(), folder, req.Filename, req.ContentType)
	if err != nil {
		log.Error("Failed to generate presigned URL", err, map[string]interface{}{
			"filename":     req.Filename,
			"content_type": req.ContentType,
			"folder":       folder,
		})
		apperrors.RespondWithError(c, http.StatusBadGateway, apperrors.UploadFailed, "업로드 URL 생성에 실패했습니다")
		return
	}

	log.Info("Presigned URL generated successfully", map[string]interface{}{
		"folder": folder,
		"key":    response.Key,
	})
	apperrors.OK(c, response)
}
