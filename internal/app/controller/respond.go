package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
	"github.com/ikkim/cpportal-backend/internal/middleware"
	"github.com/ikkim/cpportal-backend/internal/storage"
	"github.com/ikkim/cpportal-backend/pkg/util"
)

// respondServiceError 서비스 에러를 응답 코드로 변환
// 서비스 sentinel이 아니면 ParseAndRespond로 넘긴다
func respondServiceError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrMaterialNotFound):
		apperrors.NotFound(c, apperrors.MaterialNotFound, "자료를 찾을 수 없습니다")
	case errors.Is(err, service.ErrMaterialExists):
		apperrors.Conflict(c, apperrors.MaterialAlreadyExists, "이미 등록된 자료가 있습니다")
	case errors.Is(err, service.ErrNotMaterialOwner), errors.Is(err, service.ErrNotNotificationOwner):
		apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzOwnerOnly, "본인의 데이터만 접근할 수 있습니다")
	case errors.Is(err, service.ErrSubmissionInFlight):
		apperrors.Conflict(c, apperrors.MaterialSubmissionInFlight, "이전 요청을 처리 중입니다. 잠시 후 다시 시도해주세요")
	case errors.Is(err, service.ErrMaterialStatusChanged):
		apperrors.Conflict(c, apperrors.ResourceConflict, "자료 상태가 변경되었습니다. 새로고침 후 다시 시도해주세요")
	case errors.Is(err, service.ErrNotificationNotFound):
		apperrors.NotFound(c, apperrors.NotificationNotFound, "알림을 찾을 수 없습니다")
	case errors.Is(err, service.ErrUserNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "사용자를 찾을 수 없습니다")
	case errors.Is(err, service.ErrEmailAlreadyExists):
		apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "이미 사용 중인 이메일입니다")
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "이메일 또는 비밀번호가 올바르지 않습니다")
	case errors.Is(err, service.ErrTokenRevoked):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenRevoked, "로그아웃된 세션입니다")
	case errors.Is(err, util.ErrExpiredToken):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "로그인이 만료되었습니다")
	case errors.Is(err, util.ErrInvalidToken), errors.Is(err, service.ErrNotRefreshToken):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "유효하지 않은 인증 토큰입니다")
	case errors.Is(err, util.ErrPasswordTooShort), errors.Is(err, util.ErrPasswordTooLong):
		apperrors.BadRequest(c, apperrors.AuthPasswordPolicy, "비밀번호는 8자 이상 72바이트 이하여야 합니다")
	case errors.Is(err, storage.ErrUnsupportedContentType):
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "이미지 파일만 업로드할 수 있습니다 (JPEG, PNG, GIF, WEBP)")
	case errors.Is(err, storage.ErrFileTooLarge):
		apperrors.RespondWithError(c, http.StatusRequestEntityTooLarge, apperrors.UploadFileTooLarge, "파일 크기가 너무 큽니다")
	case errors.Is(err, storage.ErrInvalidFolder):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "업로드 폴더가 올바르지 않습니다")
	default:
		apperrors.ParseAndRespond(c, err, context)
	}
}

// parseIDParam path 파라미터를 uint로 변환, 실패 시 400 응답
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 ID입니다")
		return 0, false
	}
	return uint(id), true
}

// requireUserID 인증 미들웨어 뒤에서만 사용
func requireUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "로그인이 필요합니다")
	}
	return userID, ok
}

// respondBindError 바인딩 실패 응답, 검증 태그 실패는 필드별로 돌려준다
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	apperrors.RespondWithValidationError(c, fields)
}
