package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	HTTPStatus int
	Code       string // 에러 코드 (codes.go 참조)
	Message    string // 사용자 친화적 메시지
}

// ParseLifecycleError 상태 전이/검증 에러를 코드로 변환
// 해당하지 않으면 ok=false
func ParseLifecycleError(err error) (ErrorInfo, bool) {
	switch {
	case errors.Is(err, lifecycle.ErrMissingName):
		return ErrorInfo{http.StatusBadRequest, MaterialMissingName, "CP 이름을 입력해주세요"}, true
	case errors.Is(err, lifecycle.ErrMissingLicense):
		return ErrorInfo{http.StatusBadRequest, MaterialMissingLicense, "사업자등록번호를 입력해주세요"}, true
	case errors.Is(err, lifecycle.ErrMissingVerificationImages):
		return ErrorInfo{http.StatusBadRequest, MaterialMissingVerificationImages, "인증 이미지를 1장 이상 등록해주세요"}, true
	case errors.Is(err, lifecycle.ErrMissingReviewComment):
		return ErrorInfo{http.StatusBadRequest, MaterialMissingReviewComment, "반려 사유를 입력해주세요"}, true
	case errors.Is(err, lifecycle.ErrNotEditable):
		return ErrorInfo{http.StatusConflict, MaterialNotEditable, "검토 중이거나 승인된 자료는 수정할 수 없습니다"}, true
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return ErrorInfo{http.StatusConflict, MaterialInvalidTransition, "현재 상태에서는 처리할 수 없는 요청입니다"}, true
	}
	return ErrorInfo{}, false
}

// ParseError 에러를 파싱하여 사용자 친화적인 메시지와 코드로 변환
// 보안상 민감한 정보는 숨기되, 사용자가 문제를 해결할 수 있는 정보 제공
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			HTTPStatus: http.StatusInternalServerError,
			Code:       InternalServerError,
			Message:    "서버 오류가 발생했습니다",
		}
	}

	// 1. 상태 전이 에러
	if info, ok := ParseLifecycleError(err); ok {
		return info
	}

	// 2. GORM 기본 에러
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(context)
	}

	errLower := strings.ToLower(err.Error())

	// 3. DB 제약 조건 에러 (PostgreSQL / SQLite)
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return parseDuplicateKeyError(errLower)
	}
	if strings.Contains(errLower, "foreign key constraint") {
		return ErrorInfo{http.StatusBadRequest, ResourceNotFound, "참조하는 데이터를 찾을 수 없습니다"}
	}
	if strings.Contains(errLower, "not-null constraint") || strings.Contains(errLower, "not null constraint") {
		return ErrorInfo{http.StatusBadRequest, ValidationRequired, "필수 항목이 누락되었습니다"}
	}

	// 4. 네트워크/연결 에러
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{
			HTTPStatus: http.StatusBadGateway,
			Code:       InternalExternalAPI,
			Message:    "외부 서비스 연결에 실패했습니다. 잠시 후 다시 시도해주세요",
		}
	}

	// 5. 기본 내부 서버 오류
	return ErrorInfo{
		HTTPStatus: http.StatusInternalServerError,
		Code:       InternalServerError,
		Message:    getDefaultErrorMessage(context),
	}
}

// parseDuplicateKeyError Unique constraint 위반 에러 파싱
func parseDuplicateKeyError(errLower string) ErrorInfo {
	switch {
	case strings.Contains(errLower, "email"):
		return ErrorInfo{http.StatusConflict, AuthEmailAlreadyExists, "이미 사용 중인 이메일입니다"}
	case strings.Contains(errLower, "cp_id"):
		return ErrorInfo{http.StatusConflict, MaterialAlreadyExists, "이미 등록된 자료가 있습니다"}
	}
	return ErrorInfo{http.StatusConflict, ResourceAlreadyExists, "이미 존재하는 데이터입니다"}
}

func notFound(context string) ErrorInfo {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "material") || strings.Contains(contextLower, "자료"):
		return ErrorInfo{http.StatusNotFound, MaterialNotFound, "자료를 찾을 수 없습니다"}
	case strings.Contains(contextLower, "user") || strings.Contains(contextLower, "사용자"):
		return ErrorInfo{http.StatusNotFound, ResourceNotFound, "사용자를 찾을 수 없습니다"}
	case strings.Contains(contextLower, "notification") || strings.Contains(contextLower, "알림"):
		return ErrorInfo{http.StatusNotFound, NotificationNotFound, "알림을 찾을 수 없습니다"}
	}
	return ErrorInfo{http.StatusNotFound, ResourceNotFound, "요청한 데이터를 찾을 수 없습니다"}
}

// getDefaultErrorMessage context에 따른 기본 에러 메시지
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create") || strings.Contains(contextLower, "등록"):
		return "등록 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	case strings.Contains(contextLower, "update") || strings.Contains(contextLower, "수정"):
		return "수정 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	case strings.Contains(contextLower, "review") || strings.Contains(contextLower, "심사"):
		return "심사 처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	return "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
}

// ParseAndRespond 에러를 파싱하여 응답 반환 (헬퍼 함수)
func ParseAndRespond(c *gin.Context, err error, context string) {
	info := ParseError(err, context)
	RespondWithError(c, info.HTTPStatus, info.Code, info.Message)
}
