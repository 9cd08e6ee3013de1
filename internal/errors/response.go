package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 모든 API 응답의 공통 구조
// StatusCode가 "0"이 아니면 실패이며 Data는 비어 있다
type Envelope struct {
	Data          interface{}       `json:"data,omitempty"`
	StatusCode    string            `json:"statusCode"`
	StatusMessage string            `json:"statusMessage"`
	Fields        map[string]string `json:"fields,omitempty"` // 필드별 오류 메시지
}

// OK 성공 응답
func OK(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, data)
}

// Respond 성공 응답 (HTTP 상태 코드 지정)
func Respond(c *gin.Context, httpStatus int, data interface{}) {
	c.JSON(httpStatus, Envelope{
		Data:          data,
		StatusCode:    StatusOK,
		StatusMessage: "success",
	})
}

// RespondWithError 에러 응답 헬퍼
// statusCode: HTTP 상태 코드
// errorCode: 에러 코드 상수 (codes.go 참조)
// message: 사용자에게 보여질 한글 메시지
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, Envelope{
		StatusCode:    errorCode,
		StatusMessage: message,
	})
}

// AbortWithError 미들웨어용: 응답 후 체인 중단
func AbortWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.AbortWithStatusJSON(statusCode, Envelope{
		StatusCode:    errorCode,
		StatusMessage: message,
	})
}

// 자주 사용하는 에러 응답 단축 함수들

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "로그인이 필요합니다"
	}
	RespondWithError(c, http.StatusUnauthorized, AuthUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "접근 권한이 없습니다"
	}
	RespondWithError(c, http.StatusForbidden, AuthzForbidden, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func Conflict(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusConflict, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, Envelope{
		StatusCode:    ValidationInvalidInput,
		StatusMessage: "입력값이 올바르지 않습니다",
		Fields:        fields,
	})
}
