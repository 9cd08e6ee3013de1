package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	apperrors "github.com/ikkim/cpportal-backend/internal/errors"
)

// NotificationController 알림 컨트롤러
type NotificationController struct {
	service service.NotificationService
}

// NewNotificationController 알림 컨트롤러 생성자
func NewNotificationController(service service.NotificationService) *NotificationController {
	return &NotificationController{
		service: service,
	}
}

// GetNotifications 알림 목록 조회
// GET /api/v1/notifications?page=&page_size=&is_read=
func (ctrl *NotificationController) GetNotifications(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var isRead *bool
	if raw := c.Query("is_read"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidFormat, "is_read 값이 올바르지 않습니다")
			return
		}
		isRead = &v
	}

	notifications, total, unreadCount, err := ctrl.service.GetNotifications(userID, isRead, page, pageSize)
	if err != nil {
		apperrors.InternalError(c, "알림 목록을 조회하는 중 오류가 발생했습니다")
		return
	}

	apperrors.OK(c, gin.H{
		"notifications": notifications,
		"total":         total,
		"page":          page,
		"page_size":     pageSize,
		"unread_count":  unreadCount,
	})
}

// GetUnreadCount 안읽은 알림 개수
// GET /api/v1/notifications/unread-count
func (ctrl *NotificationController) GetUnreadCount(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count, err := ctrl.service.GetUnreadCount(userID)
	if err != nil {
		apperrors.InternalError(c, "")
		return
	}
	apperrors.OK(c, gin.H{"unread_count": count})
}

// MarkAsRead 알림 읽음 처리
// PUT /api/v1/notifications/:id/read
func (ctrl *NotificationController) MarkAsRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	notification, err := ctrl.service.MarkAsRead(id, userID)
	if err != nil {
		respondServiceError(c, err, "notification")
		return
	}
	apperrors.OK(c, notification)
}

// MarkAllAsRead 모든 알림 읽음 처리
// PUT /api/v1/notifications/read-all
func (ctrl *NotificationController) MarkAllAsRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := ctrl.service.MarkAllAsRead(userID); err != nil {
		apperrors.InternalError(c, "")
		return
	}
	apperrors.OK(c, nil)
}
