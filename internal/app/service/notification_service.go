package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotNotificationOwner = errors.New("notification belongs to another user")
)

const reminderConcurrency = 4

// NotificationService 알림 서비스 인터페이스
type NotificationService interface {
	GetNotifications(userID uint, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error)
	GetUnreadCount(userID uint) (int64, error)
	MarkAsRead(notificationID, userID uint) (*model.Notification, error)
	MarkAllAsRead(userID uint) error

	NotifyReviewOutcome(material *model.Material) error
	RemindStaleReviews(ctx context.Context, olderThan time.Duration) (int, error)
}

type notificationService struct {
	repo         repository.NotificationRepository
	userRepo     repository.UserRepository
	materialRepo repository.MaterialRepository
	publisher    EventPublisher
}

// NewNotificationService 알림 서비스 생성자
func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	materialRepo repository.MaterialRepository,
	publisher EventPublisher,
) NotificationService {
	return &notificationService{
		repo:         repo,
		userRepo:     userRepo,
		materialRepo: materialRepo,
		publisher:    publisherOrNoop(publisher),
	}
}

// GetNotifications 알림 목록 조회 (목록, 전체 수, 안읽은 수)
func (s *notificationService) GetNotifications(userID uint, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error) {
	// 페이지 기본값
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize

	notifications, total, err := s.repo.GetNotifications(userID, isRead, pageSize, offset)
	if err != nil {
		return nil, 0, 0, err
	}

	unreadCount, err := s.repo.GetUnreadCount(userID)
	if err != nil {
		return nil, 0, 0, err
	}

	return notifications, total, unreadCount, nil
}

// GetUnreadCount 안읽은 알림 개수 조회
func (s *notificationService) GetUnreadCount(userID uint) (int64, error) {
	return s.repo.GetUnreadCount(userID)
}

// MarkAsRead 알림 읽음 처리
func (s *notificationService) MarkAsRead(notificationID, userID uint) (*model.Notification, error) {
	notification, err := s.repo.GetNotificationByID(notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	// 권한 확인
	if notification.UserID != userID {
		return nil, ErrNotNotificationOwner
	}

	// 이미 읽은 알림이면 그대로 반환
	if notification.IsRead {
		return notification, nil
	}

	if err := s.repo.MarkAsRead(notificationID); err != nil {
		return nil, err
	}

	notification.IsRead = true
	return notification, nil
}

// MarkAllAsRead 모든 알림 읽음 처리
func (s *notificationService) MarkAllAsRead(userID uint) error {
	return s.repo.MarkAllAsRead(userID)
}

// NotifyReviewOutcome 승인/반려 결과를 CP에게 알림
func (s *notificationService) NotifyReviewOutcome(material *model.Material) error {
	var notification *model.Notification

	switch material.Status {
	case lifecycle.StatusOnline:
		notification = &model.Notification{
			UserID:  material.CPID,
			Type:    model.NotificationTypeMaterialApproved,
			Title:   "자료 심사가 승인되었습니다",
			Content: fmt.Sprintf("'%s' 자료가 승인되어 게시되었습니다.", material.CpName),
		}
	case lifecycle.StatusRejected:
		notification = &model.Notification{
			UserID:  material.CPID,
			Type:    model.NotificationTypeMaterialRejected,
			Title:   "자료 심사가 반려되었습니다",
			Content: fmt.Sprintf("반려 사유: %s", material.ReviewComment),
		}
	default:
		return nil
	}

	materialID := material.ID
	notification.Link = "/cp/material"
	notification.RelatedMaterialID = &materialID

	return s.create(notification)
}

func (s *notificationService) create(notification *model.Notification) error {
	if err := s.repo.CreateNotification(notification); err != nil {
		logger.Error("Failed to create notification", err, map[string]interface{}{
			"user_id": notification.UserID,
			"type":    notification.Type,
		})
		return err
	}

	s.publisher.PublishToUser(notification.UserID, ws.NewEvent(ws.EventNotificationCreated, notification))

	logger.Debug("Notification created", map[string]interface{}{
		"notification_id": notification.ID,
		"user_id":         notification.UserID,
		"type":            notification.Type,
	})
	return nil
}

// RemindStaleReviews 오래 검토 대기 중인 자료를 관리자에게 알림
// 같은 자료에 대한 안읽은 리마인더가 있으면 다시 만들지 않는다
func (s *notificationService) RemindStaleReviews(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.materialRepo.FindReviewingSubmittedBefore(time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	adminIDs, err := s.userRepo.FindIDsByRole(model.RoleAdmin)
	if err != nil {
		return 0, err
	}

	created := make([]int, len(adminIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reminderConcurrency)

	for i, adminID := range adminIDs {
		i, adminID := i, adminID
		g.Go(func() error {
			for _, m := range stale {
				if err := gctx.Err(); err != nil {
					return err
				}
				has, err := s.repo.HasUnread(adminID, model.NotificationTypeMaterialReviewPending, m.ID)
				if err != nil {
					return err
				}
				if has {
					continue
				}

				materialID := m.ID
				err = s.create(&model.Notification{
					UserID:            adminID,
					Type:              model.NotificationTypeMaterialReviewPending,
					Title:             "검토 대기 중인 자료가 있습니다",
					Content:           fmt.Sprintf("'%s' 자료가 %s 이후 검토를 기다리고 있습니다.", m.CpName, m.SubmittedAt.Format("2006-01-02")),
					Link:              fmt.Sprintf("/admin/materials/%d", m.ID),
					RelatedMaterialID: &materialID,
				})
				if err != nil {
					return err
				}
				created[i]++
			}
			return nil
		})
	}

	err = g.Wait()

	total := 0
	for _, n := range created {
		total += n
	}

	logger.Info("Stale review reminders processed", map[string]interface{}{
		"stale_materials": len(stale),
		"admins":          len(adminIDs),
		"created":         total,
	})
	return total, err
}
