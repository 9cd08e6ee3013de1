package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ikkim/cpportal-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// StaleReviewReminder is implemented by the notification service
type StaleReviewReminder interface {
	RemindStaleReviews(ctx context.Context, olderThan time.Duration) (int, error)
}

// StaleReviewScheduler 오래 검토 대기 중인 자료를 관리자에게 알리는 스케줄러
type StaleReviewScheduler struct {
	cron      *cron.Cron
	reminder  StaleReviewReminder
	spec      string
	olderThan time.Duration
	timeout   time.Duration

	mu      sync.Mutex
	running bool
}

// NewStaleReviewScheduler spec은 5필드 cron 표현식 (예: "0 9 * * *" = 매일 9시)
func NewStaleReviewScheduler(reminder StaleReviewReminder, spec string, olderThan time.Duration) *StaleReviewScheduler {
	return &StaleReviewScheduler{
		cron:      cron.New(),
		reminder:  reminder,
		spec:      spec,
		olderThan: olderThan,
		timeout:   5 * time.Minute,
	}
}

// Start 스케줄러 시작
func (s *StaleReviewScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logger.Error("Scheduled stale review reminder failed", err)
		}
	})
	if err != nil {
		logger.Error("Failed to add cron job for stale review reminders", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Stale review scheduler started", map[string]interface{}{
		"spec":       s.spec,
		"older_than": s.olderThan.String(),
	})
	return nil
}

// RunOnce 한 번 실행. 이전 실행이 끝나지 않았으면 건너뛴다
func (s *StaleReviewScheduler) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("Stale review reminder still running, skipping")
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.Info("Starting scheduled stale review reminder")
	created, err := s.reminder.RemindStaleReviews(ctx, s.olderThan)
	if err != nil {
		return created, err
	}

	logger.Info("Stale review reminder finished", map[string]interface{}{
		"created": created,
	})
	return created, nil
}

// Stop 스케줄러 중지 (실행 중인 작업이 끝날 때까지 대기)
func (s *StaleReviewScheduler) Stop() {
	logger.Info("Stopping stale review scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Stale review scheduler stopped")
}
