package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/cache"
	"github.com/ikkim/cpportal-backend/internal/metrics"
	ws "github.com/ikkim/cpportal-backend/internal/websocket"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrMaterialNotFound      = errors.New("material not found")
	ErrMaterialExists        = errors.New("cp already has a material")
	ErrNotMaterialOwner      = errors.New("material belongs to another cp")
	ErrMaterialStatusChanged = errors.New("material status changed, reload and retry")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MaterialInput 자료 저장 요청 필드
type MaterialInput struct {
	CpName             string
	CpIcon             string
	BusinessLicense    string
	Website            string
	VerificationImages []string
}

func (in MaterialInput) candidate() lifecycle.Candidate {
	return lifecycle.Candidate{
		CpName:             in.CpName,
		BusinessLicense:    in.BusinessLicense,
		VerificationImages: in.VerificationImages,
	}
}

// RequestMeta 제출자 추적 정보
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// StatusChange material.status_changed 이벤트 payload
type StatusChange struct {
	MaterialID    uint             `json:"material_id"`
	CPID          uint             `json:"cp_id"`
	From          lifecycle.Status `json:"from"`
	To            lifecycle.Status `json:"to"`
	Action        lifecycle.Action `json:"action"`
	Editable      bool             `json:"editable"`
	Badge         lifecycle.Badge  `json:"badge"`
	ReviewComment string           `json:"review_comment,omitempty"`
}

// ReviewNotifier persists the in-app notification for a review decision
type ReviewNotifier interface {
	NotifyReviewOutcome(material *model.Material) error
}

type MaterialService interface {
	// FetchMaterial returns nil, nil when the CP has no material yet.
	// A non-zero materialID must belong to cpID.
	FetchMaterial(ctx context.Context, materialID, cpID uint) (*model.Material, error)
	GetMaterial(ctx context.Context, materialID uint) (*model.Material, error)
	CreateMaterial(ctx context.Context, cpID uint, input MaterialInput, mode lifecycle.Action, meta RequestMeta) (*model.Material, error)
	UpdateMaterial(ctx context.Context, materialID, cpID uint, input MaterialInput, mode lifecycle.Action, meta RequestMeta) (*model.Material, error)
	ApproveMaterial(ctx context.Context, materialID, reviewerID uint) (*model.Material, error)
	RejectMaterial(ctx context.Context, materialID, reviewerID uint, comment string) (*model.Material, error)
	ListMaterials(ctx context.Context, status *lifecycle.Status, page, pageSize int) ([]model.Material, int64, error)
	ListReviews(ctx context.Context, materialID uint) ([]model.MaterialReview, error)
}

type materialService struct {
	repo      repository.MaterialRepository
	cache     *cache.Cache[*model.Material]
	guard     SubmissionGuard
	publisher EventPublisher
	notifier  ReviewNotifier
	peers     CacheInvalidator
	now       func() time.Time
}

// CacheInvalidator forwards dropped cache keys to the other API instances
type CacheInvalidator interface {
	PublishInvalidation(ctx context.Context, keys ...string) error
}

const peerInvalidationTimeout = 2 * time.Second

type MaterialServiceOption func(*materialService)

func WithMaterialCache(c *cache.Cache[*model.Material]) MaterialServiceOption {
	return func(s *materialService) { s.cache = c }
}

func WithSubmissionGuard(g SubmissionGuard) MaterialServiceOption {
	return func(s *materialService) { s.guard = g }
}

func WithEventPublisher(p EventPublisher) MaterialServiceOption {
	return func(s *materialService) { s.publisher = publisherOrNoop(p) }
}

func WithReviewNotifier(n ReviewNotifier) MaterialServiceOption {
	return func(s *materialService) { s.notifier = n }
}

func WithCacheInvalidator(p CacheInvalidator) MaterialServiceOption {
	return func(s *materialService) { s.peers = p }
}

func withClock(now func() time.Time) MaterialServiceOption {
	return func(s *materialService) { s.now = now }
}

func NewMaterialService(repo repository.MaterialRepository, opts ...MaterialServiceOption) MaterialService {
	s := &materialService{
		repo:      repo,
		cache:     cache.New[*model.Material]("material", 1024, time.Minute),
		guard:     NewLocalSubmissionGuard(),
		publisher: noopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKeyByID(id uint) string   { return fmt.Sprintf("id:%d", id) }
func cacheKeyByCP(cpID uint) string { return fmt.Sprintf("cp:%d", cpID) }

func cloneMaterial(m *model.Material) *model.Material {
	if m == nil {
		return nil
	}
	c := *m
	c.VerificationImages = append(datatypes.JSONSlice[string]{}, m.VerificationImages...)
	return &c
}

func (s *materialService) FetchMaterial(ctx context.Context, materialID, cpID uint) (*model.Material, error) {
	logger.Debug("Fetching material", map[string]interface{}{
		"material_id": materialID,
		"cp_id":       cpID,
	})

	if materialID == 0 {
		m, err := s.cache.GetOrLoad(cacheKeyByCP(cpID), func() (*model.Material, error) {
			m, err := s.repo.FindByCPID(cpID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return m, err
		})
		if err != nil {
			logger.Error("Failed to fetch material by cp", err, map[string]interface{}{
				"cp_id": cpID,
			})
			return nil, err
		}
		return cloneMaterial(m), nil
	}

	m, err := s.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if m.CPID != cpID {
		logger.Warn("Material fetch by non-owner", map[string]interface{}{
			"material_id": materialID,
			"cp_id":       cpID,
			"owner_id":    m.CPID,
		})
		return nil, ErrNotMaterialOwner
	}
	return m, nil
}

// GetMaterial 관리자용 (소유자 확인 없음)
func (s *materialService) GetMaterial(_ context.Context, materialID uint) (*model.Material, error) {
	m, err := s.cache.GetOrLoad(cacheKeyByID(materialID), func() (*model.Material, error) {
		return s.repo.FindByID(materialID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		logger.Error("Failed to fetch material", err, map[string]interface{}{
			"material_id": materialID,
		})
		return nil, err
	}
	return cloneMaterial(m), nil
}

// rejectNonSaveMode keeps reviewer decisions off the provider endpoints
func rejectNonSaveMode(current lifecycle.Status, mode lifecycle.Action) error {
	if mode.SaveMode() {
		return nil
	}
	return &lifecycle.TransitionError{From: current, Action: mode, Kind: lifecycle.ErrInvalidTransition}
}

func (s *materialService) CreateMaterial(ctx context.Context, cpID uint, input MaterialInput, mode lifecycle.Action, meta RequestMeta) (*model.Material, error) {
	logger.Info("Creating material", map[string]interface{}{
		"cp_id": cpID,
		"mode":  mode,
	})

	if err := rejectNonSaveMode(lifecycle.StatusUnset, mode); err != nil {
		recordTransitionFailure(lifecycle.StatusUnset, mode, err)
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, cpID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindByCPID(cpID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		logger.Warn("Material create rejected, cp already has one", map[string]interface{}{
			"cp_id":       cpID,
			"material_id": existing.ID,
		})
		return nil, ErrMaterialExists
	}

	next, err := lifecycle.Transition(lifecycle.StatusUnset, mode, input.candidate())
	if err != nil {
		recordTransitionFailure(lifecycle.StatusUnset, mode, err)
		return nil, err
	}

	m := &model.Material{CPID: cpID}
	s.applyProviderSave(m, input, next, meta)

	review := &model.MaterialReview{
		ActorID:    cpID,
		Action:     mode,
		FromStatus: lifecycle.StatusUnset,
		ToStatus:   next,
	}
	if err := s.repo.CreateWithReview(m, review); err != nil {
		logger.Error("Failed to create material", err, map[string]interface{}{
			"cp_id": cpID,
		})
		return nil, err
	}

	s.afterWrite(m, lifecycle.StatusUnset, mode)

	logger.Info("Material created", map[string]interface{}{
		"material_id": m.ID,
		"cp_id":       cpID,
		"status":      m.Status.String(),
	})
	return cloneMaterial(m), nil
}

func (s *materialService) UpdateMaterial(ctx context.Context, materialID, cpID uint, input MaterialInput, mode lifecycle.Action, meta RequestMeta) (*model.Material, error) {
	logger.Info("Updating material", map[string]interface{}{
		"material_id": materialID,
		"cp_id":       cpID,
		"mode":        mode,
	})

	release, err := s.guard.Acquire(ctx, cpID)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.load(materialID)
	if err != nil {
		return nil, err
	}
	if current.CPID != cpID {
		return nil, ErrNotMaterialOwner
	}

	from := current.Status
	if err := rejectNonSaveMode(from, mode); err != nil {
		recordTransitionFailure(from, mode, err)
		return nil, err
	}

	next, err := lifecycle.Transition(from, mode, input.candidate())
	if err != nil {
		recordTransitionFailure(from, mode, err)
		logger.Warn("Material update refused", map[string]interface{}{
			"material_id": materialID,
			"from":        from.String(),
			"mode":        mode,
			"error":       err.Error(),
		})
		return nil, err
	}

	s.applyProviderSave(current, input, next, meta)

	review := &model.MaterialReview{
		ActorID:    cpID,
		Action:     mode,
		FromStatus: from,
		ToStatus:   next,
	}
	if err := s.persistUpdate(current, from, review); err != nil {
		return nil, err
	}

	s.afterWrite(current, from, mode)
	return cloneMaterial(current), nil
}

// applyProviderSave copies the provider's fields. Any previous review outcome
// is cleared; a new review starts from scratch.
func (s *materialService) applyProviderSave(m *model.Material, input MaterialInput, next lifecycle.Status, meta RequestMeta) {
	m.CpName = strings.TrimSpace(input.CpName)
	m.CpIcon = strings.TrimSpace(input.CpIcon)
	m.BusinessLicense = strings.TrimSpace(input.BusinessLicense)
	m.Website = strings.TrimSpace(input.Website)
	m.VerificationImages = append(datatypes.JSONSlice[string]{}, input.VerificationImages...)
	m.Status = next
	m.ReviewComment = ""
	m.ReviewedAt = nil
	m.ReviewedBy = nil
	m.IPAddress = meta.IPAddress
	m.UserAgent = meta.UserAgent
	if next == lifecycle.StatusReviewing {
		now := s.now()
		m.SubmittedAt = &now
	}
}

func (s *materialService) ApproveMaterial(ctx context.Context, materialID, reviewerID uint) (*model.Material, error) {
	return s.review(ctx, materialID, reviewerID, lifecycle.ActionApprove, "")
}

func (s *materialService) RejectMaterial(ctx context.Context, materialID, reviewerID uint, comment string) (*model.Material, error) {
	return s.review(ctx, materialID, reviewerID, lifecycle.ActionReject, comment)
}

func (s *materialService) review(_ context.Context, materialID, reviewerID uint, action lifecycle.Action, comment string) (*model.Material, error) {
	logger.Info("Reviewing material", map[string]interface{}{
		"material_id": materialID,
		"reviewer_id": reviewerID,
		"action":      action,
	})

	current, err := s.load(materialID)
	if err != nil {
		return nil, err
	}

	from := current.Status
	next, err := lifecycle.Transition(from, action, lifecycle.Candidate{ReviewComment: comment})
	if err != nil {
		recordTransitionFailure(from, action, err)
		logger.Warn("Material review refused", map[string]interface{}{
			"material_id": materialID,
			"from":        from.String(),
			"action":      action,
			"error":       err.Error(),
		})
		return nil, err
	}

	now := s.now()
	current.Status = next
	current.ReviewedAt = &now
	current.ReviewedBy = &reviewerID
	current.ReviewComment = ""
	if action == lifecycle.ActionReject {
		current.ReviewComment = strings.TrimSpace(comment)
	}

	review := &model.MaterialReview{
		ActorID:    reviewerID,
		Action:     action,
		FromStatus: from,
		ToStatus:   next,
		Comment:    current.ReviewComment,
	}
	if err := s.persistUpdate(current, from, review); err != nil {
		return nil, err
	}

	s.afterWrite(current, from, action)

	if s.notifier != nil {
		if err := s.notifier.NotifyReviewOutcome(cloneMaterial(current)); err != nil {
			// the decision is already committed
			logger.Error("Failed to notify review outcome", err, map[string]interface{}{
				"material_id": current.ID,
			})
		}
	}

	logger.Info("Material reviewed", map[string]interface{}{
		"material_id": current.ID,
		"status":      current.Status.String(),
	})
	return cloneMaterial(current), nil
}

// load reads from the database, never the cache; writes must see the stored status
func (s *materialService) load(materialID uint) (*model.Material, error) {
	m, err := s.repo.FindByID(materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *materialService) persistUpdate(m *model.Material, from lifecycle.Status, review *model.MaterialReview) error {
	err := s.repo.UpdateWithReview(m, from, review)
	if errors.Is(err, repository.ErrStatusChanged) {
		s.invalidate(m)
		logger.Warn("Material changed underneath the write", map[string]interface{}{
			"material_id": m.ID,
			"from":        from.String(),
		})
		return ErrMaterialStatusChanged
	}
	if err != nil {
		logger.Error("Failed to update material", err, map[string]interface{}{
			"material_id": m.ID,
		})
		return err
	}
	return nil
}

func (s *materialService) invalidate(m *model.Material) {
	keys := []string{cacheKeyByID(m.ID), cacheKeyByCP(m.CPID)}
	s.cache.Invalidate(keys...)
	if s.peers == nil {
		return
	}

	// the write is already committed; the request context may be gone
	ctx, cancel := context.WithTimeout(context.Background(), peerInvalidationTimeout)
	defer cancel()
	if err := s.peers.PublishInvalidation(ctx, keys...); err != nil {
		logger.Warn("Peer instances keep stale material until TTL", map[string]interface{}{
			"material_id": m.ID,
			"error":       err.Error(),
		})
	}
}

func (s *materialService) afterWrite(m *model.Material, from lifecycle.Status, action lifecycle.Action) {
	metrics.MaterialTransitions.WithLabelValues(from.String(), m.Status.String(), string(action)).Inc()
	s.invalidate(m)

	change := StatusChange{
		MaterialID:    m.ID,
		CPID:          m.CPID,
		From:          from,
		To:            m.Status,
		Action:        action,
		Editable:      lifecycle.IsEditable(m.Status),
		Badge:         m.Status.Badge(),
		ReviewComment: m.ReviewComment,
	}
	s.publisher.PublishToUser(m.CPID, ws.NewEvent(ws.EventMaterialStatusChanged, change))

	if m.Status == lifecycle.StatusReviewing {
		s.publisher.PublishToRole(string(model.RoleAdmin), ws.NewEvent(ws.EventMaterialReviewRequested, change))
	}
}

func recordTransitionFailure(from lifecycle.Status, action lifecycle.Action, err error) {
	reason := "invalid_transition"
	switch {
	case errors.Is(err, lifecycle.ErrNotEditable):
		reason = "not_editable"
	case errors.Is(err, lifecycle.ErrValidationFailed):
		reason = "validation_failed"
	}
	metrics.MaterialTransitionFailures.WithLabelValues(from.String(), string(action), reason).Inc()
}

func (s *materialService) ListMaterials(_ context.Context, status *lifecycle.Status, page, pageSize int) ([]model.Material, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	materials, total, err := s.repo.List(repository.MaterialFilter{Status: status, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, err
	}

	logger.Debug("Materials listed", map[string]interface{}{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
	return materials, total, nil
}

func (s *materialService) ListReviews(_ context.Context, materialID uint) ([]model.MaterialReview, error) {
	return s.repo.ListReviews(materialID)
}
