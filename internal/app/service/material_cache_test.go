package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ikkim/cpportal-backend/internal/app/lifecycle"
	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/cache"
	redisstore "github.com/ikkim/cpportal-backend/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRepo parks the next FindByCPID after it has read the row, until released
type gatedRepo struct {
	repository.MaterialRepository

	mu      sync.Mutex
	armed   bool
	loaded  chan struct{}
	release chan struct{}
}

func (r *gatedRepo) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.loaded = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *gatedRepo) FindByCPID(cpID uint) (*model.Material, error) {
	m, err := r.MaterialRepository.FindByCPID(cpID)

	r.mu.Lock()
	armed := r.armed
	r.armed = false
	r.mu.Unlock()
	if armed {
		close(r.loaded)
		<-r.release
	}
	return m, err
}

func TestMaterialService_ReadOverlappingWriteIsNotCached(t *testing.T) {
	f := setupMaterialServiceTest(t)
	ctx := context.Background()
	repo := &gatedRepo{MaterialRepository: f.repo}
	svc := NewMaterialService(repo)

	m, err := svc.CreateMaterial(ctx, f.cp.ID, completeInput(), lifecycle.ActionSaveDraft, RequestMeta{})
	require.NoError(t, err)

	repo.arm()
	stale := make(chan *model.Material)
	go func() {
		got, err := svc.FetchMaterial(ctx, 0, f.cp.ID)
		assert.NoError(t, err)
		stale <- got
	}()
	<-repo.loaded

	_, err = svc.UpdateMaterial(ctx, m.ID, f.cp.ID, completeInput(), lifecycle.ActionSubmitReview, RequestMeta{})
	require.NoError(t, err)

	close(repo.release)
	assert.Equal(t, lifecycle.StatusDraft, (<-stale).Status)

	fetched, err := svc.FetchMaterial(ctx, 0, f.cp.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusReviewing, fetched.Status)
	assert.False(t, lifecycle.IsEditable(fetched.Status))
}

func TestMaterialService_DecisionInvalidatesOtherInstances(t *testing.T) {
	f := setupMaterialServiceTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := redisstore.NewStore(rdb)

	newInstance := func() MaterialService {
		c := cache.New[*model.Material]("material", 16, time.Hour)
		require.NoError(t, store.SubscribeInvalidations(ctx, c.Invalidate))
		return NewMaterialService(f.repo, WithMaterialCache(c), WithCacheInvalidator(store))
	}
	a := newInstance()
	b := newInstance()

	m, err := a.CreateMaterial(ctx, f.cp.ID, completeInput(), lifecycle.ActionSubmitReview, RequestMeta{})
	require.NoError(t, err)

	// warm both caches with the reviewing record
	for _, svc := range []MaterialService{a, b} {
		got, err := svc.FetchMaterial(ctx, 0, f.cp.ID)
		require.NoError(t, err)
		require.Equal(t, lifecycle.StatusReviewing, got.Status)
		_, err = svc.GetMaterial(ctx, m.ID)
		require.NoError(t, err)
	}

	_, err = b.RejectMaterial(ctx, m.ID, f.admin.ID, "사업자등록증이 흐립니다")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := a.FetchMaterial(ctx, 0, f.cp.ID)
		return err == nil && got.Status == lifecycle.StatusRejected
	}, 2*time.Second, 10*time.Millisecond)

	byID, err := a.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, byID.Status)
	assert.Equal(t, "사업자등록증이 흐립니다", byID.ReviewComment)
	assert.True(t, lifecycle.IsEditable(byID.Status))
}
