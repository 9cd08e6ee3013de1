package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/cpportal-backend/pkg/logger"
)

var ErrSubmissionInFlight = errors.New("another submission for this cp is in progress")

// SubmissionGuard allows one outstanding material write per CP
type SubmissionGuard interface {
	Acquire(ctx context.Context, cpID uint) (release func(), err error)
}

// Locker is the subset of the Redis store used for distributed locking
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type redisSubmissionGuard struct {
	locker Locker
	ttl    time.Duration
}

// NewRedisSubmissionGuard locks across API instances; ttl bounds a crashed holder
func NewRedisSubmissionGuard(locker Locker, ttl time.Duration) SubmissionGuard {
	return &redisSubmissionGuard{locker: locker, ttl: ttl}
}

func submissionLockKey(cpID uint) string {
	return fmt.Sprintf("lock:material:cp:%d", cpID)
}

func (g *redisSubmissionGuard) Acquire(ctx context.Context, cpID uint) (func(), error) {
	key := submissionLockKey(cpID)

	token, ok, err := g.locker.AcquireLock(ctx, key, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		logger.Warn("Submission rejected, lock held", map[string]interface{}{
			"cp_id": cpID,
		})
		return nil, ErrSubmissionInFlight
	}

	return func() {
		// the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			logger.Error("Failed to release submission lock", err, map[string]interface{}{
				"cp_id": cpID,
			})
		}
	}, nil
}

type localSubmissionGuard struct {
	mu       sync.Mutex
	inflight map[uint]struct{}
}

// NewLocalSubmissionGuard is used when Redis is not configured (single instance)
func NewLocalSubmissionGuard() SubmissionGuard {
	return &localSubmissionGuard{inflight: make(map[uint]struct{})}
}

func (g *localSubmissionGuard) Acquire(_ context.Context, cpID uint) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[cpID]; busy {
		return nil, ErrSubmissionInFlight
	}
	g.inflight[cpID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, cpID)
			g.mu.Unlock()
		})
	}, nil
}
