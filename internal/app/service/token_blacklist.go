package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenBlacklist records revoked token ids until they expire
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

type localTokenBlacklist struct {
	revoked *expirable.LRU[string, struct{}]
}

// NewLocalTokenBlacklist keeps revocations in process memory. Entries live for
// maxTTL, which must be at least the longest token lifetime.
func NewLocalTokenBlacklist(size int, maxTTL time.Duration) TokenBlacklist {
	return &localTokenBlacklist{revoked: expirable.NewLRU[string, struct{}](size, nil, maxTTL)}
}

func (b *localTokenBlacklist) BlacklistToken(_ context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}
	b.revoked.Add(tokenID, struct{}{})
	return nil
}

func (b *localTokenBlacklist) IsTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	return b.revoked.Contains(tokenID), nil
}
