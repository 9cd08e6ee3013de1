package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/cpportal-backend/config"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection")
		return client.Close()
	}
	return nil
}

// Store groups the key-value operations the API relies on
type Store struct {
	rdb *redis.Client
}

// NewStore wraps an existing client; tests pass one pointed at miniredis
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func blacklistKey(tokenID string) string {
	return fmt.Sprintf("blacklist:%s", tokenID)
}

// BlacklistToken marks a token id as revoked until it would have expired anyway
func (s *Store) BlacklistToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	logger.Debug("Adding token to blacklist", map[string]interface{}{
		"expiry": expiry.String(),
	})

	if expiry <= 0 {
		// already expired, nothing to revoke
		return nil
	}

	if err := s.rdb.Set(ctx, blacklistKey(tokenID), "revoked", expiry).Err(); err != nil {
		logger.Error("Failed to blacklist token", err)
		return err
	}

	logger.Debug("Token successfully blacklisted")
	return nil
}

// IsTokenBlacklisted checks if a token id is in the blacklist
func (s *Store) IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.rdb.Get(ctx, blacklistKey(tokenID)).Result()

	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to check token blacklist", err)
		return false, err
	}

	return val == "revoked", nil
}

// releaseScript deletes the lock only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes key with SET NX PX. ok is false when someone else holds
// it; the returned token must be passed to ReleaseLock.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		logger.Error("Failed to acquire lock", err, map[string]interface{}{
			"key": key,
		})
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock drops key if token still owns it
func (s *Store) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logger.Error("Failed to release lock", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

// InvalidationChannel carries cache keys that went stale on some instance
const InvalidationChannel = "cpportal:cache:invalidate"

// PublishInvalidation tells every subscribed instance to drop keys
func (s *Store) PublishInvalidation(ctx context.Context, keys ...string) error {
	payload, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, InvalidationChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish cache invalidation", err, map[string]interface{}{
			"keys": keys,
		})
		return err
	}
	return nil
}

// SubscribeInvalidations feeds published keys into handle until ctx is done.
// It returns once the subscription is confirmed, so later publishes are seen.
func (s *Store) SubscribeInvalidations(ctx context.Context, handle func(keys ...string)) error {
	sub := s.rdb.Subscribe(ctx, InvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", InvalidationChannel, err)
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var keys []string
				if err := json.Unmarshal([]byte(msg.Payload), &keys); err != nil {
					logger.Warn("Dropping malformed cache invalidation", map[string]interface{}{
						"payload": msg.Payload,
					})
					continue
				}
				handle(keys...)
			}
		}
	}()
	return nil
}
