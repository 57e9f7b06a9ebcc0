package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 50 * time.Millisecond

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCoordinator keeps per-lead locks, rate limits and seen update ids in
// Redis so several bot instances can share them.
type RedisCoordinator struct {
	client   *redis.Client
	lockTTL  time.Duration
	dedupTTL time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCoordinator(client *redis.Client, lockTTL, dedupTTL time.Duration) *RedisCoordinator {
	return &RedisCoordinator{
		client:   client,
		lockTTL:  lockTTL,
		dedupTTL: dedupTTL,
	}
}

// Lock blocks until the lead lock is acquired or ctx ends. The lock expires
// after lockTTL even if unlock is never called.
func (r *RedisCoordinator) Lock(ctx context.Context, userID int64) (func(), error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("lead_lock:%d", userID)
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lead lock: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lead %d: %v", domain.ErrLockTimeout, userID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisCoordinator) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%d", userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// SeenUpdate records updateID and reports whether it was already processed.
func (r *RedisCoordinator) SeenUpdate(ctx context.Context, updateID int) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := r.client.SetNX(ctx, fmt.Sprintf("update:%d", updateID), 1, r.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record update: %w", err)
	}
	return !ok, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errors.New("redis client is nil")
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
