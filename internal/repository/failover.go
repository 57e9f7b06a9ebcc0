package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"admissionsbot/internal/domain"

	"github.com/rs/zerolog"
)

// Coordinator is implemented by both the Redis and the memory backends.
type Coordinator interface {
	domain.LeadLocker
	domain.Guard
}

// FailoverCoordinator uses Redis while it is healthy and the in-process
// backend otherwise, retrying Redis once a minute.
type FailoverCoordinator struct {
	primary   Coordinator
	fallback  Coordinator
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverCoordinator(primary, fallback Coordinator, logger *zerolog.Logger) *FailoverCoordinator {
	return &FailoverCoordinator{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to Redis.
func (r *FailoverCoordinator) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	// Try to recover after 1 minute
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverCoordinator) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Redis coordinator failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverCoordinator) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Redis coordinator recovered")
	}
}

// Lock always takes the in-process lock first so that work inside this
// process stays serialized across a Redis outage, then the shared lock.
func (r *FailoverCoordinator) Lock(ctx context.Context, userID int64) (func(), error) {
	unlockLocal, err := r.fallback.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !r.usePrimary() {
		return unlockLocal, nil
	}

	unlockShared, err := r.primary.Lock(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			unlockLocal()
			return nil, err
		}
		r.markDown(err)
		return unlockLocal, nil
	}
	r.markUp()

	return func() {
		unlockShared()
		unlockLocal()
	}, nil
}

func (r *FailoverCoordinator) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}

func (r *FailoverCoordinator) SeenUpdate(ctx context.Context, updateID int) (bool, error) {
	if r.usePrimary() {
		seen, err := r.primary.SeenUpdate(ctx, updateID)
		if err == nil {
			r.markUp()
			return seen, nil
		}
		r.markDown(err)
	}

	return r.fallback.SeenUpdate(ctx, updateID)
}
