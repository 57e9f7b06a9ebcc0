package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"admissionsbot/internal/domain"
)

// MemoryCoordinator is the in-process counterpart of RedisCoordinator.
type MemoryCoordinator struct {
	mu         sync.Mutex
	locks      map[int64]chan struct{}
	rateLimits map[int64]*rateLimitEntry
	updates    map[int]time.Time
	dedupTTL   time.Duration
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryCoordinator(dedupTTL time.Duration) *MemoryCoordinator {
	return &MemoryCoordinator{
		locks:      make(map[int64]chan struct{}),
		rateLimits: make(map[int64]*rateLimitEntry),
		updates:    make(map[int]time.Time),
		dedupTTL:   dedupTTL,
	}
}

func (r *MemoryCoordinator) slot(userID int64) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[userID] = ch
	}
	return ch
}

func (r *MemoryCoordinator) Lock(ctx context.Context, userID int64) (func(), error) {
	ch := r.slot(userID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-ch })
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: lead %d: %v", domain.ErrLockTimeout, userID, ctx.Err())
	}
}

func (r *MemoryCoordinator) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[userID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

func (r *MemoryCoordinator) SeenUpdate(ctx context.Context, updateID int) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.updates) > 10000 {
		for id, at := range r.updates {
			if now.Sub(at) > r.dedupTTL {
				delete(r.updates, id)
			}
		}
	}

	if at, ok := r.updates[updateID]; ok && now.Sub(at) <= r.dedupTTL {
		return true, nil
	}
	r.updates[updateID] = now
	return false, nil
}
