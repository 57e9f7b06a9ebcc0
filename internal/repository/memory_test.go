package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"admissionsbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCoordinator_Lock(t *testing.T) {
	repo := NewMemoryCoordinator(time.Minute)
	ctx := context.Background()

	unlock, err := repo.Lock(ctx, 1)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = repo.Lock(waitCtx, 1)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	unlock()
	unlock() // double unlock is harmless

	unlock, err = repo.Lock(ctx, 1)
	require.NoError(t, err)
	unlock()
}

func TestMemoryCoordinator_LockSerializes(t *testing.T) {
	repo := NewMemoryCoordinator(time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := repo.Lock(ctx, 42)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestMemoryCoordinator_RateLimit(t *testing.T) {
	repo := NewMemoryCoordinator(time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 1, 2, 50*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := repo.CheckRateLimit(ctx, 1, 2, 50*time.Millisecond)
	assert.False(t, allowed)

	time.Sleep(60 * time.Millisecond)
	allowed, _ = repo.CheckRateLimit(ctx, 1, 2, 50*time.Millisecond)
	assert.True(t, allowed)
}

func TestMemoryCoordinator_SeenUpdate(t *testing.T) {
	repo := NewMemoryCoordinator(50 * time.Millisecond)
	ctx := context.Background()

	seen, _ := repo.SeenUpdate(ctx, 1)
	assert.False(t, seen)
	seen, _ = repo.SeenUpdate(ctx, 1)
	assert.True(t, seen)

	time.Sleep(60 * time.Millisecond)
	seen, _ = repo.SeenUpdate(ctx, 1)
	assert.False(t, seen)
}
