package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"admissionsbot/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCoordinator struct {
	mock.Mock
}

func (m *mockCoordinator) Lock(ctx context.Context, userID int64) (func(), error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func (m *mockCoordinator) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *mockCoordinator) SeenUpdate(ctx context.Context, updateID int) (bool, error) {
	args := m.Called(ctx, updateID)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCoordinator_RateLimit(t *testing.T) {
	primary := new(mockCoordinator)
	fallback := new(mockCoordinator)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCoordinator(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, 1, 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, int64(2), 5, time.Minute).Return(false, errors.New("connection refused")).Once()
		fallback.On("CheckRateLimit", ctx, int64(2), 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, 2, 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("SeenUpdate", ctx, 77).Return(false, nil).Once()

		seen, err := repo.SeenUpdate(ctx, 77)
		require.NoError(t, err)
		assert.False(t, seen)
		primary.AssertNotCalled(t, "SeenUpdate", ctx, 77)
	})

	t.Run("RecoversAfterAMinute", func(t *testing.T) {
		repo.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { repo.now = time.Now }()

		primary.On("SeenUpdate", ctx, 78).Return(true, nil).Once()

		seen, err := repo.SeenUpdate(ctx, 78)
		require.NoError(t, err)
		assert.True(t, seen)
		assert.False(t, repo.isDown.Load())
	})
}

func TestFailoverCoordinator_Lock(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("TakesBothLocks", func(t *testing.T) {
		primary := new(mockCoordinator)
		local := NewMemoryCoordinator(time.Minute)
		repo := NewFailoverCoordinator(primary, local, &logger)

		released := false
		primary.On("Lock", ctx, int64(1)).Return(func() { released = true }, nil).Once()

		unlock, err := repo.Lock(ctx, 1)
		require.NoError(t, err)

		// local lock is held as well
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = local.Lock(waitCtx, 1)
		assert.ErrorIs(t, err, domain.ErrLockTimeout)

		unlock()
		assert.True(t, released)
	})

	t.Run("RedisErrorKeepsLocalLock", func(t *testing.T) {
		primary := new(mockCoordinator)
		local := NewMemoryCoordinator(time.Minute)
		repo := NewFailoverCoordinator(primary, local, &logger)

		primary.On("Lock", ctx, int64(1)).Return(nil, errors.New("redis down")).Once()

		unlock, err := repo.Lock(ctx, 1)
		require.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		unlock()

		// while down only the local lock is used
		unlock, err = repo.Lock(ctx, 1)
		require.NoError(t, err)
		unlock()
		primary.AssertNumberOfCalls(t, "Lock", 1)
	})

	t.Run("ContentionIsNotAnOutage", func(t *testing.T) {
		primary := new(mockCoordinator)
		local := NewMemoryCoordinator(time.Minute)
		repo := NewFailoverCoordinator(primary, local, &logger)

		primary.On("Lock", ctx, int64(1)).Return(nil, domain.ErrLockTimeout).Once()

		_, err := repo.Lock(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrLockTimeout)
		assert.False(t, repo.isDown.Load())

		// local lock was released
		unlock, err := local.Lock(ctx, 1)
		require.NoError(t, err)
		unlock()
	})
}
