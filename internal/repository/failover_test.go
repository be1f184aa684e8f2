package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetDay(ctx context.Context, roomID int64, date time.Time) (models.DayOccupancy, bool, error) {
	args := m.Called(ctx, roomID, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(models.DayOccupancy), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetDay(ctx context.Context, roomID int64, date time.Time, day models.DayOccupancy) error {
	args := m.Called(ctx, roomID, date, day)
	return args.Error(0)
}

func (m *mockCache) InvalidateDays(ctx context.Context, roomID int64, dates []time.Time) error {
	args := m.Called(ctx, roomID, dates)
	return args.Error(0)
}

func TestFailoverOccupancyCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverOccupancyCache(primary, fallback, &logger)
	ctx := context.Background()
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetDay", ctx, int64(1), date).Return(sampleDay(), true, nil).Once()

		got, ok, err := cache.GetDay(ctx, 1, date)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sampleDay(), got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("GetDay", ctx, int64(2), date).Return(nil, false, errors.New("fail")).Once()
		fallback.On("GetDay", ctx, int64(2), date).Return(sampleDay(), true, nil).Once()

		got, ok, err := cache.GetDay(ctx, 2, date)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sampleDay(), got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("NoProbeBeforeInterval", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now()
		fallback.On("GetDay", ctx, int64(22), date).Return(nil, false, nil).Once()

		_, ok, err := cache.GetDay(ctx, 22, date)
		assert.NoError(t, err)
		assert.False(t, ok)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "GetDay", ctx, int64(22), date)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("GetDay", ctx, int64(3), date).Return(sampleDay(), true, nil).Once()

		_, ok, err := cache.GetDay(ctx, 3, date)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("GetDay", ctx, int64(33), date).Return(nil, false, errors.New("still fail")).Once()
		fallback.On("GetDay", ctx, int64(33), date).Return(nil, false, nil).Once()

		_, _, err := cache.GetDay(ctx, 33, date)
		assert.NoError(t, err)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDaySuccess", func(t *testing.T) {
		cache.isDown.Store(false)
		primary.On("SetDay", ctx, int64(4), date, sampleDay()).Return(nil).Once()

		assert.NoError(t, cache.SetDay(ctx, 4, date, sampleDay()))
		primary.AssertExpectations(t)
	})

	t.Run("SetDayFailover", func(t *testing.T) {
		cache.isDown.Store(false)
		primary.On("SetDay", ctx, int64(5), date, sampleDay()).Return(errors.New("fail")).Once()
		fallback.On("SetDay", ctx, int64(5), date, sampleDay()).Return(nil).Once()

		assert.NoError(t, cache.SetDay(ctx, 5, date, sampleDay()))
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDayAlreadyDown", func(t *testing.T) {
		cache.isDown.Store(true)
		fallback.On("SetDay", ctx, int64(6), date, sampleDay()).Return(nil).Once()

		assert.NoError(t, cache.SetDay(ctx, 6, date, sampleDay()))
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateClearsBoth", func(t *testing.T) {
		cache.isDown.Store(false)
		dates := []time.Time{date}
		primary.On("InvalidateDays", ctx, int64(7), dates).Return(nil).Once()
		fallback.On("InvalidateDays", ctx, int64(7), dates).Return(nil).Once()

		assert.NoError(t, cache.InvalidateDays(ctx, 7, dates))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidatePrimaryFails", func(t *testing.T) {
		cache.isDown.Store(false)
		dates := []time.Time{date}
		primary.On("InvalidateDays", ctx, int64(8), dates).Return(errors.New("fail")).Once()
		fallback.On("InvalidateDays", ctx, int64(8), dates).Return(nil).Once()

		assert.NoError(t, cache.InvalidateDays(ctx, 8, dates))
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
