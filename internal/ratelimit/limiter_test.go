package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstWaitIsImmediate(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Hour)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_SpacesConsecutiveGrants(t *testing.T) {
	t.Parallel()
	l := NewLimiter(40 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	granted, waited := l.Stats()
	assert.Equal(t, int64(3), granted)
	assert.Greater(t, waited, time.Duration(0))
}

func TestLimiter_ElapsedWorkCountsTowardSpacing(t *testing.T) {
	t.Parallel()
	l := NewLimiter(50 * time.Millisecond)

	require.NoError(t, l.Wait(context.Background()))
	time.Sleep(60 * time.Millisecond) // request took longer than the interval

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_Reset(t *testing.T) {
	t.Parallel()
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	l.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Wait(ctx))
}

func TestNewLimiter_ClampsNegativeInterval(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 250*time.Millisecond, NewLimiter(250*time.Millisecond).Interval())
	assert.Equal(t, time.Duration(0), NewLimiter(-time.Second).Interval())

	l := NewLimiter(-time.Second)
	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	granted, waited := l.Stats()
	assert.Equal(t, int64(2), granted)
	assert.Equal(t, time.Duration(0), waited)
}
