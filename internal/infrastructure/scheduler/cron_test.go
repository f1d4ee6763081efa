package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate("0 9 * * 1-5"))
	require.Error(t, Validate("every weekday"))
}

func TestCronSchedulerLifecycle(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)

	s := NewCronScheduler("0 9 * * 1-5", loc, nil)
	assert.True(t, s.Next().IsZero())

	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))
	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 9, next.In(loc).Hour())
	assert.NotEqual(t, time.Saturday, next.In(loc).Weekday())
	assert.NotEqual(t, time.Sunday, next.In(loc).Weekday())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, s.Next().IsZero())
}

func TestCronSchedulerFiresJob(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1s", time.UTC, nil)
	var fired atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { fired.Add(1) }))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.Eventually(t, func() bool { return fired.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("61 * * * *", time.UTC, nil)
	require.Error(t, s.Start(context.Background(), func(time.Time) {}))
	require.NoError(t, s.Start(context.Background(), nil))
}
