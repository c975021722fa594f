package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

func TestIntervalSchedulerTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := NewIntervalScheduler(10*time.Millisecond, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))
	require.NoError(t, s.Start(context.Background(), func(time.Time) { t.Error("second start must not register a job") }))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no ticks after Stop")
	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalSchedulerStopWaitsForJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewIntervalScheduler(time.Hour, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	close(release)
	assert.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}

func TestIntervalSchedulerRejectsZeroInterval(t *testing.T) {
	t.Parallel()

	err := NewIntervalScheduler(0, false).Start(context.Background(), func(time.Time) {})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
