package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// IntervalScheduler runs a job on a fixed interval using time.Ticker. The job runs on the
// ticker goroutine, so a slow job delays the next tick instead of overlapping it.
type IntervalScheduler struct {
	interval  time.Duration
	immediate bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; immediate also fires the job once on Start.
func NewIntervalScheduler(interval time.Duration, immediate bool) *IntervalScheduler {
	return &IntervalScheduler{interval: interval, immediate: immediate}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.interval <= 0 {
		return fmt.Errorf("%w: scheduler interval must be positive, got %s", domain.ErrConfiguration, s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if s.immediate {
			job(time.Now())
		}
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for an in-flight job, bounded by ctx.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
