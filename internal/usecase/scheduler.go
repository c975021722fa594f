package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Scheduler wires the interval driver with the pipeline's scheduled pass.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring passes.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger.With("component", "scheduler")}
}

// Start registers the scheduled pass with the driver. A tick that finds another pass
// running is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(tick time.Time) {
		summary, err := s.pipeline.RunScheduled(ctx)
		switch {
		case errors.Is(err, domain.ErrPassInProgress):
			s.logger.Info("tick skipped, pass already running", "tick", tick)
		case err != nil:
			s.logger.Error("scheduled pass failed", "tick", tick, "error", err)
		default:
			s.logger.Debug("scheduled pass done", "tick", tick, "processed", summary.Processed)
		}
	}

	s.logger.Info("scheduler started")
	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
