package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"CVEWatch/internal/ports"
)

// Scheduler wires the recurring driver with the change detector.
type Scheduler struct {
	driver   ports.Scheduler
	detector *Detector
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring polls.
func NewScheduler(driver ports.Scheduler, detector *Detector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, detector: detector, logger: logger}
}

// Start registers the poll cycle with the provided scheduler. Cycle errors
// are logged; the next tick is the retry.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.detector == nil {
		return nil
	}

	job := func(trigger time.Time) {
		outcome, err := s.detector.Poll(ctx)
		switch {
		case errors.Is(err, ErrCycleInProgress):
			s.logger.Warn("previous poll still running, tick skipped", "trigger", trigger)
		case err != nil:
			s.logger.Error("poll cycle failed", "outcome", outcome, "error", err)
		default:
			s.logger.Debug("poll cycle finished", "outcome", outcome, "trigger", trigger)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
