package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"CVEWatch/internal/ports"
)

// CronScheduler runs a job on a robfig/cron schedule. Overlapping ticks are
// skipped and panics are recovered.
type CronScheduler struct {
	spec   string
	logger *slog.Logger
	// RunOnStart fires the job once right after Start.
	RunOnStart bool

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a cron spec such as "@every 5m".
func NewCronScheduler(spec string, logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{spec: spec, logger: logger}
}

// Start registers the job and starts the cron loop.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	log := cronLogger{logger: c.logger}
	runner := cron.New(cron.WithLogger(log), cron.WithChain(
		cron.Recover(log),
		cron.SkipIfStillRunning(log),
	))
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}

	runner.Start()
	c.cron = runner
	c.logger.Info("scheduler started", "spec", c.spec)

	if c.RunOnStart {
		go job(time.Now())
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron loop and waits for a running job up to ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
