package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/metrics"
	"CVEWatch/internal/ports"
)

// ErrCycleInProgress is returned when a poll is requested while another runs.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// Outcome describes what a poll cycle did.
type Outcome string

const (
	OutcomeEmpty     Outcome = "empty"
	OutcomeSeeded    Outcome = "seeded"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNotified  Outcome = "notified"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Timeouts bounds each external call made during a cycle. Zero disables the bound.
type Timeouts struct {
	Feed       time.Duration
	Enrichment time.Duration
	Generation time.Duration
	Notify     time.Duration
	State      time.Duration
}

// DetectorDeps wires all driven adapters into the change detector.
type DetectorDeps struct {
	Feed       ports.FeedSource
	Store      ports.StateStore
	Enricher   ports.Enricher
	Translator ports.Translator
	Notifier   ports.Notifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Timeouts   Timeouts
	// StateRetries is the number of attempts for the last-seen write after a
	// successful dispatch.
	StateRetries uint
}

// Detector compares the feed head with the stored last-seen id and notifies
// on change. Delivery is at-least-once: the id only advances after dispatch.
type Detector struct {
	feed       ports.FeedSource
	store      ports.StateStore
	enricher   ports.Enricher
	translator ports.Translator
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeouts   Timeouts
	retries    uint
	backoff    func() backoff.BackOff
	now        func() time.Time

	inFlight sync.Mutex
}

// NewDetector constructs the change detector.
func NewDetector(deps DetectorDeps) *Detector {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := deps.StateRetries
	if retries == 0 {
		retries = 3
	}
	return &Detector{
		feed:       deps.Feed,
		store:      deps.Store,
		enricher:   deps.Enricher,
		translator: deps.Translator,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		timeouts:   deps.Timeouts,
		retries:    retries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
		now: time.Now,
	}
}

// Poll runs one detection cycle. Concurrent calls do not wait: they return
// ErrCycleInProgress and leave the store untouched.
func (d *Detector) Poll(ctx context.Context) (Outcome, error) {
	if !d.inFlight.TryLock() {
		d.metrics.ObservePoll(string(OutcomeSkipped))
		return OutcomeSkipped, ErrCycleInProgress
	}
	defer d.inFlight.Unlock()

	outcome, err := d.poll(ctx)
	d.metrics.ObservePoll(string(outcome))
	return outcome, err
}

func (d *Detector) poll(ctx context.Context) (Outcome, error) {
	if d.feed == nil || d.store == nil || d.notifier == nil {
		return OutcomeFailed, fmt.Errorf("detector is missing feed, store or notifier")
	}

	head, err := withTimeout(ctx, d.timeouts.Feed, d.feed.FetchHead)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("fetch feed head: %w", err)
	}
	if head == nil {
		d.logger.Debug("feed has no entries")
		return OutcomeEmpty, nil
	}

	record, err := withTimeout(ctx, d.timeouts.State, d.store.Get)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load last seen: %w", err)
	}

	if record == nil {
		if err := d.setState(ctx, head.ID); err != nil {
			return OutcomeFailed, fmt.Errorf("seed last seen: %w", err)
		}
		d.logger.Info("first run, seeded last seen without notifying", "id", head.ID)
		return OutcomeSeeded, nil
	}

	if record.ID == head.ID {
		d.logger.Debug("no new advisory", "id", head.ID)
		return OutcomeUnchanged, nil
	}

	d.logger.Info("new advisory detected", "id", head.ID, "previous", record.ID)

	notification := d.render(ctx, *head)

	dispatchCtx, cancel := boundedContext(ctx, d.timeouts.Notify)
	err = d.notifier.Publish(dispatchCtx, notification)
	cancel()
	d.metrics.ObserveDispatch(err)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("dispatch %s: %w", head.DisplayID(), err)
	}

	// Delivery happened; the caller going away must not block the advance.
	if err := d.setState(context.WithoutCancel(ctx), head.ID); err != nil {
		d.metrics.ObserveStateWriteFailure()
		return OutcomeFailed, fmt.Errorf("advance last seen after dispatch of %s: %w", head.ID, err)
	}

	return OutcomeNotified, nil
}

// render runs enrichment and translation side by side. Both are best-effort
// and never fail the cycle.
func (d *Detector) render(ctx context.Context, item domain.AdvisoryItem) domain.Notification {
	var (
		info        *domain.SeverityInfo
		translation = domain.FailedTranslation()
	)

	g, gctx := errgroup.WithContext(ctx)
	if d.enricher != nil {
		g.Go(func() error {
			lookupCtx, cancel := boundedContext(gctx, d.timeouts.Enrichment)
			defer cancel()
			info = d.enricher.Lookup(lookupCtx, item.CVEID)
			if info == nil {
				d.metrics.ObserveEnrichmentMiss()
			}
			return nil
		})
	}
	if d.translator != nil {
		g.Go(func() error {
			genCtx, cancel := boundedContext(gctx, d.timeouts.Generation)
			defer cancel()
			translation = d.translator.Translate(genCtx, item)
			return nil
		})
	}
	_ = g.Wait()

	return BuildNotification(item, info, translation, d.now())
}

func (d *Detector) setState(ctx context.Context, id string) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		stateCtx, cancel := boundedContext(ctx, d.timeouts.State)
		defer cancel()
		if err := d.store.Set(stateCtx, id); err != nil {
			d.logger.Warn("last seen write failed", "id", id, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(d.backoff()), backoff.WithMaxTries(d.retries))
	return err
}

func boundedContext(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, limit)
}

func withTimeout[T any](ctx context.Context, limit time.Duration, call func(context.Context) (T, error)) (T, error) {
	bounded, cancel := boundedContext(ctx, limit)
	defer cancel()
	return call(bounded)
}
