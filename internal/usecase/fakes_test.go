package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"CVEWatch/internal/domain"
)

type fakeFeed struct {
	head    *domain.AdvisoryItem
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeFeed) FetchHead(ctx context.Context) (*domain.AdvisoryItem, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.head, f.err
}

func (f *fakeFeed) FetchMany(ctx context.Context, limit int) ([]domain.AdvisoryItem, error) {
	head, err := f.FetchHead(ctx)
	if err != nil || head == nil {
		return nil, err
	}
	return []domain.AdvisoryItem{*head}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	record   *domain.LastSeenRecord
	getErr   error
	setErrs  []error
	setCalls int
	checkCtx bool
}

func (s *fakeStore) Get(context.Context) (*domain.LastSeenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.record == nil {
		return nil, nil
	}
	cp := *s.record
	return &cp, nil
}

func (s *fakeStore) Set(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.checkCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}
	s.record = &domain.LastSeenRecord{ID: id, UpdatedAt: time.Now()}
	return nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) currentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return ""
	}
	return s.record.ID
}

type fakeEnricher struct {
	info  *domain.SeverityInfo
	calls []string
	mu    sync.Mutex
}

func (e *fakeEnricher) Lookup(_ context.Context, cveID string) *domain.SeverityInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cveID)
	return e.info
}

type fakeTranslator struct {
	result *domain.TranslationResult
	calls  int
	mu     sync.Mutex
}

func (t *fakeTranslator) Translate(_ context.Context, item domain.AdvisoryItem) domain.TranslationResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.result == nil {
		return domain.TranslationResult{TitleLocal: "T:" + item.Title, DescriptionLocal: "D", Summary: "S"}
	}
	return *t.result
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []domain.Notification
	err       error
	published func()
}

func (n *fakeNotifier) Publish(_ context.Context, notification domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	if n.published != nil {
		n.published()
	}
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeCompiler struct {
	spec domain.QuerySpec
	err  error
}

func (c *fakeCompiler) Compile(_ context.Context, question string) (domain.QuerySpec, error) {
	if c.err != nil {
		return domain.QuerySpec{}, c.err
	}
	spec := c.spec
	spec.RawQuestion = question
	return spec, nil
}

type fakeSearcher struct {
	hits    []domain.SearchHit
	err     error
	queries []string
}

func (s *fakeSearcher) Search(_ context.Context, q string) ([]domain.SearchHit, error) {
	s.queries = append(s.queries, q)
	return s.hits, s.err
}

var errBoom = errors.New("boom")

func newTestDetector(feed *fakeFeed, store *fakeStore, enricher *fakeEnricher, translator *fakeTranslator, notifier *fakeNotifier) *Detector {
	d := NewDetector(DetectorDeps{
		Feed:       feed,
		Store:      store,
		Enricher:   enricher,
		Translator: translator,
		Notifier:   notifier,
	})
	d.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	d.now = func() time.Time { return time.Date(2099, time.January, 2, 0, 0, 0, 0, time.UTC) }
	return d
}
