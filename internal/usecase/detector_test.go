package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"CVEWatch/internal/domain"
)

func advisory(id string) *domain.AdvisoryItem {
	return &domain.AdvisoryItem{
		ID:          id,
		CVEID:       domain.ExtractCVEID(id),
		Title:       domain.ExtractCVEID(id) + " (acme)",
		Link:        id,
		PublishedAt: "Fri, 02 Jan 2099 00:00:00 GMT",
		Description: "overflow",
	}
}

func TestPollFirstRunSeedsWithoutNotifying(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	notifier := &fakeNotifier{}
	translator := &fakeTranslator{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, translator, notifier)

	outcome, err := d.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if outcome != OutcomeSeeded {
		t.Fatalf("expected seeded, got %s", outcome)
	}
	if notifier.count() != 0 || translator.calls != 0 {
		t.Fatalf("first run must not notify or translate")
	}
	if store.currentID() != "https://x/CVE-2099-0001" {
		t.Fatalf("store not seeded: %q", store.currentID())
	}
}

func TestPollUnchangedIsNoop(t *testing.T) {
	t.Parallel()

	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/CVE-2099-0001"}}
	notifier := &fakeNotifier{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, notifier)

	outcome, err := d.Poll(context.Background())
	if err != nil || outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s / %v", outcome, err)
	}
	if notifier.count() != 0 || store.setCalls != 0 {
		t.Fatalf("unchanged cycle must not notify or write")
	}
}

func TestPollChangedNotifiesThenAdvances(t *testing.T) {
	t.Parallel()

	score := 9.8
	sev := domain.SeverityCritical
	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"}}
	enricher := &fakeEnricher{info: &domain.SeverityInfo{Score: &score, Severity: &sev, SchemaVersion: "3.1", Vector: "AV:N"}}
	notifier := &fakeNotifier{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, enricher, &fakeTranslator{}, notifier)

	outcome, err := d.Poll(context.Background())
	if err != nil || outcome != OutcomeNotified {
		t.Fatalf("expected notified, got %s / %v", outcome, err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", notifier.count())
	}
	if store.currentID() != "https://x/CVE-2099-0001" {
		t.Fatalf("store should advance to new id, got %q", store.currentID())
	}
	if len(enricher.calls) != 1 || enricher.calls[0] != "CVE-2099-0001" {
		t.Fatalf("enricher should be queried by CVE id: %v", enricher.calls)
	}

	n := notifier.sent[0]
	if n.Color != domain.ColorDarkRed {
		t.Fatalf("unexpected color %#x", n.Color)
	}
	if !strings.HasPrefix(n.Score, "9.8 CRITICAL") {
		t.Fatalf("unexpected score field %q", n.Score)
	}
	if n.URL != "https://x/CVE-2099-0001" {
		t.Fatalf("unexpected url %q", n.URL)
	}
}

func TestPollDispatchFailureKeepsOldID(t *testing.T) {
	t.Parallel()

	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"}}
	notifier := &fakeNotifier{err: errBoom}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, notifier)

	outcome, err := d.Poll(context.Background())
	if !errors.Is(err, errBoom) || outcome != OutcomeFailed {
		t.Fatalf("expected dispatch failure, got %s / %v", outcome, err)
	}
	if store.currentID() != "https://x/CVE-2099-0000" || store.setCalls != 0 {
		t.Fatalf("store must be unchanged after failed dispatch")
	}

	notifier.mu.Lock()
	notifier.err = nil
	notifier.mu.Unlock()

	outcome, err = d.Poll(context.Background())
	if err != nil || outcome != OutcomeNotified {
		t.Fatalf("retry on next cycle should deliver, got %s / %v", outcome, err)
	}
	if store.currentID() != "https://x/CVE-2099-0001" {
		t.Fatalf("store should advance after successful retry")
	}
}

func TestPollTranslationFailureStillDispatches(t *testing.T) {
	t.Parallel()

	failed := domain.FailedTranslation()
	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"}}
	notifier := &fakeNotifier{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{result: &failed}, notifier)

	if _, err := d.Poll(context.Background()); err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected notification despite translation failure")
	}
	n := notifier.sent[0]
	if n.Summary != domain.TranslationFailedSummary || n.Score != "no data" || n.Color != domain.ColorGray {
		t.Fatalf("unexpected placeholder rendering: %+v", n)
	}
}

func TestPollStateWriteRetriesThenSurfaces(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		record:  &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"},
		setErrs: []error{errBoom, errBoom, errBoom},
	}
	notifier := &fakeNotifier{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, notifier)

	_, err := d.Poll(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected state write error to surface, got %v", err)
	}
	if store.setCalls != 3 {
		t.Fatalf("expected 3 write attempts, got %d", store.setCalls)
	}
	if notifier.count() != 1 {
		t.Fatalf("notification was sent before the write failed")
	}
}

func TestPollStateWriteRecoversOnRetry(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		record:  &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"},
		setErrs: []error{errBoom},
	}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, &fakeNotifier{})

	outcome, err := d.Poll(context.Background())
	if err != nil || outcome != OutcomeNotified {
		t.Fatalf("expected recovery, got %s / %v", outcome, err)
	}
	if store.currentID() != "https://x/CVE-2099-0001" {
		t.Fatalf("store should hold new id")
	}
}

func TestPollAdvancesStateWhenCallerCancelsAfterDelivery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/CVE-2099-0000"}, checkCtx: true}
	notifier := &fakeNotifier{published: cancel}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, notifier)

	outcome, err := d.Poll(ctx)
	if err != nil || outcome != OutcomeNotified {
		t.Fatalf("expected notified despite cancelled caller, got %s / %v", outcome, err)
	}
	if store.currentID() != "https://x/CVE-2099-0001" {
		t.Fatalf("store should advance after delivery, got %q", store.currentID())
	}

	outcome, err = d.Poll(context.Background())
	if err != nil || outcome != OutcomeUnchanged || notifier.count() != 1 {
		t.Fatalf("next cycle must not resend, got %s / %v, sent=%d", outcome, err, notifier.count())
	}
}

func TestPollEmptyFeedAndTransportFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	d := newTestDetector(&fakeFeed{}, store, &fakeEnricher{}, &fakeTranslator{}, &fakeNotifier{})
	outcome, err := d.Poll(context.Background())
	if err != nil || outcome != OutcomeEmpty {
		t.Fatalf("expected empty, got %s / %v", outcome, err)
	}
	if store.setCalls != 0 {
		t.Fatalf("empty feed must not seed")
	}

	d = newTestDetector(&fakeFeed{err: errBoom}, store, &fakeEnricher{}, &fakeTranslator{}, &fakeNotifier{})
	outcome, err = d.Poll(context.Background())
	if !errors.Is(err, errBoom) || outcome != OutcomeFailed {
		t.Fatalf("expected transport failure, got %s / %v", outcome, err)
	}
}

func TestPollIdentityIsCaseSensitive(t *testing.T) {
	t.Parallel()

	store := &fakeStore{record: &domain.LastSeenRecord{ID: "https://x/cve-2099-0001"}}
	notifier := &fakeNotifier{}
	d := newTestDetector(&fakeFeed{head: advisory("https://x/CVE-2099-0001")}, store, &fakeEnricher{}, &fakeTranslator{}, notifier)

	outcome, err := d.Poll(context.Background())
	if err != nil || outcome != OutcomeNotified {
		t.Fatalf("links differing in case are different items, got %s / %v", outcome, err)
	}
}

func TestPollRejectsConcurrentCycle(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		head:    advisory("https://x/CVE-2099-0001"),
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	store := &fakeStore{}
	d := newTestDetector(feed, store, &fakeEnricher{}, &fakeTranslator{}, &fakeNotifier{})

	done := make(chan error, 1)
	go func() {
		_, err := d.Poll(context.Background())
		done <- err
	}()

	select {
	case <-feed.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first cycle never started")
	}

	outcome, err := d.Poll(context.Background())
	if !errors.Is(err, ErrCycleInProgress) || outcome != OutcomeSkipped {
		t.Fatalf("expected skipped cycle, got %s / %v", outcome, err)
	}

	close(feed.block)
	if err := <-done; err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if store.setCalls != 1 {
		t.Fatalf("only the first cycle may write, got %d writes", store.setCalls)
	}
}
