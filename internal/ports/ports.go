package ports

import (
	"context"
	"time"

	"CVEWatch/internal/domain"
)

// FeedSource pulls the advisory feed, newest entry first.
type FeedSource interface {
	FetchHead(ctx context.Context) (*domain.AdvisoryItem, error)
	FetchMany(ctx context.Context, limit int) ([]domain.AdvisoryItem, error)
}

// StateStore persists the single last-seen advisory identifier.
type StateStore interface {
	Get(ctx context.Context) (*domain.LastSeenRecord, error)
	Set(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// Enricher resolves scoring data for a CVE identifier; nil means no data.
type Enricher interface {
	Lookup(ctx context.Context, cveID string) *domain.SeverityInfo
}

// Searcher runs a prepared query string against the advisory API.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// Translator localizes an advisory; it never fails.
type Translator interface {
	Translate(ctx context.Context, item domain.AdvisoryItem) domain.TranslationResult
}

// QueryCompiler turns a free-text question into a structured spec.
type QueryCompiler interface {
	Compile(ctx context.Context, question string) (domain.QuerySpec, error)
}

// Notifier delivers a rendered notification to the destination channel.
type Notifier interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// ChatClient sends a system/user prompt pair to a text-generation API and
// returns the raw reply text.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
