package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
	"CVEWatch/internal/textutil"
)

// DefaultURL is the NVD "recent CVEs" RSS feed.
const DefaultURL = "https://nvd.nist.gov/feeds/xml/cve/misc/nvd-rss.xml"

// RSSSource implements FeedSource over an RSS/Atom advisory feed.
type RSSSource struct {
	url             string
	client          *http.Client
	sortByPublished bool
	logger          *slog.Logger
}

var _ ports.FeedSource = (*RSSSource)(nil)

// Options configures the feed source.
type Options struct {
	URL             string
	Timeout         time.Duration
	SortByPublished bool
	Client          *http.Client
}

// NewRSSSource wires an instrumented HTTP client; timeout defaults to 20s.
func NewRSSSource(opts Options, logger *slog.Logger) *RSSSource {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSSource{
		url:             url,
		client:          client,
		sortByPublished: opts.SortByPublished,
		logger:          logger,
	}
}

// FetchHead returns the newest entry, or nil when the feed is empty.
func (s *RSSSource) FetchHead(ctx context.Context) (*domain.AdvisoryItem, error) {
	items, err := s.FetchMany(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FetchMany returns up to limit entries, newest first. limit <= 0 means all.
func (s *RSSSource) FetchMany(ctx context.Context, limit int) ([]domain.AdvisoryItem, error) {
	parser := gofeed.NewParser()
	parser.Client = s.client
	parser.UserAgent = "CVEWatch/1.0"

	parsed, err := parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.url, err)
	}

	items := toAdvisories(parsed.Items)
	if s.sortByPublished {
		sortNewestFirst(items)
	}
	s.logger.Debug("feed fetched", "entries", len(parsed.Items), "usable", len(items))

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func toAdvisories(entries []*gofeed.Item) []domain.AdvisoryItem {
	items := make([]domain.AdvisoryItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			continue
		}

		description := entry.Description
		if description == "" {
			description = entry.Content
		}

		item := domain.AdvisoryItem{
			ID:          link,
			CVEID:       domain.ExtractCVEID(link, entry.Title, entry.GUID),
			Title:       strings.TrimSpace(entry.Title),
			Link:        link,
			PublishedAt: strings.TrimSpace(entry.Published),
			Description: textutil.HTMLToText(description),
		}
		switch {
		case entry.PublishedParsed != nil:
			published := entry.PublishedParsed.UTC()
			item.Published = &published
		case entry.UpdatedParsed != nil:
			updated := entry.UpdatedParsed.UTC()
			item.Published = &updated
			if item.PublishedAt == "" {
				item.PublishedAt = strings.TrimSpace(entry.Updated)
			}
		}
		items = append(items, item)
	}
	return items
}

// sortNewestFirst orders by parsed date; undated entries go last in feed order.
func sortNewestFirst(items []domain.AdvisoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
