package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/metrics"
	"CVEWatch/internal/ports"
	"CVEWatch/internal/query"
)

// ReplyStatus classifies the answer to an on-demand search.
type ReplyStatus string

const (
	ReplyResults   ReplyStatus = "results"
	ReplyNoResults ReplyStatus = "no_results"
	ReplyError     ReplyStatus = "error"
)

// User-facing reply texts.
const (
	MessageNoResults     = "No matching CVEs were found."
	MessageCompileFailed = "Could not understand the question. Please rephrase it."
	MessageSearchFailed  = "An error occurred while searching NVD. Please try again later."
)

// Reply is always produced, whatever happened upstream.
type Reply struct {
	Status        ReplyStatus
	Question      string
	Query         string
	Message       string
	Notifications []domain.Notification
}

// SearchDeps wires adapters for the on-demand search pipeline.
type SearchDeps struct {
	Compiler   ports.QueryCompiler
	Searcher   ports.Searcher
	Translator ports.Translator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Timeouts   Timeouts
}

// SearchService answers free-text questions with rendered advisories.
type SearchService struct {
	compiler   ports.QueryCompiler
	searcher   ports.Searcher
	translator ports.Translator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeouts   Timeouts
	now        func() time.Time
}

// NewSearchService constructs the on-demand pipeline.
func NewSearchService(deps SearchDeps) *SearchService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		compiler:   deps.Compiler,
		searcher:   deps.Searcher,
		translator: deps.Translator,
		metrics:    deps.Metrics,
		logger:     logger,
		timeouts:   deps.Timeouts,
		now:        time.Now,
	}
}

// Answer compiles the question, searches, and renders each hit in order.
// A compile failure stops the pipeline before any search is made.
func (s *SearchService) Answer(ctx context.Context, question string) Reply {
	reply := s.answer(ctx, question)
	s.metrics.ObserveSearch(string(reply.Status))
	return reply
}

func (s *SearchService) answer(ctx context.Context, question string) Reply {
	reply := Reply{Question: question}

	if s.compiler == nil || s.searcher == nil {
		s.logger.Error("search service is not fully configured")
		reply.Status, reply.Message = ReplyError, MessageSearchFailed
		return reply
	}

	spec, err := withTimeout(ctx, s.timeouts.Generation, func(c context.Context) (domain.QuerySpec, error) {
		return s.compiler.Compile(c, question)
	})
	if err != nil {
		s.logger.Warn("compile question failed", "question", question, "error", err)
		reply.Status, reply.Message = ReplyError, MessageCompileFailed
		if errors.Is(err, query.ErrEmptyQuestion) {
			reply.Message = "Please provide a question."
		}
		return reply
	}

	reply.Query = query.Build(spec)
	s.logger.Info("running search", "question", question, "query", reply.Query)

	hits, err := withTimeout(ctx, s.timeouts.Enrichment, func(c context.Context) ([]domain.SearchHit, error) {
		return s.searcher.Search(c, reply.Query)
	})
	if err != nil {
		s.logger.Warn("search failed", "query", reply.Query, "error", err)
		reply.Status, reply.Message = ReplyError, MessageSearchFailed
		return reply
	}

	if len(hits) == 0 {
		reply.Status, reply.Message = ReplyNoResults, MessageNoResults
		return reply
	}

	if len(hits) > spec.MaxResults {
		hits = hits[:spec.MaxResults]
	}

	reply.Notifications = make([]domain.Notification, 0, len(hits))
	for _, hit := range hits {
		translation := domain.FailedTranslation()
		if s.translator != nil {
			translation = func() domain.TranslationResult {
				genCtx, cancel := boundedContext(ctx, s.timeouts.Generation)
				defer cancel()
				return s.translator.Translate(genCtx, hit.Item)
			}()
		}
		reply.Notifications = append(reply.Notifications, BuildNotification(hit.Item, hit.Severity, translation, s.now()))
	}

	reply.Status = ReplyResults
	reply.Message = fmt.Sprintf("%d result(s) for %s", len(reply.Notifications), reply.Query)
	return reply
}
