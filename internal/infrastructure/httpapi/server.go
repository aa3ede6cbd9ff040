package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/usecase"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 3 * time.Minute
	idleTimeout  = 120 * time.Second
	pingTimeout  = 3 * time.Second

	requestIDHeader = "X-Request-ID"
)

var releaseMode sync.Once

// Poller triggers one detection cycle.
type Poller interface {
	Poll(ctx context.Context) (usecase.Outcome, error)
}

// Answerer runs the on-demand search pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) usecase.Reply
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the HTTP surface to the application.
type Deps struct {
	Port    int
	Poller  Poller
	Search  Answerer
	Health  Pinger
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server exposes health, metrics, search and manual poll endpoints.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer builds the gin engine and the HTTP listener.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	releaseMode.Do(func() { gin.SetMode(gin.ReleaseMode) })
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLog(logger))

	h := &handlers{deps: deps, logger: logger}
	router.GET("/health", h.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/search", h.search)
	v1.POST("/poll", h.poll)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", deps.Port),
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: logger,
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Summary     string `json:"summary"`
	Score       string `json:"score"`
	Published   string `json:"published"`
}

type searchResponse struct {
	RequestID string         `json:"requestId"`
	Status    string         `json:"status"`
	Query     string         `json:"query,omitempty"`
	Message   string         `json:"message"`
	Results   []searchResult `json:"results"`
}

func (h *handlers) search(c *gin.Context) {
	question := strings.TrimSpace(c.Query("question"))
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	if h.deps.Search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	reply := h.deps.Search.Answer(c.Request.Context(), question)
	resp := searchResponse{
		RequestID: c.GetString(requestIDHeader),
		Status:    string(reply.Status),
		Query:     reply.Query,
		Message:   reply.Message,
		Results:   toResults(reply.Notifications),
	}

	status := http.StatusOK
	if reply.Status == usecase.ReplyError {
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}

func toResults(notifications []domain.Notification) []searchResult {
	results := make([]searchResult, 0, len(notifications))
	for _, n := range notifications {
		results = append(results, searchResult{
			Title:       n.Title,
			URL:         n.URL,
			Description: n.Description,
			Color:       n.Color,
			Summary:     n.Summary,
			Score:       n.Score,
			Published:   n.Published,
		})
	}
	return results
}

func (h *handlers) poll(c *gin.Context) {
	if h.deps.Poller == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "poller is not configured"})
		return
	}

	outcome, err := h.deps.Poller.Poll(c.Request.Context())
	switch {
	case errors.Is(err, usecase.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"outcome": outcome, "error": err.Error()})
	case err != nil:
		h.logger.Error("manual poll failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"outcome": outcome, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"outcome": outcome})
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader),
		)
	}
}
