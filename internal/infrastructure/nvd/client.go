package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
)

// DefaultBaseURL is the NVD CVE API 2.0 endpoint.
const DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// NVD's public quota is counted over a rolling 30 second window.
const rateWindow = 30 * time.Second

// Options configures the NVD client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerWindow overrides the quota; 0 picks 5 without a key and 50 with one.
	RequestsPerWindow int
	Client            *http.Client
}

// Client looks up scoring data and runs searches against the NVD API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var (
	_ ports.Enricher = (*Client)(nil)
	_ ports.Searcher = (*Client)(nil)
)

// NewClient creates a reusable, rate-limited HTTP client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.Client
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	quota := opts.RequestsPerWindow
	if quota <= 0 {
		quota = 5
		if opts.APIKey != "" {
			quota = 50
		}
	}

	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(rateWindow/time.Duration(quota)), quota),
		logger:  logger,
	}
}

// Lookup returns the preferred CVSS data for cveID. Every failure and every
// absence of data yields nil.
func (c *Client) Lookup(ctx context.Context, cveID string) *domain.SeverityInfo {
	cveID = strings.TrimSpace(cveID)
	if cveID == "" {
		return nil
	}

	var resp response
	if err := c.get(ctx, "cveId="+url.QueryEscape(cveID), &resp); err != nil {
		c.logger.Warn("nvd lookup failed", "cve", cveID, "error", err)
		return nil
	}
	if len(resp.Vulnerabilities) == 0 {
		c.logger.Debug("nvd has no record", "cve", cveID)
		return nil
	}

	info := selectSeverity(resp.Vulnerabilities[0].CVE.Metrics)
	if info == nil {
		c.logger.Debug("nvd record has no metrics", "cve", cveID)
	}
	return info
}

// Search runs an already encoded query string and returns hits in API order.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	var resp response
	if err := c.get(ctx, query, &resp); err != nil {
		return nil, fmt.Errorf("search nvd: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		if v.CVE.ID == "" {
			continue
		}
		hits = append(hits, v.CVE.toHit())
	}
	c.logger.Debug("nvd search done", "query", query, "total", resp.TotalResults, "returned", len(hits))
	return hits, nil
}

func (c *Client) get(ctx context.Context, rawQuery string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	target := c.baseURL
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
