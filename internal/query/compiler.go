package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
	"CVEWatch/internal/textutil"
)

var (
	// ErrEmptyQuestion is returned when there is nothing to compile.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrMalformedSpec marks a generation reply that is not a usable spec.
	ErrMalformedSpec = errors.New("malformed query spec")
)

const compilerSystemPrompt = "You only output valid JSON. No explanation."

const compilerPromptTemplate = `You are a security expert who writes NVD CVE API search queries.
Today is %s. Turn the user's question into exactly this JSON object and nothing else:

{
  "keyword": "search keyword or null",
  "cvssSeverity": "LOW | MEDIUM | HIGH | CRITICAL | null",
  "maxResults": 5,
  "publishedFrom": "YYYY-MM-DD or null",
  "publishedTo": "YYYY-MM-DD or null"
}

Rules:
- keyword: a single product name, technology, or key term.
- cvssSeverity: null when the question does not mention severity.
- maxResults: always a number between 1 and 20.
- Dates: resolve relative phrases ("last year", "past 6 months", "this year", "in 2023") into concrete YYYY-MM-DD dates.
- Never output anything except the JSON object.

User question:
%s`

// Compiler converts questions into QuerySpecs through a ChatClient.
type Compiler struct {
	chat   ports.ChatClient
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.QueryCompiler = (*Compiler)(nil)

// NewCompiler wires a chat client.
func NewCompiler(chat ports.ChatClient, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{chat: chat, logger: logger, now: time.Now}
}

// rawSpec mirrors the five fields the model is asked to emit. Values stay
// untyped so "null" strings and numeric strings can be tolerated.
type rawSpec struct {
	Keyword       any `json:"keyword"`
	CVSSSeverity  any `json:"cvssSeverity"`
	MaxResults    any `json:"maxResults"`
	PublishedFrom any `json:"publishedFrom"`
	PublishedTo   any `json:"publishedTo"`
}

// Compile asks the model for a spec. A reply that is empty or not JSON is an
// error; individual fields that are unusable are treated as absent.
func (c *Compiler) Compile(ctx context.Context, question string) (domain.QuerySpec, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.QuerySpec{}, ErrEmptyQuestion
	}
	if c.chat == nil {
		return domain.QuerySpec{}, fmt.Errorf("query compiler: chat client is not configured")
	}

	prompt := fmt.Sprintf(compilerPromptTemplate, c.now().Format(dateLayout), question)
	reply, err := c.chat.Complete(ctx, compilerSystemPrompt, prompt)
	if err != nil {
		return domain.QuerySpec{}, fmt.Errorf("compile question: %w", err)
	}

	spec, err := ParseSpec(question, reply)
	if err != nil {
		c.logger.Warn("unusable query spec reply", "reply", textutil.Truncate(reply, 500), "error", err)
		return domain.QuerySpec{}, err
	}

	c.logger.Debug("compiled query spec", "question", question, "query", Build(spec))
	return spec, nil
}

// ParseSpec decodes a model reply into a QuerySpec.
func ParseSpec(question, reply string) (domain.QuerySpec, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.QuerySpec{}, fmt.Errorf("%w: empty reply", ErrMalformedSpec)
	}

	object, err := textutil.ExtractJSONObject(reply)
	if err != nil {
		return domain.QuerySpec{}, fmt.Errorf("%w: %v", ErrMalformedSpec, err)
	}

	var raw rawSpec
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return domain.QuerySpec{}, fmt.Errorf("%w: %v", ErrMalformedSpec, err)
	}

	var severity *domain.Severity
	if label := stringField(raw.CVSSSeverity); label != nil {
		if s, ok := domain.ParseSeverity(*label); ok {
			severity = &s
		}
	}

	return domain.NewQuerySpec(
		question,
		stringField(raw.Keyword),
		severity,
		intField(raw.MaxResults),
		dateField(raw.PublishedFrom),
		dateField(raw.PublishedTo),
	), nil
}

func stringField(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func intField(v any) int {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0
		}
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func dateField(v any) *time.Time {
	s := stringField(v)
	if s == nil {
		return nil
	}
	parsed, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &parsed
}
