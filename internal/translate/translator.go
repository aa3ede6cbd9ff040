package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
	"CVEWatch/internal/textutil"
)

const defaultLanguage = "Korean"

const systemPromptTemplate = `You are a security analyst who translates vulnerability advisories into %[1]s.
Reply with one JSON object and nothing else:
{"title": "<title in %[1]s>", "description": "<description in %[1]s>", "summary": "<one or two sentence impact summary in %[1]s>"}`

const userPromptTemplate = `Identifier: %s
Title: %s
Published: %s
Description: %s`

// Translator localizes advisories with a ChatClient and falls back to the
// sentinel result on any failure.
type Translator struct {
	chat     ports.ChatClient
	language string
	logger   *slog.Logger
	onFail   func()
}

var _ ports.Translator = (*Translator)(nil)

// Option customizes a Translator.
type Option func(*Translator)

// WithLanguage sets the target language name used in the prompt.
func WithLanguage(language string) Option {
	return func(t *Translator) {
		if strings.TrimSpace(language) != "" {
			t.language = strings.TrimSpace(language)
		}
	}
}

// WithFailureHook registers a callback run each time the sentinel is returned.
func WithFailureHook(hook func()) Option {
	return func(t *Translator) { t.onFail = hook }
}

// New builds a translator.
func New(chat ports.ChatClient, logger *slog.Logger, opts ...Option) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Translator{chat: chat, language: defaultLanguage, logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type reply struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
}

// Translate never returns an error; failures yield domain.FailedTranslation.
func (t *Translator) Translate(ctx context.Context, item domain.AdvisoryItem) domain.TranslationResult {
	if t.chat == nil {
		return t.fail(item, fmt.Errorf("chat client is not configured"))
	}

	raw, err := t.chat.Complete(ctx, fmt.Sprintf(systemPromptTemplate, t.language), BuildPrompt(item))
	if err != nil {
		return t.fail(item, fmt.Errorf("generation call: %w", err))
	}

	result, err := ParseReply(raw)
	if err != nil {
		return t.fail(item, err)
	}
	return result
}

// BuildPrompt renders the fixed user prompt for an advisory.
func BuildPrompt(item domain.AdvisoryItem) string {
	published := item.PublishedAt
	if published == "" {
		published = "unknown"
	}
	return fmt.Sprintf(userPromptTemplate,
		item.DisplayID(),
		textutil.CollapseSpaces(item.Title),
		published,
		textutil.CollapseSpaces(item.Description),
	)
}

// ParseReply decodes the three-field JSON contract.
func ParseReply(raw string) (domain.TranslationResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.TranslationResult{}, fmt.Errorf("empty reply")
	}

	object, err := textutil.ExtractJSONObject(raw)
	if err != nil {
		return domain.TranslationResult{}, err
	}

	var r reply
	if err := json.Unmarshal([]byte(object), &r); err != nil {
		return domain.TranslationResult{}, fmt.Errorf("decode reply: %w", err)
	}

	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Summary = strings.TrimSpace(r.Summary)
	if r.Title == "" || r.Description == "" || r.Summary == "" {
		return domain.TranslationResult{}, fmt.Errorf("reply is missing fields")
	}

	return domain.TranslationResult{
		TitleLocal:       r.Title,
		DescriptionLocal: r.Description,
		Summary:          r.Summary,
	}, nil
}

func (t *Translator) fail(item domain.AdvisoryItem, err error) domain.TranslationResult {
	t.logger.Warn("translation failed, using placeholder", "advisory", item.DisplayID(), "error", err)
	if t.onFail != nil {
		t.onFail()
	}
	return domain.FailedTranslation()
}
