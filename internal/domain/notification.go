package domain

import "time"

// Placeholder text used when translation fails.
const (
	TranslationFailedTitle       = "(translation failed)"
	TranslationFailedDescription = "(translation failed: original text unavailable in target language)"
	TranslationFailedSummary     = "(summary unavailable)"
)

// TranslationResult is the localized rendering of an advisory.
type TranslationResult struct {
	TitleLocal       string
	DescriptionLocal string
	Summary          string
}

// FailedTranslation is returned whenever the generation call cannot be used.
func FailedTranslation() TranslationResult {
	return TranslationResult{
		TitleLocal:       TranslationFailedTitle,
		DescriptionLocal: TranslationFailedDescription,
		Summary:          TranslationFailedSummary,
	}
}

// Failed reports whether r is the sentinel value.
func (r TranslationResult) Failed() bool {
	return r == FailedTranslation()
}

// Notification is a rendered message ready for a dispatcher.
type Notification struct {
	Title       string
	URL         string
	Description string
	Color       int
	Summary     string
	Score       string
	Published   string
	Timestamp   time.Time
}
