package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/textutil"
)

const (
	maxTitleRunes       = 256
	maxDescriptionRunes = 4096
	maxFieldRunes       = 1024

	noScoreData   = "no data"
	unknownPublic = "unknown"
)

// BuildNotification renders an advisory with its optional scoring data and
// its translation. The output never depends on whether translation failed.
func BuildNotification(item domain.AdvisoryItem, info *domain.SeverityInfo, tr domain.TranslationResult, now time.Time) domain.Notification {
	title := fmt.Sprintf("🧨 %s: %s", item.DisplayID(), tr.TitleLocal)

	published := strings.TrimSpace(item.PublishedAt)
	if published == "" {
		published = unknownPublic
	}

	return domain.Notification{
		Title:       textutil.Truncate(title, maxTitleRunes),
		URL:         item.Link,
		Description: textutil.Truncate(tr.DescriptionLocal, maxDescriptionRunes),
		Color:       domain.SeverityOf(info).Color(),
		Summary:     textutil.Truncate(tr.Summary, maxFieldRunes),
		Score:       FormatScore(info),
		Published:   published,
		Timestamp:   now,
	}
}

// FormatScore renders score, severity, schema and vector, or "no data".
func FormatScore(info *domain.SeverityInfo) string {
	if info == nil || (info.Score == nil && info.Severity == nil && info.Vector == "") {
		return noScoreData
	}

	parts := make([]string, 0, 3)
	head := make([]string, 0, 2)
	if info.Score != nil {
		head = append(head, strconv.FormatFloat(*info.Score, 'f', 1, 64))
	}
	if info.Severity != nil {
		head = append(head, string(*info.Severity))
	}
	if len(head) > 0 {
		parts = append(parts, strings.Join(head, " "))
	}
	if info.SchemaVersion != "" {
		parts = append(parts, "CVSS "+info.SchemaVersion)
	}
	if info.Vector != "" {
		parts = append(parts, info.Vector)
	}
	return textutil.Truncate(strings.Join(parts, " · "), maxFieldRunes)
}
