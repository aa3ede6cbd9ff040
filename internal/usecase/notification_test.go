package usecase

import (
	"strings"
	"testing"
	"time"

	"CVEWatch/internal/domain"
)

func TestFormatScore(t *testing.T) {
	t.Parallel()

	score := 5.0
	medium := domain.SeverityMedium

	cases := []struct {
		name string
		in   *domain.SeverityInfo
		want string
	}{
		{"nil", nil, "no data"},
		{"empty", &domain.SeverityInfo{}, "no data"},
		{"full", &domain.SeverityInfo{Score: &score, Severity: &medium, SchemaVersion: "2.0", Vector: "AV:N/AC:L/Au:N/C:P/I:N/A:N"}, "5.0 MEDIUM · CVSS 2.0 · AV:N/AC:L/Au:N/C:P/I:N/A:N"},
		{"vector only", &domain.SeverityInfo{Vector: "CVSS:3.1/AV:N"}, "CVSS:3.1/AV:N"},
	}

	for _, tc := range cases {
		if got := FormatScore(tc.in); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestBuildNotification(t *testing.T) {
	t.Parallel()

	item := domain.AdvisoryItem{
		ID:    "https://nvd.nist.gov/vuln/detail/CVE-2099-0001",
		CVEID: "CVE-2099-0001",
		Link:  "https://nvd.nist.gov/vuln/detail/CVE-2099-0001",
	}
	now := time.Date(2099, time.January, 1, 0, 0, 0, 0, time.UTC)
	tr := domain.TranslationResult{TitleLocal: "제목", DescriptionLocal: strings.Repeat("가", 5000), Summary: "요약"}

	n := BuildNotification(item, nil, tr, now)
	if n.Title != "🧨 CVE-2099-0001: 제목" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	if n.Published != "unknown" {
		t.Fatalf("missing publish date should render as unknown, got %q", n.Published)
	}
	if len([]rune(n.Description)) != 4096 {
		t.Fatalf("description should be truncated to 4096 runes, got %d", len([]rune(n.Description)))
	}
	if n.Color != domain.ColorGray || n.Score != "no data" || !n.Timestamp.Equal(now) {
		t.Fatalf("unexpected rendering: %+v", n)
	}
}
