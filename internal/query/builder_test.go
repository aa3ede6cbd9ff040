package query

import (
	"testing"
	"time"

	"CVEWatch/internal/domain"
)

func strPtr(s string) *string { return &s }

func sevPtr(s domain.Severity) *domain.Severity { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBuildFullSpecKeepsParameterOrder(t *testing.T) {
	t.Parallel()

	spec := domain.QuerySpec{
		Keyword:       strPtr("chrome"),
		Severity:      sevPtr(domain.Severity("critical")),
		MaxResults:    7,
		PublishedFrom: datePtr(2024, time.January, 1),
		PublishedTo:   datePtr(2024, time.March, 31),
		RawQuestion:   "critical chrome bugs in Q1 2024",
	}

	want := "keywordSearch=chrome" +
		"&cvssV3Severity=CRITICAL" +
		"&pubStartDate=2024-01-01T00%3A00%3A00.000" +
		"&pubEndDate=2024-03-31T23%3A59%3A59.999" +
		"&resultsPerPage=7"

	if got := Build(spec); got != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", got, want)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	spec := domain.NewQuerySpec("openssl", strPtr("openssl"), sevPtr(domain.SeverityHigh), 3, datePtr(2023, time.June, 1), nil)
	first := Build(spec)
	for i := 0; i < 50; i++ {
		if got := Build(spec); got != first {
			t.Fatalf("build not deterministic: %s vs %s", got, first)
		}
	}
}

func TestBuildMaxResultsClamp(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		0:  "keywordSearch=nginx&resultsPerPage=5",
		37: "keywordSearch=nginx&resultsPerPage=20",
		5:  "keywordSearch=nginx&resultsPerPage=5",
	}
	for in, want := range cases {
		spec := domain.QuerySpec{Keyword: strPtr("nginx"), MaxResults: in}
		if got := Build(spec); got != want {
			t.Fatalf("maxResults=%d: expected %s, got %s", in, want, got)
		}
	}
}

func TestBuildFallsBackToRawQuestion(t *testing.T) {
	t.Parallel()

	spec := domain.QuerySpec{MaxResults: 12, RawQuestion: "apache struts rce"}
	got := Build(spec)
	if got != "keywordSearch=apache+struts+rce&resultsPerPage=5" {
		t.Fatalf("unexpected fallback: %s", got)
	}
}

func TestBuildIgnoresUnknownSeverityAndBlankKeyword(t *testing.T) {
	t.Parallel()

	spec := domain.QuerySpec{
		Keyword:     strPtr("   "),
		Severity:    sevPtr(domain.SeverityUnknown),
		MaxResults:  4,
		RawQuestion: "",
	}
	if got := Build(spec); got != "resultsPerPage=4" {
		t.Fatalf("unexpected query: %s", got)
	}
}
