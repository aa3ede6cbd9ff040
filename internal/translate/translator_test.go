package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"CVEWatch/internal/domain"
)

type stubChat struct {
	reply      string
	err        error
	system     string
	userPrompt string
}

func (s *stubChat) Complete(_ context.Context, system, user string) (string, error) {
	s.system = system
	s.userPrompt = user
	return s.reply, s.err
}

var sampleItem = domain.AdvisoryItem{
	ID:          "https://nvd.nist.gov/vuln/detail/CVE-2099-0001",
	CVEID:       "CVE-2099-0001",
	Title:       "CVE-2099-0001 (acme\n widget)",
	Link:        "https://nvd.nist.gov/vuln/detail/CVE-2099-0001",
	PublishedAt: "Tue, 01 Jan 2099 00:00:00 GMT",
	Description: "A  buffer\toverflow\n\nin acme.",
}

func TestTranslateParsesReply(t *testing.T) {
	t.Parallel()

	chat := &stubChat{reply: `Here it is: {"title":"제목","description":"설명","summary":"요약"}`}
	var failures int
	tr := New(chat, nil, WithLanguage("Korean"), WithFailureHook(func() { failures++ }))

	got := tr.Translate(context.Background(), sampleItem)
	want := domain.TranslationResult{TitleLocal: "제목", DescriptionLocal: "설명", Summary: "요약"}
	if got != want {
		t.Fatalf("unexpected result: %+v", got)
	}
	if failures != 0 {
		t.Fatalf("failure hook should not fire")
	}
	if !strings.Contains(chat.system, "Korean") {
		t.Fatalf("system prompt should name the language: %s", chat.system)
	}
	if !strings.Contains(chat.userPrompt, "Description: A buffer overflow in acme.") {
		t.Fatalf("description should be whitespace-collapsed: %s", chat.userPrompt)
	}
	if !strings.Contains(chat.userPrompt, "Identifier: CVE-2099-0001") {
		t.Fatalf("prompt should carry the identifier: %s", chat.userPrompt)
	}
}

func TestTranslateFallsBackOnBadReplies(t *testing.T) {
	t.Parallel()

	cases := []*stubChat{
		{reply: "Sorry, I cannot help with that."},
		{reply: ""},
		{reply: `{"title":"only a title"}`},
		{reply: `{"title": 3, "description": "x", "summary": "y"}`},
		{err: errors.New("timeout")},
	}

	for i, chat := range cases {
		failures := 0
		tr := New(chat, nil, WithFailureHook(func() { failures++ }))
		got := tr.Translate(context.Background(), sampleItem)
		if got != domain.FailedTranslation() {
			t.Fatalf("case %d: expected sentinel, got %+v", i, got)
		}
		if failures != 1 {
			t.Fatalf("case %d: expected failure hook once, got %d", i, failures)
		}
	}
}

func TestTranslateWithoutClient(t *testing.T) {
	t.Parallel()

	got := New(nil, nil).Translate(context.Background(), sampleItem)
	if !got.Failed() {
		t.Fatalf("expected sentinel without client")
	}
}
