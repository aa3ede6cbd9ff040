package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"CVEWatch/internal/domain"
)

func sample() domain.Notification {
	return domain.Notification{
		Title:       "🧨 CVE-2024-0001: heap_overflow",
		URL:         "https://nvd.nist.gov/vuln/detail/CVE-2024-0001",
		Description: "desc",
		Summary:     "sum",
		Score:       "9.8 CRITICAL",
		Published:   "unknown",
	}
}

func TestPublishPostsMarkdown(t *testing.T) {
	t.Parallel()

	var gotPath, gotText, gotChat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotText = r.PostForm.Get("text")
		gotChat = r.PostForm.Get("chat_id")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("TOKEN", "42", srv.URL)
	if err := n.Publish(context.Background(), sample()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" || gotChat != "42" {
		t.Fatalf("unexpected request path=%q chat=%q", gotPath, gotChat)
	}
	if !strings.Contains(gotText, `heap\_overflow`) || !strings.Contains(gotText, "*CVSS:* 9.8 CRITICAL") {
		t.Fatalf("unexpected text %q", gotText)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewNotifier("TOKEN", "42", srv.URL).Publish(context.Background(), sample()); err == nil {
		t.Fatalf("expected error on 400")
	}
	if err := NewNotifier("", "42", srv.URL).Publish(context.Background(), sample()); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
