package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends advisories to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty apiBase
// targets the public Bot API.
func NewNotifier(botToken, chatID, apiBase string) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  strings.TrimSuffix(apiBase, "/"),
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Publish posts a Markdown rendering of the notification.
func (n *Notifier) Publish(ctx context.Context, notification domain.Notification) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Render(notification))
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}

// Render formats a notification as Telegram legacy Markdown.
func Render(n domain.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", escape(n.Title))
	if n.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", escape(n.Description))
	}
	fmt.Fprintf(&b, "\n*Summary:* %s", escape(n.Summary))
	fmt.Fprintf(&b, "\n*CVSS:* %s", escape(n.Score))
	fmt.Fprintf(&b, "\n*Published:* %s", escape(n.Published))
	if n.URL != "" {
		fmt.Fprintf(&b, "\n%s", n.URL)
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
