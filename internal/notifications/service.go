package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipdraft/internal/config"
)

const userAgent = "clipdraft/0.1.0"

// Service defines the notification surface exposed to the workflow.
type Service interface {
	NotifyDrafted(ctx context.Context, itemID int64, sourceURL string, drafts int) error
	NotifyFailed(ctx context.Context, itemID int64, sourceURL, step, kind, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		drafted:  cfg.Notifications.Drafted,
		failures: cfg.Notifications.Failures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	drafted  bool
	failures bool
}

var titleCaser = cases.Title(language.English)

func (n *ntfyService) NotifyDrafted(ctx context.Context, itemID int64, sourceURL string, drafts int) error {
	if !n.drafted {
		return nil
	}
	noun := "drafts"
	if drafts == 1 {
		noun = "draft"
	}
	data := payload{
		title:   "clipdraft - Drafts Ready",
		message: fmt.Sprintf("✍️ #%d: %d %s ready\n%s", itemID, drafts, noun, strings.TrimSpace(sourceURL)),
		tags:    []string{"clipdraft", "drafted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFailed(ctx context.Context, itemID int64, sourceURL, step, kind, message string) error {
	if !n.failures {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ #%d %s failed", itemID, strings.TrimSpace(step))
	if kind = strings.TrimSpace(kind); kind != "" {
		fmt.Fprintf(&builder, " (%s)", kind)
	}
	if message = strings.TrimSpace(message); message != "" {
		builder.WriteString(": ")
		builder.WriteString(message)
	}
	if sourceURL = strings.TrimSpace(sourceURL); sourceURL != "" {
		builder.WriteString("\n")
		builder.WriteString(sourceURL)
	}
	data := payload{
		title:    fmt.Sprintf("clipdraft - %s Failed", titleCaser.String(strings.TrimSpace(step))),
		message:  builder.String(),
		tags:     []string{"clipdraft", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "clipdraft - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"clipdraft", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDrafted(context.Context, int64, string, int) error                   { return nil }
func (noopService) NotifyFailed(context.Context, int64, string, string, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                                    { return nil }
