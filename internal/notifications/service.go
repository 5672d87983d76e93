package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"audiogen/internal/config"
	"audiogen/internal/render"
)

const userAgent = "audiogen/0.1.0"

// Service is the notification surface used by the CLI.
type Service interface {
	NotifyGenerationFinished(ctx context.Context, prompt, model, audioRef string) error
	NotifyGenerationFailed(ctx context.Context, prompt, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy service when a topic is configured. Without a
// topic a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotificationTimeout()},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
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
}

func (n *ntfyService) NotifyGenerationFinished(ctx context.Context, prompt, model, audioRef string) error {
	message := fmt.Sprintf("🎵 Finished: %s (%s)", strings.TrimSpace(prompt), render.ModelLabel(model))
	if audioRef = strings.TrimSpace(audioRef); audioRef != "" {
		message = fmt.Sprintf("%s\nAudio: %s", message, audioRef)
	}
	return n.send(ctx, payload{
		title:   "Audiogen - Finished",
		message: message,
		tags:    []string{"audiogen", "generation", "completed"},
	})
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, prompt, message string) error {
	message = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(message), "error:"))
	if message == "" {
		message = "unknown"
	}
	return n.send(ctx, payload{
		title:    "Audiogen - Error",
		message:  fmt.Sprintf("❌ Generation failed: %s\n%s", strings.TrimSpace(prompt), message),
		tags:     []string{"audiogen", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Audiogen - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"audiogen", "test"},
		priority: "low",
	})
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
	if data.priority != "" {
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

func (noopService) NotifyGenerationFinished(context.Context, string, string, string) error { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
