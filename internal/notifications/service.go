package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coursepipe/internal/config"
)

const userAgent = "coursepipe/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventTaskReady   Event = "task_ready"
	EventTaskFailed  Event = "task_failed"
	EventTaskStopped Event = "task_stopped"
	EventStepFailed  Event = "step_failed"
	EventPublished   Event = "published"
	EventTest        Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service defines the notification surface used by the pipeline and CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	course := payloadString(payload, "course")
	taskID := payloadString(payload, "task_id")
	label := course
	if taskID != "" {
		label = fmt.Sprintf("%s (%s)", course, taskID)
	}
	switch event {
	case EventTaskReady:
		return message{
			title:    "coursepipe - Ready",
			body:     fmt.Sprintf("✅ Course package ready: %s", label),
			tags:     []string{"coursepipe", "task", "ready"},
			priority: "high",
		}, true
	case EventTaskFailed:
		body := fmt.Sprintf("❌ Task failed: %s", label)
		if detail := payloadString(payload, "error"); detail != "" {
			body += "\n" + detail
		}
		return message{
			title:    "coursepipe - Failed",
			body:     body,
			tags:     []string{"coursepipe", "task", "failed"},
			priority: "high",
		}, true
	case EventTaskStopped:
		return message{
			title: "coursepipe - Stopped",
			body:  fmt.Sprintf("Task stopped: %s", label),
			tags:  []string{"coursepipe", "task", "stopped"},
		}, true
	case EventStepFailed:
		return message{
			title:    "coursepipe - Step Failed",
			body:     fmt.Sprintf("Step %s failed for %s: %s", payloadString(payload, "step"), label, payloadString(payload, "error")),
			tags:     []string{"coursepipe", "step", "failed"},
			priority: "high",
		}, true
	case EventPublished:
		body := fmt.Sprintf("📦 Published %s (%s)", label, payloadString(payload, "mode"))
		if url := payloadString(payload, "url"); url != "" {
			body += "\n" + url
		}
		return message{
			title: "coursepipe - Published",
			body:  body,
			tags:  []string{"coursepipe", "publish"},
		}, true
	case EventTest:
		return message{
			title:    "coursepipe - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"coursepipe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case error:
		return strings.TrimSpace(value.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
