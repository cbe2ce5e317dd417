package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coursepipe/internal/config"
	"coursepipe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTaskReady, notifications.Payload{"course": "Demo"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "task ready",
			event:          notifications.EventTaskReady,
			payload:        notifications.Payload{"course": "Daily English", "task_id": "task_0001"},
			expectTitle:    "coursepipe - Ready",
			expectMessage:  "✅ Course package ready: Daily English (task_0001)",
			expectTags:     "coursepipe,task,ready",
			expectPriority: "high",
		},
		{
			name:           "task failed with error",
			event:          notifications.EventTaskFailed,
			payload:        notifications.Payload{"course": "Daily English", "error": errors.New("ffmpeg missing")},
			expectTitle:    "coursepipe - Failed",
			expectMessage:  "❌ Task failed: Daily English\nffmpeg missing",
			expectTags:     "coursepipe,task,failed",
			expectPriority: "high",
		},
		{
			name:          "published",
			event:         notifications.EventPublished,
			payload:       notifications.Payload{"course": "course_demo", "mode": "zip", "url": "https://cdn/x.zip"},
			expectTitle:   "coursepipe - Published",
			expectMessage: "📦 Published course_demo (zip)\nhttps://cdn/x.zip",
			expectTags:    "coursepipe,publish",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, _ := io.ReadAll(r.Body)
				gotBody = string(data)
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if gotTitle != tt.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tt.expectTitle)
			}
			if gotBody != tt.expectMessage {
				t.Fatalf("body = %q, want %q", gotBody, tt.expectMessage)
			}
			if gotTags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tt.expectTags)
			}
			if gotPriority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
