package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"warden/internal/config"
	"warden/internal/notifications"
)

func newService(t *testing.T, cfg config.Config) notifications.Service {
	t.Helper()
	svc, err := notifications.NewService(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	svc := newService(t, config.Default())
	if err := svc.Publish(context.Background(), notifications.EventEscalation, notifications.Payload{"user": "u1"}); err != nil {
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
			name:  "escalation",
			event: notifications.EventEscalation,
			payload: notifications.Payload{
				"community":   "c1",
				"user":        "u1",
				"reason":      "identity_mismatch",
				"extractedId": "123456789",
				"imageRef":    "https://cdn.example/1.png",
				"caseId":      "2abc",
			},
			expectTitle:    "Warden - Review Needed",
			expectMessage:  "Member u1 in community c1 was locked: identity_mismatch\nExtracted id: 123456789\nEvidence: https://cdn.example/1.png\nReview case: 2abc",
			expectTags:     "warden,review,identity_mismatch",
			expectPriority: "high",
		},
		{
			name:  "configuration error",
			event: notifications.EventConfigurationError,
			payload: notifications.Payload{
				"community": "c1",
				"error":     "community c1 has no privilege mapping",
				"hint":      "warden community set c1 --privilege ROLE",
			},
			expectTitle:    "Warden - Configuration Error",
			expectMessage:  "Configuration error in community c1: community c1 has no privilege mapping\nHint: warden community set c1 --privilege ROLE",
			expectTags:     "warden,config,alert",
			expectPriority: "high",
		},
		{
			name:          "daemon started",
			event:         notifications.EventDaemonStarted,
			payload:       notifications.Payload{"bind": "127.0.0.1:7488"},
			expectTitle:   "Warden - Started",
			expectMessage: "Warden daemon started (API 127.0.0.1:7488)",
			expectTags:    "warden,daemon,started",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Warden - Test",
			expectMessage:  "Notification system test",
			expectTags:     "warden,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := newService(t, cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Daemon = false
	cfg.Notifications.Escalations = false

	svc := newService(t, cfg)
	for _, event := range []notifications.Event{notifications.EventDaemonStarted, notifications.EventDaemonStopped, notifications.EventEscalation, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := newService(t, cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
