package notifications

import (
	"fmt"
	"strings"
)

// Event names an operator notification.
type Event string

const (
	EventEscalation         Event = "escalation"
	EventConfigurationError Event = "configuration_error"
	EventDaemonStarted      Event = "daemon_started"
	EventDaemonStopped      Event = "daemon_stopped"
	EventTest               Event = "test"
)

// Payload carries event fields. Keys are event specific; missing keys render
// as empty strings.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// message is the transport-neutral rendering of one event.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEscalation:
		var b strings.Builder
		fmt.Fprintf(&b, "Member %s in community %s was locked: %s", payload.str("user"), payload.str("community"), payload.str("reason"))
		if id := payload.str("extractedId"); id != "" {
			fmt.Fprintf(&b, "\nExtracted id: %s", id)
		}
		if ref := payload.str("imageRef"); ref != "" {
			fmt.Fprintf(&b, "\nEvidence: %s", ref)
		}
		if caseID := payload.str("caseId"); caseID != "" {
			fmt.Fprintf(&b, "\nReview case: %s", caseID)
		}
		return message{
			title:    "Warden - Review Needed",
			body:     b.String(),
			tags:     []string{"warden", "review", payload.str("reason")},
			priority: "high",
		}, true
	case EventConfigurationError:
		body := fmt.Sprintf("Configuration error in community %s: %s", payload.str("community"), payload.str("error"))
		if hint := payload.str("hint"); hint != "" {
			body += "\nHint: " + hint
		}
		return message{
			title:    "Warden - Configuration Error",
			body:     body,
			tags:     []string{"warden", "config", "alert"},
			priority: "high",
		}, true
	case EventDaemonStarted:
		return message{
			title: "Warden - Started",
			body:  fmt.Sprintf("Warden daemon started (API %s)", payload.str("bind")),
			tags:  []string{"warden", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Warden - Stopped",
			body:  "Warden daemon stopped",
			tags:  []string{"warden", "daemon", "stopped"},
		}, true
	case EventTest:
		return message{
			title:    "Warden - Test",
			body:     "Notification system test",
			tags:     []string{"warden", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}
