package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"warden/internal/config"
)

const userAgent = "Warden/0.1.0"

// Service publishes operator notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the configured transports. ntfy and SES may both be
// enabled; events are sent to each. With neither configured a noop service
// is returned. Event toggles in cfg filter what reaches the transports;
// EventTest always passes.
func NewService(ctx context.Context, cfg *config.Config) (Service, error) {
	if cfg == nil {
		return noopService{}, nil
	}
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var targets []Service
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		targets = append(targets, &ntfyService{endpoint: topic, client: &http.Client{Timeout: timeout}})
	}
	if n.SESRegion != "" {
		ses, err := NewSESService(ctx, n.SESRegion, n.SESFrom, n.SESTo)
		if err != nil {
			return nil, err
		}
		targets = append(targets, ses)
	}

	var svc Service
	switch len(targets) {
	case 0:
		return noopService{}, nil
	case 1:
		svc = targets[0]
	default:
		svc = fanout(targets)
	}
	return &filteredService{next: svc, enabled: enabledEvents(n)}, nil
}

func enabledEvents(n config.Notifications) map[Event]bool {
	return map[Event]bool{
		EventEscalation:         n.Escalations,
		EventConfigurationError: n.ConfigurationErrors,
		EventDaemonStarted:      n.Daemon,
		EventDaemonStopped:      n.Daemon,
		EventTest:               true,
	}
}

type filteredService struct {
	next    Service
	enabled map[Event]bool
}

func (f *filteredService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !f.enabled[event] {
		return nil
	}
	return f.next.Publish(ctx, event, payload)
}

// fanout publishes to every target and joins their errors.
type fanout []Service

func (f fanout) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range f {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
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
	if tags := compact(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
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

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a service that drops every event.
func NewNoop() Service { return noopService{} }
