package preflight

import (
	"context"
	"strings"

	"warden/internal/config"
)

// CheckGatewayFromConfig evaluates the decision gateway for status displays.
func CheckGatewayFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Gateway"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch mode := strings.ToLower(strings.TrimSpace(cfg.Gateway.Mode)); mode {
	case "", "log":
		return Result{Name: name, Passed: true, Detail: "Log only (decisions are written to the log)"}
	case "webhook":
		check := CheckWebhook(ctx, cfg.Gateway.WebhookURL, cfg.Gateway.Token)
		return Result{Name: name, Passed: check.Passed, Detail: "Webhook " + check.Detail}
	default:
		return Result{Name: name, Detail: "Unsupported mode " + mode}
	}
}

// CheckNotificationsFromConfig summarizes operator alert channels.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	var channels []string
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		channels = append(channels, "ntfy")
	}
	if strings.TrimSpace(cfg.Notifications.SESRegion) != "" {
		channels = append(channels, "ses")
	}
	if len(channels) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(channels, ", ")}
}

// CheckLedgerFromConfig reports the configured ledger backend.
func CheckLedgerFromConfig(cfg *config.Config) Result {
	const name = "Ledger"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Ledger.Backend))
	switch backend {
	case "", "sqlite":
		return Result{Name: name, Passed: true, Detail: "sqlite (" + cfg.DatabasePath() + ")"}
	case "postgres":
		if strings.TrimSpace(cfg.Ledger.PostgresDSN) == "" {
			return Result{Name: name, Detail: "postgres (missing postgres_dsn)"}
		}
		return Result{Name: name, Passed: true, Detail: "postgres"}
	case "redis":
		if strings.TrimSpace(cfg.Ledger.RedisURL) == "" {
			return Result{Name: name, Detail: "redis (missing redis_url)"}
		}
		return Result{Name: name, Passed: true, Detail: "redis"}
	case "memory":
		return Result{Name: name, Passed: true, Detail: "memory (state is lost on restart)"}
	default:
		return Result{Name: name, Detail: "Unsupported backend " + backend}
	}
}
