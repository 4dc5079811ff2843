package preflight

import (
	"context"
	"strings"

	"warden/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The webhook probe only runs when the gateway is in webhook mode.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectorySource(cfg.Directory.Path),
		CheckReferences(cfg.Analyzer.ReferencesDir),
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Gateway.Mode), "webhook") {
		results = append(results, CheckWebhook(ctx, cfg.Gateway.WebhookURL, cfg.Gateway.Token))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
