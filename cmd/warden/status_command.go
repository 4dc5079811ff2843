package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/config"
	"warden/internal/deps"
	"warden/internal/preflight"
)

type statusReport struct {
	Daemon       *api.Status        `json:"daemon,omitempty"`
	DaemonError  string             `json:"daemon_error,omitempty"`
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := buildStatusReport(cmd, ctx, cfg)
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printSection(out, "Daemon", colorize, daemonLines(report, ctx.apiAddress(), colorize))
			printSection(out, "Readiness", colorize, checkLines(report.Checks, colorize))
			printSection(out, "Dependencies", colorize, dependencyLines(report.Dependencies, colorize))
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func buildStatusReport(cmd *cobra.Command, ctx *commandContext, cfg *config.Config) statusReport {
	var report statusReport
	client, err := ctx.newClient()
	if err == nil {
		var status api.Status
		status, err = client.Status(cmd.Context())
		if err == nil {
			report.Daemon = &status
		}
	}
	if err != nil {
		report.DaemonError = wrapClientError(err, ctx.apiAddress()).Error()
	}

	checks := preflight.RunAll(cmd.Context(), cfg)
	if !hasCheck(checks, "Gateway webhook") {
		checks = append(checks, preflight.CheckGatewayFromConfig(cmd.Context(), cfg))
	}
	checks = append(checks,
		preflight.CheckLedgerFromConfig(cfg),
		preflight.CheckNotificationsFromConfig(cfg),
	)
	report.Checks = checks
	report.Dependencies = preflight.CheckSystemDeps(cmd.Context(), cfg)
	return report
}

func hasCheck(results []preflight.Result, name string) bool {
	for _, r := range results {
		if r.Name == name {
			return true
		}
	}
	return false
}

func daemonLines(report statusReport, addr string, colorize bool) []string {
	status := report.Daemon
	if status == nil {
		return []string{renderStatusLine("Daemon", statusWarn, "Not running ("+addr+")", colorize)}
	}

	running := fmt.Sprintf("Running (pid %d)", status.PID)
	if started, err := time.Parse(time.RFC3339, status.StartedAt); err == nil {
		running = fmt.Sprintf("Running (pid %d, started %s)", status.PID, humanize.Time(started))
	}
	lines := []string{
		renderStatusLine("Daemon", statusOK, running, colorize),
		renderStatusLine("API", statusInfo, addr, colorize),
		renderStatusLine("Queue", statusInfo, queueSummary(status.Queue), colorize),
	}

	dir := status.Directory
	if dir.Error != "" {
		lines = append(lines, renderStatusLine("Identity directory", statusError, dir.Error, colorize))
	} else {
		lines = append(lines, renderStatusLine("Identity directory", statusOK,
			fmt.Sprintf("%s entries from %s", humanize.Comma(int64(dir.Entries)), dir.Path), colorize))
	}
	lines = append(lines,
		renderStatusLine("Ledger backend", statusInfo, status.LedgerBackend, colorize),
		renderStatusLine("Gateway mode", statusInfo, status.GatewayMode, colorize),
		renderStatusLine("Departed members", statusInfo, humanize.Comma(int64(status.DepartedMembers)), colorize),
	)
	return lines
}

func queueSummary(q api.QueueView) string {
	if q.Depth == 0 {
		return "Empty"
	}
	avg := time.Duration(q.AverageSeconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d waiting, %s average per submission", q.Depth, avg)
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	var missing []string
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Version != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Version)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
