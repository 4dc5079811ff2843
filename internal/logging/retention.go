package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const auditFilePattern = "decisions-*.jsonl"

// AuditFileName returns the daily audit log name for the given day.
func AuditFileName(day time.Time) string {
	return fmt.Sprintf("decisions-%s.jsonl", day.UTC().Format("20060102"))
}

// OpenAuditHandler opens today's audit file under dir and returns a JSON
// handler that only records decisions. The returned closer releases the file.
func OpenAuditHandler(dir string, now time.Time) (slog.Handler, func() error, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return NoopHandler{}, func() error { return nil }, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create audit directory: %w", err)
	}
	path := filepath.Join(dir, AuditFileName(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	return NewDecisionHandler(newJSONHandler(file, lvl, false)), file.Close, nil
}

// PruneAuditLogs removes audit files in dir older than retentionDays. A
// retentionDays value of 0 disables pruning. Today's file is never removed.
func PruneAuditLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	current := AuditFileName(now)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == current {
			continue
		}
		if matched, err := filepath.Match(auditFilePattern, name); err != nil || !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "audit log prune failed; file remains", "audit_prune_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old audit file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("audit log pruned",
				String("path", fullPath),
				String(FieldEventType, "audit_pruned"),
			)
		}
	}
	return removed
}
