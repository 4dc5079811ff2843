package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"warden/internal/analyzer"
	"warden/internal/config"
	"warden/internal/deps"
	"warden/internal/directory"
	"warden/internal/logging"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDirectorySource loads the identity directory CSV and fails when it is
// unreadable or holds no usable rows.
func CheckDirectorySource(path string) Result {
	const name = "Identity directory"

	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "directory.path is not set"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	stats, err := directory.NewCSV(path, logging.NewNop()).Stats()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (%d entries", path, stats.Entries)
	if stats.SkippedNonNumeric > 0 {
		detail += fmt.Sprintf(", %d non-numeric skipped", stats.SkippedNonNumeric)
	}
	if stats.Duplicates > 0 {
		detail += fmt.Sprintf(", %d duplicates", stats.Duplicates)
	}
	return Result{Name: name, Passed: true, Detail: detail + ")"}
}

// CheckReferences verifies that at least one reference fragment decodes.
func CheckReferences(dir string) Result {
	const name = "Reference fragments"

	refs, err := analyzer.LoadReferences(dir)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d fragments)", dir, len(refs))}
}

// CheckWebhook verifies the platform adapter answers at the webhook URL. Any
// response below 500 other than an auth failure counts as reachable; the
// adapter is not required to implement GET.
func CheckWebhook(ctx context.Context, webhookURL, token string) Result {
	const name = "Gateway webhook"

	target := strings.TrimSpace(webhookURL)
	if target == "" {
		return Result{Name: name, Detail: "missing webhook_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (check gateway.token)"}
	case resp.StatusCode >= http.StatusInternalServerError:
		return Result{Name: name, Detail: fmt.Sprintf("adapter error (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// CheckSystemDeps evaluates the binaries the analyzer shells out to. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Tesseract",
			Command:     cfg.Analyzer.TesseractBinary,
			Description: "Required for identifier recognition",
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (adapter unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (adapter unreachable)"
	}
	return err.Error()
}
