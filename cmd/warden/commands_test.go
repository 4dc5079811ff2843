package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"warden/internal/api"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Identity directory")
	requireContains(t, out, "2 entries")
	requireContains(t, out, "Reference fragments")
	requireContains(t, out, "Tesseract")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, "127.0.0.1:1", env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Readiness")
}

func TestCommandsReportUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "show"}, "127.0.0.1:1", env.configPath)
	if err == nil {
		t.Fatal("expected error without a daemon")
	}
	requireContains(t, err.Error(), "warden run")
}

func TestSubmitRejectsUnconfiguredCommunity(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "submit", "c9", "u1", "https://cdn.example/1.png")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Rejected (not_configured)")
}

func TestStrikesLockAndUnlock(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "community", "set", "c1", "--privilege", "role-verified")
	if err != nil {
		t.Fatalf("community set: %v", err)
	}
	requireContains(t, out, "role-verified")

	for attempt := 1; attempt <= 3; attempt++ {
		out, err := env.run(t, "submit", "c1", "u1", "https://cdn.example/1.png")
		if err != nil {
			t.Fatalf("submit %d: %v", attempt, err)
		}
		requireContains(t, out, "Queued")
		waitForAttempts(t, env, "c1", "u1", attempt)
	}

	out, err = env.run(t, "submit", "c1", "u1", "https://cdn.example/1.png")
	if err != nil {
		t.Fatalf("submit while locked: %v", err)
	}
	requireContains(t, out, "Rejected (locked)")

	out, err = env.run(t, "ledger", "locked", "c1")
	if err != nil {
		t.Fatalf("ledger locked: %v", err)
	}
	requireContains(t, out, "u1")

	out, err = env.run(t, "review", "list", "--community", "c1")
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "u1")

	out, err = env.run(t, "ledger", "unlock", "c1", "u1")
	if err != nil {
		t.Fatalf("ledger unlock: %v", err)
	}
	requireContains(t, out, "Unlocked c1/u1 (was LockedAwaitingAdmin)")
	requireContains(t, out, "Resolved 1 open review case(s)")

	out, err = env.run(t, "ledger", "show", "c1", "u1")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "Open(0)")

	out, err = env.run(t, "review", "list", "--community", "c1")
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "No review cases")
}

func waitForAttempts(t *testing.T, env *cliTestEnv, communityID, userID string, want int) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		view, err := env.client.Ledger(context.Background(), communityID, userID)
		if err != nil || view.AttemptCount < want {
			return false
		}
		// The member is released only once the worker finishes the job.
		q, err := env.client.Queue(context.Background())
		return err == nil && q.InFlight == nil && q.Depth == 0
	})
}

func TestQueueShowEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "queue", "show")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestMemberLeaveAndJoin(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "member", "leave", "c1", "u5")
	if err != nil {
		t.Fatalf("member leave: %v", err)
	}
	requireContains(t, out, "active: no")

	status, err := env.client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.DepartedMembers != 1 {
		t.Fatalf("expected 1 departed member, got %d", status.DepartedMembers)
	}

	out, err = env.run(t, "member", "join", "c1", "u5")
	if err != nil {
		t.Fatalf("member join: %v", err)
	}
	requireContains(t, out, "active: yes")
}

func TestCommunityShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "community", "show")
	if err != nil {
		t.Fatalf("community show: %v", err)
	}
	requireContains(t, out, "No communities configured")

	if _, err := env.run(t, "community", "show", "c9"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}

	if _, err := env.run(t, "community", "set", "c1"); err == nil {
		t.Fatal("expected error without any update flags")
	}

	out, err = env.run(t, "community", "set", "c1", "--privilege", "role-verified", "--enabled=false")
	if err != nil {
		t.Fatalf("community set: %v", err)
	}
	requireContains(t, out, "Submissions are rejected")
}

func TestDirectoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "directory", "lookup", "10010001")
	if err != nil {
		t.Fatalf("directory lookup: %v", err)
	}
	requireContains(t, out, "10010001 -> Ada Lovelace")

	if _, err := env.run(t, "directory", "lookup", "99999999"); err == nil {
		t.Fatal("expected lookup of unknown id to fail")
	}
	if _, err := env.run(t, "directory", "lookup", "10a10001"); err == nil || !strings.Contains(err.Error(), "only digits") {
		t.Fatalf("expected non-numeric id to be rejected, got %v", err)
	}

	out, err = env.run(t, "directory", "stats")
	if err != nil {
		t.Fatalf("directory stats: %v", err)
	}
	requireContains(t, out, "Entries")
}

func TestAnalyzeUndecodableFile(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(t.TempDir(), "not-an-image.png")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	out, err := env.run(t, "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "no_identifier_found")
}

func TestNotifyTestDisabled(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "notify", "test")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}

func TestJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "ledger", "show", "c1", "u7", "--json")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, `"state": "Open(0)"`)
}

func TestWrapClientError(t *testing.T) {
	err := wrapClientError(api.ErrUnavailable, "http://127.0.0.1:7488")
	requireContains(t, err.Error(), "http://127.0.0.1:7488")
}
