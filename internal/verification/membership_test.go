package verification

import (
	"strings"
	"testing"

	"warden/internal/evidence"
	"warden/internal/ledger"
)

func TestMembershipTracksDepartures(t *testing.T) {
	m := NewMembership()
	member := evidence.Member{CommunityID: "c1", UserID: "u1"}

	if !m.Active(member) {
		t.Fatal("unknown members should be active")
	}
	m.Left(member)
	if m.Active(member) {
		t.Fatal("expected member to be inactive after leaving")
	}
	if m.Active(member) == m.Active(evidence.Member{CommunityID: "c2", UserID: "u1"}) {
		t.Fatal("departure must not leak across communities")
	}
	if m.Departed() != 1 {
		t.Fatalf("expected one departed member, got %d", m.Departed())
	}
	m.Joined(member)
	if !m.Active(member) || m.Departed() != 0 {
		t.Fatal("expected member to be active again after rejoining")
	}
}

func TestMessagesReportAttempts(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"unreadable", unreadableMessage(openState(1)), "Attempts: **1/3**"},
		{"inauthentic", inauthenticMessage(openState(2)), "Attempts: **2/3**"},
		{"strike lock", strikeLockMessage(ledger.State{LockState: ledger.StateLockedAwaitingAdmin, AttemptCount: 3, MaxAttempts: 3}), "contact an admin"},
		{"rejoin lock", mismatchMessage(ledger.State{LockState: ledger.StateLockedUntilRejoin, MaxAttempts: 3}), "Leave and rejoin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !strings.Contains(tc.got, tc.want) {
				t.Fatalf("message %q does not contain %q", tc.got, tc.want)
			}
		})
	}
}

func openState(n int) ledger.State {
	return ledger.State{LockState: ledger.StateOpen, AttemptCount: n, MaxAttempts: 3}
}
