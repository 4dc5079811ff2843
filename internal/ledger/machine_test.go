package ledger

import (
	"errors"
	"testing"
	"time"

	"warden/internal/evidence"
)

func TestApplyTransitions(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	rejoin := Policy{MaxAttempts: 3, StrikeLock: StateLockedUntilRejoin, MismatchLock: StateLockedUntilRejoin}

	cases := []struct {
		name        string
		policy      Policy
		start       Record
		event       EventKind
		wantState   LockState
		wantCount   int
		wantChanged bool
		wantLocked  bool
		wantErr     error
	}{
		{
			name:        "verified resets strikes",
			policy:      DefaultPolicy(),
			start:       Record{LockState: StateOpen, AttemptCount: 2},
			event:       EventVerified,
			wantState:   StateOpen,
			wantChanged: true,
		},
		{
			name:        "first unreadable strike",
			policy:      DefaultPolicy(),
			start:       Record{LockState: StateOpen},
			event:       EventUnreadable,
			wantState:   StateOpen,
			wantCount:   1,
			wantChanged: true,
		},
		{
			name:        "third strike locks awaiting admin",
			policy:      DefaultPolicy(),
			start:       Record{LockState: StateOpen, AttemptCount: 2},
			event:       EventInauthentic,
			wantState:   StateLockedAwaitingAdmin,
			wantCount:   3,
			wantChanged: true,
			wantLocked:  true,
		},
		{
			name:        "strike lock honours rejoin policy",
			policy:      rejoin,
			start:       Record{LockState: StateOpen, AttemptCount: 2},
			event:       EventUnreadable,
			wantState:   StateLockedUntilRejoin,
			wantCount:   3,
			wantChanged: true,
			wantLocked:  true,
		},
		{
			name:        "mismatch locks immediately",
			policy:      DefaultPolicy(),
			start:       Record{LockState: StateOpen},
			event:       EventMismatch,
			wantState:   StateLockedAwaitingAdmin,
			wantChanged: true,
			wantLocked:  true,
		},
		{
			name:      "transient leaves state alone",
			policy:    DefaultPolicy(),
			start:     Record{LockState: StateOpen, AttemptCount: 1},
			event:     EventTransient,
			wantState: StateOpen,
			wantCount: 1,
		},
		{
			name:      "analysis on locked record fails",
			policy:    DefaultPolicy(),
			start:     Record{LockState: StateLockedAwaitingAdmin, AttemptCount: 3},
			event:     EventVerified,
			wantState: StateLockedAwaitingAdmin,
			wantCount: 3,
			wantErr:   ErrLocked,
		},
		{
			name:      "transient on locked record fails",
			policy:    DefaultPolicy(),
			start:     Record{LockState: StateLockedUntilRejoin},
			event:     EventTransient,
			wantState: StateLockedUntilRejoin,
			wantErr:   ErrLocked,
		},
		{
			name:      "rejoin ignores admin lock",
			policy:    DefaultPolicy(),
			start:     Record{LockState: StateLockedAwaitingAdmin, AttemptCount: 3},
			event:     EventRejoin,
			wantState: StateLockedAwaitingAdmin,
			wantCount: 3,
		},
		{
			name:        "rejoin clears rejoin lock",
			policy:      rejoin,
			start:       Record{LockState: StateLockedUntilRejoin, AttemptCount: 3},
			event:       EventRejoin,
			wantState:   StateOpen,
			wantChanged: true,
		},
		{
			name:      "rejoin on open record is a no-op",
			policy:    DefaultPolicy(),
			start:     Record{LockState: StateOpen, AttemptCount: 2},
			event:     EventRejoin,
			wantState: StateOpen,
			wantCount: 2,
		},
		{
			name:        "admin unlock clears any lock",
			policy:      DefaultPolicy(),
			start:       Record{LockState: StateLockedAwaitingAdmin, AttemptCount: 3},
			event:       EventAdminUnlock,
			wantState:   StateOpen,
			wantChanged: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := tc.start
			tr, err := Apply(&rec, tc.event, tc.policy, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if rec.LockState != tc.wantState {
				t.Fatalf("lock state = %q, want %q", rec.LockState, tc.wantState)
			}
			if rec.AttemptCount != tc.wantCount {
				t.Fatalf("attempt count = %d, want %d", rec.AttemptCount, tc.wantCount)
			}
			if tr.Changed != tc.wantChanged {
				t.Fatalf("changed = %v, want %v", tr.Changed, tc.wantChanged)
			}
			if tr.Locked != tc.wantLocked {
				t.Fatalf("locked = %v, want %v", tr.Locked, tc.wantLocked)
			}
			if tc.wantLocked && !rec.LockedAt.Equal(now) {
				t.Fatalf("expected locked_at %v, got %v", now, rec.LockedAt)
			}
			if !tc.wantState.Locked() && !rec.LockedAt.IsZero() {
				t.Fatalf("open record kept locked_at %v", rec.LockedAt)
			}
		})
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	rec := Record{LockState: StateOpen}
	if _, err := Apply(&rec, EventKind("bogus"), DefaultPolicy(), time.Now()); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestEventForResult(t *testing.T) {
	cases := map[evidence.Outcome]EventKind{
		evidence.OutcomeSuccess:           EventVerified,
		evidence.OutcomeNoIdentifierFound: EventUnreadable,
		evidence.OutcomeInauthentic:       EventInauthentic,
		evidence.OutcomeTransient:         EventTransient,
	}
	for outcome, want := range cases {
		if got := EventForResult(evidence.AnalysisResult{Outcome: outcome}); got != want {
			t.Fatalf("EventForResult(%s) = %s, want %s", outcome, got, want)
		}
	}
}

func TestStateString(t *testing.T) {
	if got := (State{LockState: StateOpen, AttemptCount: 2, MaxAttempts: 3}).String(); got != "Open(2)" {
		t.Fatalf("unexpected open rendering %q", got)
	}
	if got := (State{LockState: StateLockedUntilRejoin}).String(); got != "LockedUntilRejoin" {
		t.Fatalf("unexpected lock rendering %q", got)
	}
	if got := (State{LockState: StateOpen, AttemptCount: 1, MaxAttempts: 3}).Remaining(); got != 2 {
		t.Fatalf("expected 2 remaining, got %d", got)
	}
}
