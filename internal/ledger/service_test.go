package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/ledger"
)

func newService(t *testing.T, opts ...ledger.Option) *ledger.Service {
	t.Helper()
	svc, err := ledger.New(ledger.NewMemoryRepository(), opts...)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return svc
}

func TestNewRequiresRepository(t *testing.T) {
	if _, err := ledger.New(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}

func TestNewRejectsOpenLockTarget(t *testing.T) {
	policy := ledger.DefaultPolicy()
	policy.StrikeLock = ledger.StateOpen
	if _, err := ledger.New(ledger.NewMemoryRepository(), ledger.WithPolicy(policy)); err == nil {
		t.Fatal("expected error for open lock target")
	}
}

func TestStateDefaultsToOpenZero(t *testing.T) {
	svc := newService(t)
	state, err := svc.State(context.Background(), ledger.Key{CommunityID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.String() != "Open(0)" || state.Remaining() != 3 {
		t.Fatalf("unexpected default state %s (remaining %d)", state, state.Remaining())
	}
}

func TestStateRejectsEmptyKey(t *testing.T) {
	svc := newService(t)
	if _, err := svc.State(context.Background(), ledger.Key{CommunityID: "c1"}); err == nil {
		t.Fatal("expected validation error for empty user")
	}
}

func TestThreeStrikesThenLocked(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := ledger.Key{CommunityID: "c1", UserID: "u1"}

	for i, event := range []ledger.EventKind{ledger.EventUnreadable, ledger.EventInauthentic} {
		tr, err := svc.Record(ctx, key, event)
		if err != nil {
			t.Fatalf("Record #%d: %v", i+1, err)
		}
		if tr.To.AttemptCount != i+1 || tr.Locked {
			t.Fatalf("unexpected transition #%d: %+v", i+1, tr)
		}
	}
	tr, err := svc.Record(ctx, key, ledger.EventUnreadable)
	if err != nil {
		t.Fatalf("Record #3: %v", err)
	}
	if !tr.Locked || tr.To.LockState != ledger.StateLockedAwaitingAdmin {
		t.Fatalf("expected lock on third strike, got %+v", tr)
	}

	tr, err = svc.Record(ctx, key, ledger.EventVerified)
	if !errors.Is(err, ledger.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if tr.From.LockState != ledger.StateLockedAwaitingAdmin {
		t.Fatalf("expected locked from-state, got %+v", tr.From)
	}
}

func TestTransientDoesNotCountAsStrike(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := ledger.Key{CommunityID: "c1", UserID: "u1"}
	for range 5 {
		if _, err := svc.Record(ctx, key, ledger.EventTransient); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	state, err := svc.State(ctx, key)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.AttemptCount != 0 || state.LockState != ledger.StateOpen {
		t.Fatalf("transient changed state: %s", state)
	}
}

func TestRecordRejectsMembershipEvents(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Record(context.Background(), ledger.Key{CommunityID: "c1", UserID: "u1"}, ledger.EventRejoin); err == nil {
		t.Fatal("expected error for non-analysis event")
	}
}

func TestRejoinOnlyClearsRejoinLock(t *testing.T) {
	ctx := context.Background()
	policy := ledger.Policy{MaxAttempts: 3, StrikeLock: ledger.StateLockedAwaitingAdmin, MismatchLock: ledger.StateLockedUntilRejoin}
	svc := newService(t, ledger.WithPolicy(policy))

	strikes := ledger.Key{CommunityID: "c1", UserID: "striker"}
	for range 3 {
		if _, err := svc.Record(ctx, strikes, ledger.EventUnreadable); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if tr, err := svc.Rejoin(ctx, strikes); err != nil || tr.Changed {
		t.Fatalf("rejoin should not clear admin lock: %+v, %v", tr, err)
	}

	mismatch := ledger.Key{CommunityID: "c1", UserID: "impostor"}
	if _, err := svc.Record(ctx, mismatch, ledger.EventMismatch); err != nil {
		t.Fatalf("Record: %v", err)
	}
	tr, err := svc.Rejoin(ctx, mismatch)
	if err != nil {
		t.Fatalf("Rejoin: %v", err)
	}
	if !tr.Changed || tr.To.String() != "Open(0)" {
		t.Fatalf("expected rejoin to reset mismatch lock, got %+v", tr)
	}

	locked, err := svc.ListLocked(ctx, "c1")
	if err != nil {
		t.Fatalf("ListLocked: %v", err)
	}
	if len(locked) != 1 || locked[0].UserID != "striker" {
		t.Fatalf("unexpected locked list: %+v", locked)
	}
}

func TestMembershipEventsDoNotCreateRecords(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	key := ledger.Key{CommunityID: "c1", UserID: "never-submitted"}

	if tr, err := svc.Rejoin(ctx, key); err != nil || tr.Changed || tr.To.String() != "Open(0)" {
		t.Fatalf("Rejoin: %+v, %v", tr, err)
	}
	if tr, err := svc.Unlock(ctx, key, "operator"); err != nil || tr.Changed {
		t.Fatalf("Unlock: %+v, %v", tr, err)
	}
	rec, err := svc.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no record, got %+v", rec)
	}
}

func TestUnlockResetsAnyState(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc := newService(t, ledger.WithClock(func() time.Time { return now }))
	key := ledger.Key{CommunityID: "c1", UserID: "u1"}

	if _, err := svc.Record(ctx, key, ledger.EventMismatch); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec, err := svc.Lookup(ctx, key)
	if err != nil || rec == nil {
		t.Fatalf("Lookup: %v, %v", rec, err)
	}
	if !rec.LockedAt.Equal(now) || rec.LastReason != ledger.ReasonMismatch {
		t.Fatalf("unexpected locked record %+v", rec)
	}

	tr, err := svc.Unlock(ctx, key, "operator")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if tr.From.LockState != ledger.StateLockedAwaitingAdmin || tr.To.String() != "Open(0)" {
		t.Fatalf("unexpected unlock transition %+v", tr)
	}
	if _, err := svc.Record(ctx, key, ledger.EventVerified); err != nil {
		t.Fatalf("expected submissions to be accepted after unlock: %v", err)
	}
}

func TestOpenRepositorySelectsBackend(t *testing.T) {
	repo, closer, err := ledger.OpenRepository(context.Background(), configLedger("memory"), nil)
	if err != nil {
		t.Fatalf("OpenRepository: %v", err)
	}
	defer closer()
	if _, ok := repo.(*ledger.MemoryRepository); !ok {
		t.Fatalf("expected memory repository, got %T", repo)
	}
	if _, _, err := ledger.OpenRepository(context.Background(), configLedger("sqlite"), nil); err == nil {
		t.Fatal("expected sqlite backend to require a database")
	}
	if _, _, err := ledger.OpenRepository(context.Background(), configLedger("etcd"), nil); err == nil {
		t.Fatal("expected unsupported backend error")
	}
}

func configLedger(backend string) config.Ledger {
	cfg := config.Default().Ledger
	cfg.Backend = backend
	return cfg
}
