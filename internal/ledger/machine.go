package ledger

import (
	"fmt"
	"time"

	"warden/internal/config"
	"warden/internal/evidence"
)

// EventKind is an input to the state machine.
type EventKind string

const (
	// Analysis events, produced by the coordinator.
	EventVerified    EventKind = "verified"
	EventUnreadable  EventKind = "unreadable"
	EventInauthentic EventKind = "inauthentic"
	EventTransient   EventKind = "transient"
	EventMismatch    EventKind = "mismatch"

	// Membership and operator events.
	EventRejoin      EventKind = "rejoin"
	EventAdminUnlock EventKind = "admin_unlock"
)

func (k EventKind) isAnalysis() bool {
	switch k {
	case EventVerified, EventUnreadable, EventInauthentic, EventTransient, EventMismatch:
		return true
	}
	return false
}

// EventForResult maps an analysis result onto an event. Success maps to
// EventVerified only once the directory has resolved the identifier; the
// coordinator decides between EventVerified and EventMismatch.
func EventForResult(result evidence.AnalysisResult) EventKind {
	switch result.Outcome {
	case evidence.OutcomeNoIdentifierFound:
		return EventUnreadable
	case evidence.OutcomeInauthentic:
		return EventInauthentic
	case evidence.OutcomeSuccess:
		return EventVerified
	default:
		return EventTransient
	}
}

// Policy holds the strike budget and the lock state each path lands in.
type Policy struct {
	MaxAttempts  int
	StrikeLock   LockState
	MismatchLock LockState
}

// DefaultPolicy is three strikes and admin locks on both paths.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, StrikeLock: StateLockedAwaitingAdmin, MismatchLock: StateLockedAwaitingAdmin}
}

// PolicyFromConfig reads the ledger section.
func PolicyFromConfig(cfg config.Ledger) Policy {
	p := Policy{
		MaxAttempts:  cfg.MaxAttempts,
		StrikeLock:   LockStateForPolicy(cfg.StrikeLock),
		MismatchLock: LockStateForPolicy(cfg.MismatchLock),
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	return p
}

// Transition describes the effect of one event.
type Transition struct {
	Event   EventKind `json:"event"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	Changed bool      `json:"changed"`
	// Locked is true when this event moved the record into a lock state.
	Locked bool `json:"locked"`
}

// Apply runs the state machine on rec in place.
//
// From Open(n): verified resets to Open(0); unreadable and inauthentic add a
// strike and lock at the budget; mismatch locks at once; transient changes
// nothing. Analysis events on a locked record return ErrLocked. Rejoin only
// clears LockedUntilRejoin; admin unlock clears everything.
func Apply(rec *Record, event EventKind, policy Policy, now time.Time) (Transition, error) {
	if rec == nil {
		return Transition{}, fmt.Errorf("ledger: nil record")
	}
	from := stateOf(rec, policy)
	tr := Transition{Event: event, From: from, To: from}

	if event.isAnalysis() && rec.LockState.Locked() {
		return tr, ErrLocked
	}

	switch event {
	case EventTransient:
		return tr, nil
	case EventVerified:
		rec.AttemptCount = 0
		rec.LockState = StateOpen
		rec.LockedAt = time.Time{}
		rec.LastReason = ReasonVerified
	case EventUnreadable, EventInauthentic:
		rec.AttemptCount++
		rec.LastReason = ReasonUnreadable
		if event == EventInauthentic {
			rec.LastReason = ReasonInauthentic
		}
		if rec.AttemptCount >= policy.MaxAttempts {
			rec.AttemptCount = policy.MaxAttempts
			rec.LockState = policy.StrikeLock
			rec.LockedAt = now.UTC()
			tr.Locked = true
		}
	case EventMismatch:
		rec.LockState = policy.MismatchLock
		rec.LockedAt = now.UTC()
		rec.LastReason = ReasonMismatch
		tr.Locked = true
	case EventRejoin:
		if rec.LockState != StateLockedUntilRejoin {
			return tr, nil
		}
		rec.AttemptCount = 0
		rec.LockState = StateOpen
		rec.LockedAt = time.Time{}
		rec.LastReason = ReasonRejoin
	case EventAdminUnlock:
		rec.AttemptCount = 0
		rec.LockState = StateOpen
		rec.LockedAt = time.Time{}
		rec.LastReason = ReasonAdminUnlock
	default:
		return tr, fmt.Errorf("ledger: unknown event %q", event)
	}

	rec.UpdatedAt = now.UTC()
	tr.To = stateOf(rec, policy)
	tr.Changed = true
	return tr, nil
}

func stateOf(rec *Record, policy Policy) State {
	return State{
		LockState:    rec.LockState,
		AttemptCount: rec.AttemptCount,
		MaxAttempts:  policy.MaxAttempts,
		LastReason:   rec.LastReason,
	}
}
