package ledger

import (
	"errors"
	"fmt"
	"time"

	"warden/internal/config"
	"warden/internal/evidence"
)

// Key identifies one ledger record.
type Key = evidence.Member

// LockState is the persisted lock column.
type LockState string

const (
	StateOpen                LockState = "open"
	StateLockedAwaitingAdmin LockState = "locked_awaiting_admin"
	StateLockedUntilRejoin   LockState = "locked_until_rejoin"
)

// Locked reports whether the state rejects further submissions.
func (s LockState) Locked() bool {
	return s == StateLockedAwaitingAdmin || s == StateLockedUntilRejoin
}

func (s LockState) valid() bool {
	return s == StateOpen || s.Locked()
}

// ParseLockState accepts the persisted value.
func ParseLockState(value string) (LockState, error) {
	s := LockState(value)
	if !s.valid() {
		return "", fmt.Errorf("unknown lock state %q", value)
	}
	return s, nil
}

// LockStateForPolicy maps a config lock policy onto a lock state.
func LockStateForPolicy(policy string) LockState {
	if policy == config.LockPolicyRejoin {
		return StateLockedUntilRejoin
	}
	return StateLockedAwaitingAdmin
}

// Reason names the last event applied to a record.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonVerified    Reason = "verified"
	ReasonUnreadable  Reason = "no_identifier_found"
	ReasonInauthentic Reason = "authenticity_check_failed"
	ReasonMismatch    Reason = "identity_mismatch"
	ReasonAdminUnlock Reason = "admin_unlock"
	ReasonRejoin      Reason = "rejoin"
)

// Record is the persisted per-member state. Records are created lazily and
// never deleted automatically.
type Record struct {
	CommunityID  string    `json:"community_id"`
	UserID       string    `json:"user_id"`
	AttemptCount int       `json:"attempt_count"`
	LockState    LockState `json:"lock_state"`
	LastReason   Reason    `json:"last_reason,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	LockedAt     time.Time `json:"locked_at,omitzero"`
}

// NewRecord returns Open(0) for key.
func NewRecord(key Key, now time.Time) *Record {
	return &Record{
		CommunityID: key.CommunityID,
		UserID:      key.UserID,
		LockState:   StateOpen,
		UpdatedAt:   now.UTC(),
	}
}

// Key returns the record key.
func (r *Record) Key() Key {
	return Key{CommunityID: r.CommunityID, UserID: r.UserID}
}

// Clone returns an independent copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// State is the externally visible summary of a record.
type State struct {
	LockState    LockState `json:"lock_state"`
	AttemptCount int       `json:"attempt_count"`
	MaxAttempts  int       `json:"max_attempts"`
	LastReason   Reason    `json:"last_reason,omitempty"`
}

// Remaining returns how many strikes are left while open.
func (s State) Remaining() int {
	if s.LockState.Locked() {
		return 0
	}
	return max(s.MaxAttempts-s.AttemptCount, 0)
}

// String renders Open(n) or the lock state name.
func (s State) String() string {
	switch s.LockState {
	case StateLockedAwaitingAdmin:
		return "LockedAwaitingAdmin"
	case StateLockedUntilRejoin:
		return "LockedUntilRejoin"
	default:
		return fmt.Sprintf("Open(%d)", s.AttemptCount)
	}
}

// ErrLocked is returned when an analysis event is applied to a locked record.
var ErrLocked = errors.New("ledger record is locked")
