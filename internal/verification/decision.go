package verification

import (
	"time"

	"warden/internal/evidence"
	"warden/internal/ledger"
	"warden/internal/services"
)

// Kind classifies the outcome of one processed submission.
type Kind string

const (
	KindVerified           Kind = "verified"
	KindRetryableReject    Kind = "retryable_reject"
	KindTransientRetry     Kind = "transient_retry"
	KindEscalated          Kind = "escalated"
	KindRejected           Kind = "rejected"
	KindConfigurationError Kind = "configuration_error"
)

// Terminal reports whether the member has to involve someone else to
// continue.
func (k Kind) Terminal() bool {
	return k == KindEscalated || k == KindRejected || k == KindConfigurationError
}

// Reason names why a decision was taken. Values line up with the ledger and
// the review case reasons.
type Reason string

const (
	ReasonVerified      Reason = "verified"
	ReasonUnreadable    Reason = "no_identifier_found"
	ReasonInauthentic   Reason = "authenticity_check_failed"
	ReasonTransient     Reason = "transient_io_error"
	ReasonMismatch      Reason = "identity_mismatch"
	ReasonStrikeLimit   Reason = "strike_limit"
	ReasonLocked        Reason = "locked"
	ReasonConfiguration Reason = "configuration"
)

// Decision is the result of HandleSubmission. Adapters turn it into
// platform actions; the coordinator has already delivered Message through
// the gateway.
type Decision struct {
	Kind         Kind                    `json:"kind"`
	Reason       Reason                  `json:"reason"`
	SubmissionID string                  `json:"submission_id"`
	CommunityID  string                  `json:"community_id"`
	UserID       string                  `json:"user_id"`
	ImageRef     string                  `json:"image_ref"`
	Result       evidence.AnalysisResult `json:"result"`
	// CanonicalName is set for KindVerified.
	CanonicalName string       `json:"canonical_name,omitempty"`
	State         ledger.State `json:"state"`
	Message       string       `json:"message"`
	Detail        string       `json:"detail,omitempty"`
	ReviewCaseID  string       `json:"review_case_id,omitempty"`
	// Failure classifies the error behind a mismatch or configuration
	// decision.
	Failure services.FailureKind `json:"failure,omitempty"`
	// PrivilegeSuppressed is true when the member left before the decision
	// and the grant and rename were skipped.
	PrivilegeSuppressed bool          `json:"privilege_suppressed,omitempty"`
	DecidedAt           time.Time     `json:"decided_at"`
	Elapsed             time.Duration `json:"elapsed"`
}

// Member returns the decision's member key.
func (d Decision) Member() evidence.Member {
	return evidence.Member{CommunityID: d.CommunityID, UserID: d.UserID}
}

// Locked reports whether the member is locked after this decision.
func (d Decision) Locked() bool {
	return d.State.LockState.Locked()
}
