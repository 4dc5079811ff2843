package api

import (
	"warden/internal/community"
	"warden/internal/directory"
	"warden/internal/review"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the body of POST /api/submissions.
type SubmitRequest struct {
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
	ImageRef    string `json:"image_ref"`
}

// SubmitResponse answers a submission. Reason is set when Accepted is false.
type SubmitResponse struct {
	Accepted     bool   `json:"accepted"`
	SubmissionID string `json:"submission_id,omitempty"`
	Position     int    `json:"position,omitempty"`
	ETASeconds   int    `json:"eta_seconds,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message"`
}

// JobView describes a queued or in-flight submission.
type JobView struct {
	SubmissionID string `json:"submission_id"`
	CommunityID  string `json:"community_id"`
	UserID       string `json:"user_id"`
	ImageRef     string `json:"image_ref"`
	Position     int    `json:"position"`
	EnqueuedAt   string `json:"enqueued_at"`
	ETASeconds   int    `json:"eta_seconds"`
}

// QueueView summarizes the verification queue.
type QueueView struct {
	Running           bool      `json:"running"`
	Depth             int       `json:"depth"`
	AverageSeconds    float64   `json:"average_seconds"`
	InFlight          *JobView  `json:"in_flight,omitempty"`
	RunningForSeconds float64   `json:"running_for_seconds,omitempty"`
	Pending           []JobView `json:"pending"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DirectoryStatus reports the identity directory source.
type DirectoryStatus struct {
	Path              string `json:"path"`
	Entries           int    `json:"entries"`
	Rows              int    `json:"rows"`
	SkippedNonNumeric int    `json:"skipped_non_numeric"`
	Duplicates        int    `json:"duplicates"`
	LoadedAt          string `json:"loaded_at,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Status is the daemon summary served by GET /api/status.
type Status struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	StartedAt       string             `json:"started_at,omitempty"`
	DatabasePath    string             `json:"database_path"`
	LockFilePath    string             `json:"lock_file_path"`
	LedgerBackend   string             `json:"ledger_backend"`
	GatewayMode     string             `json:"gateway_mode"`
	Queue           QueueView          `json:"queue"`
	Directory       DirectoryStatus    `json:"directory"`
	Dependencies    []DependencyStatus `json:"dependencies"`
	DepartedMembers int                `json:"departed_members"`
}

// LedgerView is one member's attempt record.
type LedgerView struct {
	CommunityID  string `json:"community_id"`
	UserID       string `json:"user_id"`
	State        string `json:"state"`
	LockState    string `json:"lock_state"`
	AttemptCount int    `json:"attempt_count"`
	MaxAttempts  int    `json:"max_attempts"`
	Remaining    int    `json:"remaining"`
	LastReason   string `json:"last_reason,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	LockedAt     string `json:"locked_at,omitempty"`
}

// LockedListResponse lists locked members of a community.
type LockedListResponse struct {
	CommunityID string       `json:"community_id"`
	Records     []LedgerView `json:"records"`
}

// UnlockRequest names the operator performing an unlock.
type UnlockRequest struct {
	Actor string `json:"actor"`
}

// UnlockResponse reports an unlock.
type UnlockResponse struct {
	Previous      string     `json:"previous"`
	Ledger        LedgerView `json:"ledger"`
	ResolvedCases int        `json:"resolved_cases"`
}

// MemberEventResponse answers join and leave events.
type MemberEventResponse struct {
	Active  bool       `json:"active"`
	Changed bool       `json:"changed"`
	Ledger  LedgerView `json:"ledger"`
}

// CommunityListResponse lists configured communities.
type CommunityListResponse struct {
	Communities []*community.Settings `json:"communities"`
}

// ReviewListResponse lists review cases.
type ReviewListResponse struct {
	Cases []*review.Case `json:"cases"`
}

// ResolveRequest closes a review case.
type ResolveRequest struct {
	Actor      string `json:"actor"`
	Resolution string `json:"resolution"`
}

// DirectoryLookupResponse answers GET /api/directory/{id}.
type DirectoryLookupResponse struct {
	Entry directory.Entry `json:"entry"`
}

// ErrorResponse is the body of every non-2xx response except submission
// rejections.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
