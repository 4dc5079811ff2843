package api

import (
	"time"

	"warden/internal/directory"
	"warden/internal/ledger"
	"warden/internal/queue"
)

// FromSnapshot converts a queue snapshot for transport.
func FromSnapshot(s queue.Snapshot) QueueView {
	view := QueueView{
		Running:        s.Running,
		Depth:          s.Depth,
		AverageSeconds: s.AverageJob.Seconds(),
		Pending:        make([]JobView, 0, len(s.Pending)),
	}
	if s.InFlight != nil {
		job := fromJob(*s.InFlight)
		view.InFlight = &job
		view.RunningForSeconds = s.RunningFor.Seconds()
	}
	for _, job := range s.Pending {
		view.Pending = append(view.Pending, fromJob(job))
	}
	return view
}

func fromJob(j queue.JobView) JobView {
	return JobView{
		SubmissionID: j.SubmissionID,
		CommunityID:  j.CommunityID,
		UserID:       j.UserID,
		ImageRef:     j.ImageRef,
		Position:     j.Position,
		EnqueuedAt:   formatTime(j.EnqueuedAt),
		ETASeconds:   queue.Ticket{ETA: j.ETA}.ETASeconds(),
	}
}

// FromState converts a ledger state. rec may be nil for members without a
// record.
func FromState(key ledger.Key, state ledger.State, rec *ledger.Record) LedgerView {
	view := LedgerView{
		CommunityID:  key.CommunityID,
		UserID:       key.UserID,
		State:        state.String(),
		LockState:    string(state.LockState),
		AttemptCount: state.AttemptCount,
		MaxAttempts:  state.MaxAttempts,
		Remaining:    state.Remaining(),
		LastReason:   string(state.LastReason),
	}
	if rec != nil {
		view.UpdatedAt = formatTime(rec.UpdatedAt)
		view.LockedAt = formatTime(rec.LockedAt)
	}
	return view
}

// FromRecord converts a stored record under policy.
func FromRecord(rec *ledger.Record, policy ledger.Policy) LedgerView {
	state := ledger.State{
		LockState:    rec.LockState,
		AttemptCount: rec.AttemptCount,
		MaxAttempts:  policy.MaxAttempts,
		LastReason:   rec.LastReason,
	}
	return FromState(rec.Key(), state, rec)
}

// FromDirectoryStats converts directory load statistics.
func FromDirectoryStats(stats directory.Stats, err error) DirectoryStatus {
	status := DirectoryStatus{
		Path:              stats.Path,
		Entries:           stats.Entries,
		Rows:              stats.Rows,
		SkippedNonNumeric: stats.SkippedNonNumeric,
		Duplicates:        stats.Duplicates,
		LoadedAt:          formatTime(stats.LoadedAt),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
