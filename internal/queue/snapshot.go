package queue

import "time"

// JobView is the reportable form of a job.
type JobView struct {
	SubmissionID string        `json:"submission_id"`
	CommunityID  string        `json:"community_id"`
	UserID       string        `json:"user_id"`
	ImageRef     string        `json:"image_ref"`
	Position     int           `json:"position"`
	EnqueuedAt   time.Time     `json:"enqueued_at"`
	ETA          time.Duration `json:"eta"`
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	Running    bool          `json:"running"`
	Depth      int           `json:"depth"`
	AverageJob time.Duration `json:"average_job"`
	InFlight   *JobView      `json:"in_flight,omitempty"`
	// RunningFor is how long the in-flight job has been processing.
	RunningFor time.Duration `json:"running_for,omitempty"`
	Pending    []JobView     `json:"pending"`
}

// Snapshot copies the queue state. Pending positions account for the
// in-flight job, matching the positions handed out by Enqueue.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	avg := q.eta.Average()
	snap := Snapshot{
		Running:    q.running,
		Depth:      q.depthLocked(),
		AverageJob: avg,
		Pending:    make([]JobView, 0, len(q.pending)),
	}
	offset := 0
	if q.inFlight != nil {
		view := viewOf(*q.inFlight, 1, avg)
		snap.InFlight = &view
		snap.RunningFor = q.clock().Sub(q.started)
		offset = 1
	}
	for i, job := range q.pending {
		position := i + 1 + offset
		snap.Pending = append(snap.Pending, viewOf(job, position, time.Duration(position)*avg))
	}
	return snap
}

func viewOf(job Job, position int, eta time.Duration) JobView {
	return JobView{
		SubmissionID: job.Submission.ID,
		CommunityID:  job.Submission.CommunityID,
		UserID:       job.Submission.UserID,
		ImageRef:     job.Submission.ImageRef,
		Position:     position,
		EnqueuedAt:   job.EnqueuedAt,
		ETA:          eta,
	}
}
