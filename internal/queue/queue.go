package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warden/internal/evidence"
	"warden/internal/logging"
	"warden/internal/metrics"
	"warden/internal/services"
)

// Job is a submission waiting for, or undergoing, analysis.
type Job struct {
	Submission evidence.Submission
	EnqueuedAt time.Time
}

// Ticket acknowledges an accepted submission.
type Ticket struct {
	SubmissionID string        `json:"submission_id"`
	Position     int           `json:"position"`
	ETA          time.Duration `json:"eta"`
}

// ETASeconds rounds the ETA up to whole seconds.
func (t Ticket) ETASeconds() int {
	return int((t.ETA + time.Second - 1) / time.Second)
}

// RejectReason explains a refused submission.
type RejectReason string

const (
	RejectAlreadyQueued RejectReason = "already_queued"
	RejectLocked        RejectReason = "locked"
	RejectNotConfigured RejectReason = "not_configured"
)

// Rejection is returned by Enqueue when the submission is refused.
type Rejection struct {
	Reason RejectReason
	Detail string
	// Err is the underlying admission error, if any.
	Err error
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("submission rejected: %s", r.Reason)
	}
	return fmt.Sprintf("submission rejected: %s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Err }

// ErrorKind lets services classify rejections alongside other failures.
func (r *Rejection) ErrorKind() string {
	if r.Reason == RejectNotConfigured {
		return string(services.FailureConfiguration)
	}
	return string(services.FailureValidation)
}

// Reject builds a Rejection.
func Reject(reason RejectReason, detail string, err error) *Rejection {
	return &Rejection{Reason: reason, Detail: detail, Err: err}
}

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// AdmitFunc runs inside the enqueue critical section, after the duplicate
// check and before the append. Returning an error refuses the submission.
type AdmitFunc func(ctx context.Context, member evidence.Member) error

// Handler processes one job. It runs on the single worker goroutine.
type Handler func(ctx context.Context, job Job)

// ErrRunning is returned when Run is called twice.
var ErrRunning = errors.New("queue worker already running")

// Queue is a FIFO with exactly one worker. At most one job per member is
// queued or in flight.
type Queue struct {
	mu       sync.Mutex
	pending  []Job
	members  map[evidence.Member]string
	inFlight *Job
	started  time.Time
	running  bool

	wake    chan struct{}
	eta     *Estimator
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// New builds an empty queue around an ETA estimator.
func New(eta *Estimator, opts ...Option) *Queue {
	q := &Queue{
		members: make(map[evidence.Member]string),
		wake:    make(chan struct{}, 1),
		eta:     eta,
		clock:   time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.NewComponentLogger(q.logger, "queue")
	return q
}

// Enqueue admits sub unless the member already has a job, or admit refuses.
// The duplicate check, admit and the append happen under one lock.
func (q *Queue) Enqueue(ctx context.Context, sub evidence.Submission, admit AdmitFunc) (Ticket, error) {
	member := sub.Member()
	if err := member.Validate(); err != nil {
		return Ticket{}, services.Wrap(services.ErrValidation, "queue", "enqueue", "invalid member", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.members[member]; ok {
		q.metrics.IncrementSubmission(string(RejectAlreadyQueued))
		return Ticket{}, Reject(RejectAlreadyQueued, "submission "+existing+" is still pending", nil)
	}
	if admit != nil {
		if err := admit(ctx, member); err != nil {
			if rej, ok := AsRejection(err); ok {
				q.metrics.IncrementSubmission(string(rej.Reason))
			}
			return Ticket{}, err
		}
	}

	job := Job{Submission: sub, EnqueuedAt: q.clock().UTC()}
	q.pending = append(q.pending, job)
	q.members[member] = sub.ID
	position := q.depthLocked()
	ticket := Ticket{SubmissionID: sub.ID, Position: position, ETA: q.eta.ETA(position)}

	q.metrics.IncrementSubmission("accepted")
	q.metrics.SetQueue(position, q.eta.Average())
	q.logger.Info("submission queued",
		logging.String(logging.FieldSubmissionID, sub.ID),
		logging.String(logging.FieldCommunityID, member.CommunityID),
		logging.String(logging.FieldUserID, member.UserID),
		logging.Int("position", position),
		logging.Duration("eta", ticket.ETA),
	)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return ticket, nil
}

func (q *Queue) depthLocked() int {
	depth := len(q.pending)
	if q.inFlight != nil {
		depth++
	}
	return depth
}

// Contains reports whether the member has a queued or in-flight job.
func (q *Queue) Contains(member evidence.Member) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.members[member]
	return ok
}

// Depth counts queued and in-flight jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

// Average exposes the estimator's current average.
func (q *Queue) Average() time.Duration {
	return q.eta.Average()
}

// Run processes jobs until ctx is cancelled. Jobs still pending at shutdown
// are dropped and logged.
func (q *Queue) Run(ctx context.Context, handle Handler) error {
	if handle == nil {
		return errors.New("queue handler is required")
	}
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrRunning
	}
	q.running = true
	q.mu.Unlock()

	defer q.stop()

	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			q.finish(job, 0)
			return nil
		}

		start := q.clock()
		handle(services.WithSubmissionID(ctx, job.Submission.ID), job)
		q.finish(job, q.clock().Sub(start))
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending[0] = Job{}
	q.pending = q.pending[1:]
	q.inFlight = &job
	q.started = q.clock()
	return job, true
}

func (q *Queue) finish(job Job, elapsed time.Duration) {
	if elapsed > 0 {
		q.eta.Observe(elapsed)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = nil
	q.started = time.Time{}
	delete(q.members, job.Submission.Member())
	q.metrics.SetQueue(q.depthLocked(), q.eta.Average())
}

func (q *Queue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dropped := len(q.pending); dropped > 0 {
		q.logger.Warn("queue stopped with pending submissions",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldEventType, "queue_dropped"),
			logging.String(logging.FieldErrorHint, "members must resubmit after restart"),
			logging.String(logging.FieldImpact, "pending submissions were not analyzed"),
		)
	}
	q.pending = nil
	clear(q.members)
	q.inFlight = nil
	q.running = false
	q.metrics.SetQueue(0, q.eta.Average())
}
