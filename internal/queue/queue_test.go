package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"warden/internal/config"
	"warden/internal/evidence"
	"warden/internal/metrics"
	"warden/internal/queue"
)

func submission(t *testing.T, community, user string) evidence.Submission {
	t.Helper()
	sub, err := evidence.NewSubmission(evidence.Member{CommunityID: community, UserID: user}, "file:///tmp/"+user+".png", time.Now())
	if err != nil {
		t.Fatalf("NewSubmission: %v", err)
	}
	return sub
}

func newQueue(opts ...queue.Option) *queue.Queue {
	return queue.New(queue.NewEstimator(config.Default().Queue), opts...)
}

func TestEnqueueReportsPositionAndETA(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	first, err := q.Enqueue(ctx, submission(t, "c1", "u1"), nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := q.Enqueue(ctx, submission(t, "c1", "u2"), nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.Position != 1 || first.ETA != 40*time.Second {
		t.Fatalf("unexpected first ticket %+v", first)
	}
	if second.Position != 2 || second.ETASeconds() != 80 {
		t.Fatalf("unexpected second ticket %+v", second)
	}
}

func TestEnqueueRejectsDuplicateMember(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	if _, err := q.Enqueue(ctx, submission(t, "c1", "u1"), nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	_, err := q.Enqueue(ctx, submission(t, "c1", "u1"), nil)
	rej, ok := queue.AsRejection(err)
	if !ok || rej.Reason != queue.RejectAlreadyQueued {
		t.Fatalf("expected already-queued rejection, got %v", err)
	}
	if _, err := q.Enqueue(ctx, submission(t, "c2", "u1"), nil); err != nil {
		t.Fatalf("same user in another community should be accepted: %v", err)
	}
}

func TestEnqueueAdmitRejection(t *testing.T) {
	q := newQueue()
	admit := func(context.Context, evidence.Member) error {
		return queue.Reject(queue.RejectLocked, "LockedAwaitingAdmin", nil)
	}
	_, err := q.Enqueue(context.Background(), submission(t, "c1", "u1"), admit)
	rej, ok := queue.AsRejection(err)
	if !ok || rej.Reason != queue.RejectLocked {
		t.Fatalf("expected locked rejection, got %v", err)
	}
	if q.Depth() != 0 {
		t.Fatalf("rejected submission was queued")
	}

	boom := errors.New("ledger down")
	_, err = q.Enqueue(context.Background(), submission(t, "c1", "u1"), func(context.Context, evidence.Member) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected admit error to pass through, got %v", err)
	}
}

func TestConcurrentDoubleSubmissionQueuesOnce(t *testing.T) {
	q := newQueue()
	const attempts = 32
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range attempts {
		sub := submission(t, "c1", "u1")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Enqueue(context.Background(), sub, nil); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	if accepted.Load() != 1 || q.Depth() != 1 {
		t.Fatalf("expected exactly one accepted job, got %d (depth %d)", accepted.Load(), q.Depth())
	}
}

func TestRunProcessesInArrivalOrder(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{})
	const total = 5
	handler := func(ctx context.Context, job queue.Job) {
		mu.Lock()
		order = append(order, job.Submission.UserID)
		n := len(order)
		mu.Unlock()
		if n == total {
			close(done)
		}
	}

	for i := range total {
		if _, err := q.Enqueue(ctx, submission(t, "c1", fmt.Sprintf("u%d", i)), nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- q.Run(ctx, handler) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for i, user := range order {
		if want := fmt.Sprintf("u%d", i); user != want {
			t.Fatalf("job %d processed out of order: got %s want %s (%v)", i, user, want, order)
		}
	}
}

func TestRunSingleWorkerAndReleasesMember(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, peak atomic.Int32
	processed := make(chan string, 4)
	handler := func(ctx context.Context, job queue.Job) {
		if n := active.Add(1); n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		processed <- job.Submission.UserID
	}
	go func() { _ = q.Run(ctx, handler) }()

	for _, user := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, submission(t, "c1", user), nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	for range 3 {
		select {
		case <-processed:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for job")
		}
	}
	if peak.Load() != 1 {
		t.Fatalf("expected a single worker, saw %d concurrent jobs", peak.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Contains(evidence.Member{CommunityID: "c1", UserID: "c"}) {
		if time.Now().After(deadline) {
			t.Fatal("member still marked queued after processing")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := q.Enqueue(ctx, submission(t, "c1", "a"), nil); err != nil {
		t.Fatalf("member should be able to resubmit after processing: %v", err)
	}
}

func TestRunTwiceFails(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	go func() {
		close(started)
		_ = q.Run(ctx, func(context.Context, queue.Job) {})
	}()
	<-started

	deadline := time.Now().Add(2 * time.Second)
	for !q.Snapshot().Running {
		if time.Now().After(deadline) {
			t.Fatal("worker never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := q.Run(ctx, func(context.Context, queue.Job) {}); !errors.Is(err, queue.ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
}

func TestSnapshotCountsInFlightJob(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = q.Run(ctx, func(ctx context.Context, job queue.Job) {
			close(entered)
			<-release
		})
	}()

	if _, err := q.Enqueue(ctx, submission(t, "c1", "first"), nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-entered
	ticket, err := q.Enqueue(ctx, submission(t, "c1", "second"), nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if ticket.Position != 2 || ticket.ETA != 80*time.Second {
		t.Fatalf("expected position 2 behind the in-flight job, got %+v", ticket)
	}

	snap := q.Snapshot()
	if snap.Depth != 2 || snap.InFlight == nil || snap.InFlight.UserID != "first" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Pending) != 1 || snap.Pending[0].Position != 2 || snap.Pending[0].UserID != "second" {
		t.Fatalf("unexpected pending list %+v", snap.Pending)
	}
	close(release)
}

func TestQueueMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := newQueue(queue.WithMetrics(m))
	ctx := context.Background()
	if _, err := q.Enqueue(ctx, submission(t, "c1", "u1"), nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	_, _ = q.Enqueue(ctx, submission(t, "c1", "u1"), nil)

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("accepted")); got != 1 {
		t.Fatalf("expected 1 accepted, got %v", got)
	}
	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("already_queued")); got != 1 {
		t.Fatalf("expected 1 already_queued, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Fatalf("expected depth gauge 1, got %v", got)
	}
}
