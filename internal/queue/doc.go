// Package queue holds submissions waiting for analysis.
//
// The queue is a strict FIFO drained by a single worker goroutine; no two
// analyses ever run at once. A member may have at most one job queued or in
// flight. Enqueue reports the job's position, counting any in-flight job,
// and an ETA derived from a moving average of recent job durations.
//
// Jobs live in memory only. A daemon restart drops pending submissions and
// members resubmit.
package queue
