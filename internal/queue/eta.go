package queue

import (
	"sync"
	"time"

	"warden/internal/config"
)

// Estimator keeps an exponential moving average of per-job wall-clock
// duration, clamped to [Min, Max] after every update.
type Estimator struct {
	mu    sync.Mutex
	alpha float64
	min   time.Duration
	max   time.Duration
	avg   time.Duration
}

// NewEstimator builds an estimator from the queue config section.
func NewEstimator(cfg config.Queue) *Estimator {
	return newEstimator(
		cfg.SmoothingFactor,
		time.Duration(cfg.InitialETASeconds)*time.Second,
		time.Duration(cfg.MinETASeconds)*time.Second,
		time.Duration(cfg.MaxETASeconds)*time.Second,
	)
}

func newEstimator(alpha float64, initial, minDur, maxDur time.Duration) *Estimator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	e := &Estimator{alpha: alpha, min: minDur, max: maxDur}
	e.avg = e.clamp(initial)
	return e
}

func (e *Estimator) clamp(d time.Duration) time.Duration {
	if d < e.min {
		return e.min
	}
	if e.max > 0 && d > e.max {
		return e.max
	}
	return d
}

// Observe folds one job duration into the average.
func (e *Estimator) Observe(observed time.Duration) {
	if observed < 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := float64(e.avg) + e.alpha*float64(observed-e.avg)
	e.avg = e.clamp(time.Duration(next))
}

// Average returns the current clamped average.
func (e *Estimator) Average() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avg
}

// ETA is position times the average. Position 1 is the next job to run.
func (e *Estimator) ETA(position int) time.Duration {
	if position <= 0 {
		return 0
	}
	return time.Duration(position) * e.Average()
}
