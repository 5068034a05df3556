// Package progress aggregates completion counts from concurrent workers and
// logs a line each time another whole percent of the work is done.
package progress

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reporter owns the single goroutine that consumes completion counts.
// A nil *Reporter accepts Add and Stop as no-ops.
type Reporter struct {
	total  int
	ch     chan int
	done   chan struct{}
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	completed int
}

// Start launches the aggregator for total units of work.
func Start(total int, logger *zap.Logger) *Reporter {
	return start(total, logger, time.Now)
}

func start(total int, logger *zap.Logger, now func() time.Time) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{
		total:  total,
		ch:     make(chan int, 64),
		done:   make(chan struct{}),
		logger: logger,
		now:    now,
	}
	go r.run()
	return r
}

// Add records n finished units.
func (r *Reporter) Add(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.ch <- n
}

// Stop sends the terminating value and waits for the aggregator to exit.
func (r *Reporter) Stop() {
	if r == nil {
		return
	}
	r.ch <- -1
	<-r.done
}

// Completed returns the number of units counted so far.
func (r *Reporter) Completed() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

func (r *Reporter) run() {
	defer close(r.done)

	begin := r.now()
	lastPct := 0
	for n := range r.ch {
		if n < 0 {
			return
		}
		r.mu.Lock()
		r.completed += n
		completed := r.completed
		r.mu.Unlock()

		if r.total <= 0 {
			continue
		}
		pct := completed * 100 / r.total
		if pct <= lastPct {
			continue
		}
		lastPct = pct
		r.logger.Info(Line(completed, r.total, r.now().Sub(begin)))
	}
}

// Line formats one progress message, extrapolating the remaining time from
// the average rate so far.
func Line(completed, total int, elapsed time.Duration) string {
	var remaining time.Duration
	if completed > 0 && completed < total {
		remaining = time.Duration(float64(elapsed) / float64(completed) * float64(total-completed))
	}
	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	return fmt.Sprintf("Progress: %d%% (%d / %d) [%s < %s]",
		pct, completed, total, clock(elapsed), clock(remaining))
}

// clock renders a duration as HH:MM:SS.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}
