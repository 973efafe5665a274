package twin

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// runner owns a twin's update cadence. Construction does not start the
// ticker; Start and Stop are explicit so a skipped teardown cannot leak a
// goroutine past registry Close.
type runner struct {
	twin   *Twin
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	override time.Duration // test hook: nonzero replaces the variant period
}

func newRunner(t *Twin, logger *slog.Logger) *runner {
	return &runner{twin: t, logger: logger}
}

// Start launches the periodic tick loop. Starting a running runner is a
// no-op.
func (r *runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	period := r.twin.v.period()
	if r.override > 0 {
		period = r.override
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, period, r.done)
}

func (r *runner) loop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.twin.Tick()
		}
	}
}

// Stop cancels the tick loop and waits for it to exit. Safe to call on a
// never-started or already-stopped runner.
func (r *runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Debug("twin runner stopped", "subject_id", r.twin.subjectID)
}
