package service

import (
	"context"
	"time"
)

// DefaultReconcileDelay is the fixed wait before the single re-fetch that
// observes an asynchronous backend transition.
const DefaultReconcileDelay = 2 * time.Second

// Poller schedules single-shot delayed fetches. There is no retry and no
// backoff.
type Poller struct {
	delay time.Duration
}

func NewPoller(delay time.Duration) *Poller {
	if delay < 0 {
		delay = 0
	}
	return &Poller{delay: delay}
}

func (p *Poller) Delay() time.Duration { return p.delay }

// Schedule runs fetch once after the delay. The timer is stopped when ctx
// ends first, and fetch is skipped if ctx is already done when it fires.
// The returned func cancels the scheduled fetch and reports whether it did.
func (p *Poller) Schedule(ctx context.Context, fetch func(ctx context.Context)) func() bool {
	timer := time.AfterFunc(p.delay, func() {
		if ctx.Err() != nil {
			return
		}
		fetch(ctx)
	})
	stopOnDone := context.AfterFunc(ctx, func() { timer.Stop() })
	return func() bool {
		stopOnDone()
		return timer.Stop()
	}
}
