package intentpay

import (
	"context"
	"sync"
	"time"
)

// PollConfig configures one polling loop.
type PollConfig struct {
	// Interval is the delay re-armed after each settled attempt, success
	// or failure. Polling is not fixed-rate, so attempts never overlap.
	Interval time.Duration

	// InitialDelay postpones the first attempt. Zero polls immediately.
	InitialDelay time.Duration

	// Poll performs one fetch.
	Poll func(ctx context.Context) (interface{}, error)

	// OnResult is invoked on every successful fetch, even if whatever
	// state governed the poll has since changed. Staleness is the
	// caller's concern: check current state here and stop if stale.
	OnResult func(result interface{})

	// OnError is invoked on failed attempts. Optional; transient poll
	// failures are usually just logged and retried on the next tick.
	OnError func(err error)
}

// StartPolling runs cfg.Poll on a cancellable loop: one immediate attempt
// (after InitialDelay, if set), then again Interval after each attempt
// settles. The returned stop function cancels the loop and is safe to call
// more than once. The poller knows nothing about payments or state; it is
// a keyed-ownership primitive for the coordinator's registry.
func StartPolling(cfg PollConfig) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if cfg.InitialDelay > 0 {
			if !sleep(ctx, cfg.InitialDelay) {
				return
			}
		}
		for {
			result, err := cfg.Poll(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if cfg.OnError != nil {
					cfg.OnError(err)
				}
			} else if cfg.OnResult != nil {
				cfg.OnResult(result)
			}
			if !sleep(ctx, cfg.Interval) {
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
