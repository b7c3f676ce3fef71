// Package retry is the pure retry/backoff decision engine: it maps an
// execution outcome to the job's next state and next eligible time. It
// touches no storage; the worker loop persists whatever it decides.
package retry

import (
	"time"

	"github.com/scarson/queuectl/internal/store"
)

// maxDelay caps the exponential backoff. base^attempts overflows int64
// quickly for large attempt counts; 30 days is already "never" for a
// single-host queue.
const maxDelay = 30 * 24 * time.Hour

// Decision is the outcome of Decide: the state to persist and, when State
// is pending, how long the job must wait before becoming claimable again.
type Decision struct {
	State store.State
	Delay time.Duration
}

// NextRun converts the decision into an epoch-seconds next_run value.
// Terminal states keep next_run at now; it is only consulted while pending.
func (d Decision) NextRun(now time.Time) int64 {
	return now.Add(d.Delay).Unix()
}

// Decide maps one finished execution to the job's next state.
//
// attempts is the post-increment count set by the claim, so the first
// execution arrives here with attempts == 1. A job with max_retries = r is
// therefore executed r+1 times before going dead, and the backoff delays
// grow as base^1, base^2, base^3, ...
func Decide(exitCode, attempts, maxRetries, backoffBase int) Decision {
	if exitCode == 0 {
		return Decision{State: store.StateCompleted}
	}
	if attempts > maxRetries {
		return Decision{State: store.StateDead}
	}
	return Decision{State: store.StatePending, Delay: backoff(backoffBase, attempts)}
}

// backoff computes base^attempts seconds with saturation at maxDelay.
func backoff(base, attempts int) time.Duration {
	if base < 1 {
		base = 1
	}
	d := time.Second
	for i := 0; i < attempts; i++ {
		d *= time.Duration(base)
		if d >= maxDelay || d < 0 {
			return maxDelay
		}
	}
	return d
}
