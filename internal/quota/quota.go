// Package quota implements distributed request quotas: named bandwidth
// policies, a pure policy selector, and token-bucket stores with continuous
// refill. Bucket state lives in a shared key-value store; the process holds
// no authoritative copy, so correctness across instances rests entirely on
// the store's atomic per-key operation.
package quota

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable reports a failed or timed-out store round trip. It is
// distinct from "not enough tokens": callers must decide fail-open vs
// fail-closed explicitly instead of treating outages as allow or deny.
var ErrStoreUnavailable = errors.New("quota: store unavailable")

// Decision is the outcome of a single consume attempt.
//
// RetryAfter semantics: when Allowed, it is the time until the next token
// accrues (zero when the bucket is full) so well-behaved clients can
// self-throttle; when denied, it is the time until the requested cost is
// covered and is always positive.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Store atomically consumes tokens from a named bucket, creating the bucket
// with the policy's configuration on first use.
type Store interface {
	TryConsume(ctx context.Context, key string, policy Policy, cost int64) (Decision, error)
}
