package quota

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const memorySweepEvery = time.Minute

// MemoryStore implements Store in process memory. State is local to one
// instance, so it does not enforce a global budget across replicas; it is
// the right backend for tests and single-instance deployments.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string]*memoryBucket
	now       func() time.Time
	lastSweep time.Time
}

type memoryBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
	idleTTL  time.Duration
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source (useful for tests).
func WithMemoryClock(fn func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*memoryBucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// TryConsume takes cost tokens from the keyed bucket, creating it full on
// first use. Never returns ErrStoreUnavailable.
func (s *MemoryStore) TryConsume(_ context.Context, key string, policy Policy, cost int64) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}
	now := s.now()
	b := s.bucket(key, policy, now)

	allowed := b.lim.AllowN(now, int(cost))
	tokens := b.lim.TokensAt(now)
	remaining := int64(math.Floor(tokens + 1e-9))
	if remaining < 0 {
		remaining = 0
	}

	perSecond := float64(policy.RefillQuantity) / policy.RefillInterval.Seconds()
	var retry time.Duration
	if allowed {
		if remaining < policy.Capacity {
			// Time until the token count crosses the next whole number.
			frac := tokens - math.Floor(tokens+1e-9)
			retry = time.Duration((1 - frac) / perSecond * float64(time.Second))
		}
	} else {
		need := float64(cost) - tokens
		retry = time.Duration(need / perSecond * float64(time.Second))
		if retry <= 0 {
			retry = time.Millisecond
		}
	}

	return Decision{Allowed: allowed, Remaining: remaining, RetryAfter: retry}, nil
}

func (s *MemoryStore) bucket(key string, policy Policy, now time.Time) *memoryBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= memorySweepEvery {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > b.idleTTL {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	b, ok := s.buckets[key]
	if !ok {
		limit := rate.Limit(float64(policy.RefillQuantity) / policy.RefillInterval.Seconds())
		b = &memoryBucket{
			lim:     rate.NewLimiter(limit, int(policy.Capacity)),
			idleTTL: policy.TimeToFull() + policy.RefillInterval,
		}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b
}
