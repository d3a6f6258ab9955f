package quota

import (
	"fmt"
	"strings"
	"time"
)

// FailMode is the explicit degradation choice for a policy when the shared
// store is unreachable: open keeps serving, closed rejects.
type FailMode int

const (
	FailOpen FailMode = iota
	FailClosed
)

// ParseFailMode parses the configuration spelling of a fail mode.
func ParseFailMode(raw string) (FailMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("quota: unknown fail mode %q", raw)
	}
}

// Policy is a named, static bandwidth configuration. Policies do not change
// at runtime.
type Policy struct {
	Name           string
	Capacity       int64
	RefillQuantity int64
	RefillInterval time.Duration
	FailMode       FailMode
}

// TokenPeriod returns the wall-clock time a single token takes to accrue.
func (p Policy) TokenPeriod() time.Duration {
	if p.RefillQuantity <= 0 {
		return p.RefillInterval
	}
	return p.RefillInterval / time.Duration(p.RefillQuantity)
}

// TimeToFull returns how long an empty bucket takes to refill completely.
func (p Policy) TimeToFull() time.Duration {
	return p.TokenPeriod() * time.Duration(p.Capacity)
}

// PolicySet holds the five named policies of the reference deployment.
type PolicySet struct {
	Anonymous      Policy
	Authenticated  Policy
	WriteOperation Policy
	ReviewCreation Policy
	LoginAttempt   Policy
}

// Selection is the selector's verdict for one request.
type Selection struct {
	// Skip marks paths that never touch the quota store (health, metrics).
	Skip bool
	// Class is the bucket key prefix; combined with a principal it names
	// one bucket (`<class>:<principal>`).
	Class string
	// RequireIdentity marks operations that structurally need an
	// authenticated caller; anonymous requests are rejected before the
	// store is consulted.
	RequireIdentity bool
	// KeyByClientIP forces network-address bucketing even for
	// authenticated callers (login-attempt class).
	KeyByClientIP bool
	Policy        Policy
}

type rule struct {
	methods         []string
	path            string
	pathPrefix      string
	requireIdentity bool
	keyByClientIP   bool
	policy          Policy
}

func (r rule) matches(method, path string) bool {
	if len(r.methods) > 0 {
		ok := false
		for _, m := range r.methods {
			if m == method {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.path != "" {
		return path == r.path
	}
	if r.pathPrefix != "" {
		return strings.HasPrefix(path, r.pathPrefix)
	}
	return true
}

// Selector maps (method, path, identity presence) to a bandwidth policy.
// Rules form an explicit, ordered precedence list evaluated top to bottom;
// the most specific named policy wins and the authenticated/anonymous tiers
// are the total fallback. Pure function, no I/O.
type Selector struct {
	skip          map[string]struct{}
	rules         []rule
	authenticated Policy
	anonymous     Policy
}

// NewSelector builds the reference precedence list over the given policies.
func NewSelector(set PolicySet) *Selector {
	set.Anonymous.Name = "anonymous"
	set.Authenticated.Name = "authenticated"
	set.WriteOperation.Name = "write-operation"
	set.ReviewCreation.Name = "review-creation"
	set.LoginAttempt.Name = "login-attempt"

	return &Selector{
		skip: map[string]struct{}{
			"/healthz": {},
			"/readyz":  {},
			"/metrics": {},
		},
		rules: []rule{
			// Auth endpoints are keyed by caller address: the caller is by
			// definition not (reliably) authenticated yet.
			{methods: []string{"POST"}, pathPrefix: "/v1/auth/", keyByClientIP: true, policy: set.LoginAttempt},
			{methods: []string{"POST"}, path: "/v1/reviews", requireIdentity: true, policy: set.ReviewCreation},
			{methods: []string{"POST", "PUT", "PATCH", "DELETE"}, requireIdentity: true, policy: set.WriteOperation},
		},
		authenticated: set.Authenticated,
		anonymous:     set.Anonymous,
	}
}

// Select returns the policy verdict for a request. Total: every request gets
// a policy unless its path is on the skip list.
func (s *Selector) Select(method, path string, hasIdentity bool) Selection {
	if _, ok := s.skip[path]; ok {
		return Selection{Skip: true}
	}
	for _, r := range s.rules {
		if r.matches(method, path) {
			return Selection{
				Class:           r.policy.Name,
				RequireIdentity: r.requireIdentity,
				KeyByClientIP:   r.keyByClientIP,
				Policy:          r.policy,
			}
		}
	}
	if hasIdentity {
		return Selection{Class: s.authenticated.Name, Policy: s.authenticated}
	}
	return Selection{Class: s.anonymous.Name, KeyByClientIP: true, Policy: s.anonymous}
}
