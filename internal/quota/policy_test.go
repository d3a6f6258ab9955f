package quota

import (
	"testing"
	"time"
)

func testPolicySet() PolicySet {
	return PolicySet{
		Anonymous:      Policy{Capacity: 10, RefillQuantity: 10, RefillInterval: time.Minute, FailMode: FailOpen},
		Authenticated:  Policy{Capacity: 100, RefillQuantity: 100, RefillInterval: time.Minute, FailMode: FailOpen},
		WriteOperation: Policy{Capacity: 20, RefillQuantity: 20, RefillInterval: time.Minute, FailMode: FailOpen},
		ReviewCreation: Policy{Capacity: 5, RefillQuantity: 5, RefillInterval: time.Hour, FailMode: FailOpen},
		LoginAttempt:   Policy{Capacity: 5, RefillQuantity: 5, RefillInterval: 15 * time.Minute, FailMode: FailClosed},
	}
}

func TestSelectorPrecedence(t *testing.T) {
	sel := NewSelector(testPolicySet())

	tests := []struct {
		name        string
		method      string
		path        string
		hasIdentity bool

		wantSkip      bool
		wantClass     string
		wantRequireID bool
		wantByIP      bool
	}{
		{name: "health skipped", method: "GET", path: "/healthz", wantSkip: true},
		{name: "ready skipped", method: "GET", path: "/readyz", wantSkip: true},
		{name: "metrics skipped", method: "GET", path: "/metrics", wantSkip: true},

		{name: "login", method: "POST", path: "/v1/auth/login", wantClass: "login-attempt", wantByIP: true},
		{name: "refresh", method: "POST", path: "/v1/auth/refresh", wantClass: "login-attempt", wantByIP: true},
		// Login policy is keyed by address even when a token is presented.
		{name: "login with identity", method: "POST", path: "/v1/auth/login", hasIdentity: true, wantClass: "login-attempt", wantByIP: true},

		{name: "review creation beats generic write", method: "POST", path: "/v1/reviews", hasIdentity: true, wantClass: "review-creation", wantRequireID: true},
		{name: "review delete", method: "DELETE", path: "/v1/reviews/42", hasIdentity: true, wantClass: "write-operation", wantRequireID: true},
		{name: "put elsewhere", method: "PUT", path: "/v1/titles/7", hasIdentity: true, wantClass: "write-operation", wantRequireID: true},

		{name: "read with identity", method: "GET", path: "/v1/reviews", hasIdentity: true, wantClass: "authenticated"},
		{name: "read anonymous", method: "GET", path: "/v1/reviews", wantClass: "anonymous", wantByIP: true},
		{name: "identity check endpoint", method: "GET", path: "/v1/auth/me", hasIdentity: true, wantClass: "authenticated"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sel.Select(tc.method, tc.path, tc.hasIdentity)
			if got.Skip != tc.wantSkip {
				t.Fatalf("Skip = %v, want %v", got.Skip, tc.wantSkip)
			}
			if got.Skip {
				return
			}
			if got.Class != tc.wantClass {
				t.Errorf("Class = %q, want %q", got.Class, tc.wantClass)
			}
			if got.Policy.Name != tc.wantClass {
				t.Errorf("Policy.Name = %q, want %q", got.Policy.Name, tc.wantClass)
			}
			if got.RequireIdentity != tc.wantRequireID {
				t.Errorf("RequireIdentity = %v, want %v", got.RequireIdentity, tc.wantRequireID)
			}
			if got.KeyByClientIP != tc.wantByIP {
				t.Errorf("KeyByClientIP = %v, want %v", got.KeyByClientIP, tc.wantByIP)
			}
		})
	}
}

func TestSelectorIsTotal(t *testing.T) {
	sel := NewSelector(testPolicySet())
	for _, method := range []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
		got := sel.Select(method, "/v1/whatever", false)
		if got.Skip {
			t.Fatalf("%s /v1/whatever: unexpected skip", method)
		}
		if got.Policy.Name == "" {
			t.Fatalf("%s /v1/whatever: no policy selected", method)
		}
	}
}

func TestPolicyTokenPeriod(t *testing.T) {
	p := Policy{Capacity: 5, RefillQuantity: 5, RefillInterval: 15 * time.Minute}
	if got, want := p.TokenPeriod(), 3*time.Minute; got != want {
		t.Errorf("TokenPeriod() = %v, want %v", got, want)
	}
	if got, want := p.TimeToFull(), 15*time.Minute; got != want {
		t.Errorf("TimeToFull() = %v, want %v", got, want)
	}
}

func TestParseFailMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    FailMode
		wantErr bool
	}{
		{raw: "open", want: FailOpen},
		{raw: "closed", want: FailClosed},
		{raw: "OPEN", want: FailOpen},
		{raw: "ajar", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseFailMode(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFailMode(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFailMode(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFailMode(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
