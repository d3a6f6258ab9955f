package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/v1/reviews":             "/v1/reviews",
		"/v1/reviews/abc":         "/v1/reviews/:id",
		"/v1/reviews/abc/extra":   "/v1/reviews/abc/extra",
		"/v1/reviews?limit=10":    "/v1/reviews",
		"/v1/auth/login":          "/v1/auth/login",
		"/v1/reviews/abc?fields=": "/v1/reviews/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
