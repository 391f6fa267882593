package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xrip       string
		trusted    *TrustedProxies
		want       string
	}{
		{"untrusted peer ignores headers", "198.51.100.10:1234", "203.0.113.5", "203.0.113.6", nil, "198.51.100.10"},
		{"peer not in list ignores headers", "198.51.100.10:1234", "203.0.113.5", "", trusted, "198.51.100.10"},
		{"trusted peer uses forwarded for", "10.0.0.20:1234", "203.0.113.5", "", trusted, "203.0.113.5"},
		{"skips trusted hops from the right", "10.0.0.20:1234", "203.0.113.5, 10.0.0.10", "", trusted, "203.0.113.5"},
		{"single trusted address", "192.168.1.10:80", "203.0.113.9", "", trusted, "203.0.113.9"},
		{"real ip when forwarded for unusable", "10.0.0.20:1234", "invalid", "203.0.113.7", trusted, "203.0.113.7"},
		{"all hops trusted returns leftmost", "10.0.0.20:1234", "10.0.0.5, 10.0.0.10", "", trusted, "10.0.0.5"},
		{"mapped ipv4 peer", "[::ffff:10.0.0.20]:1234", "203.0.113.5", "", trusted, "203.0.113.5"},
		{"bare remote addr", "198.51.100.10", "", "", nil, "198.51.100.10"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://example.com", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xrip != "" {
				req.Header.Set("X-Real-IP", tc.xrip)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"}); err != nil {
		t.Fatalf("expected valid entries, got err: %v", err)
	}
	if _, err := NewTrustedProxies([]string{"bad-cidr"}); err == nil {
		t.Fatalf("expected parse error for invalid entry")
	}
	if p, err := NewTrustedProxies([]string{" ", ""}); err != nil || p != nil {
		t.Fatalf("blank entries should trust nobody, got %v %v", p, err)
	}
}
