package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/alfredjeanlab/podium/internal/workflow"
)

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	}
	for _, tc := range []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     []string
		xri     string
		want    string
	}{
		{name: "PeerOnly", remote: "198.51.100.4:5123", want: "198.51.100.4"},
		{name: "PeerIPv6", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "MappedPeer", remote: "[::ffff:198.51.100.4]:80", want: "198.51.100.4"},
		{name: "NoPort", remote: "198.51.100.4", want: "198.51.100.4"},
		{name: "SpoofedXFFIgnored", remote: "198.51.100.4:5123", xff: []string{"203.0.113.9"}, want: "198.51.100.4"},
		{name: "SpoofedXRIIgnored", remote: "198.51.100.4:5123", xri: "203.0.113.9", want: "198.51.100.4"},
		{name: "UntrustedPeerWithList", trusted: proxies, remote: "198.51.100.4:5123", xff: []string{"203.0.113.9"}, want: "198.51.100.4"},
		{name: "TrustedProxyXFF", trusted: proxies, remote: "10.1.2.3:40000", xff: []string{"203.0.113.9"}, want: "203.0.113.9"},
		{
			name:    "RightmostUntrustedHop",
			trusted: proxies,
			remote:  "10.1.2.3:40000",
			xff:     []string{"1.1.1.1, 203.0.113.9, 10.9.9.9"},
			want:    "203.0.113.9",
		},
		{
			name:    "MultipleHeaderLines",
			trusted: proxies,
			remote:  "10.1.2.3:40000",
			xff:     []string{"1.1.1.1", "203.0.113.9"},
			want:    "203.0.113.9",
		},
		{name: "TrustedProxyXRI", trusted: proxies, remote: "10.1.2.3:40000", xri: "203.0.113.9", want: "203.0.113.9"},
		{name: "TrustedIPv6Proxy", trusted: proxies, remote: "[fd00::7]:40000", xff: []string{"2001:db8::5"}, want: "2001:db8::5"},
		{name: "GarbageXFF", trusted: proxies, remote: "10.1.2.3:40000", xff: []string{"not-an-ip"}, want: "10.1.2.3"},
		{name: "AllHopsTrusted", trusted: proxies, remote: "10.1.2.3:40000", xff: []string{"10.4.4.4"}, want: "10.1.2.3"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := New(nil, WithTrustedProxies(tc.trusted))
			r := httptest.NewRequest(http.MethodGet, "/v1/sign/x", nil)
			r.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := s.clientIP(r); got != tc.want {
				t.Errorf("clientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

// signRequest sends an unauthenticated signing request with the given
// X-Forwarded-For header.
func (e *testEnv) signRequest(t *testing.T, method, path, xff string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", xff)
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSign_RotatingForwardedForStillLimited(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	e := newTestEnv(t, WithLimiter(limiter))

	limited := 0
	for i := 0; i < 10; i++ {
		resp := e.signRequest(t, http.MethodGet, "/v1/sign/guess", fmt.Sprintf("10.0.0.%d", i), nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 8 {
		t.Errorf("rate-limited %d of 10 requests, want 8", limited)
	}
}

func TestSign_TrustedProxyLimitsPerClient(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	e := newTestEnv(t,
		WithLimiter(limiter),
		WithTrustedProxies([]netip.Prefix{
			netip.MustParsePrefix("127.0.0.0/8"),
			netip.MustParsePrefix("::1/128"),
		}),
	)

	for i := 0; i < 5; i++ {
		resp := e.signRequest(t, http.MethodGet, "/v1/sign/guess", fmt.Sprintf("203.0.113.%d", i), nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d from a distinct client was limited", i)
		}
	}

	for i := 0; i < 2; i++ {
		e.signRequest(t, http.MethodGet, "/v1/sign/guess", "198.51.100.1", nil)
	}
	if resp := e.signRequest(t, http.MethodGet, "/v1/sign/guess", "198.51.100.1", nil); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestSign_SpoofedForwardedForNotRecorded(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.sentContract(t)

	body, err := json.Marshal(map[string]string{
		"signer_name":     "Ada Lovelace",
		"signer_email":    "ada@example.com",
		"signature_image": signatureImage(t, true),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp := e.signRequest(t, http.MethodPost, "/v1/sign/"+token, "203.0.113.9", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	var res workflow.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(res.Signatures))
	}
	ip := res.Signatures[0].IPAddress
	if ip == "" || ip == "203.0.113.9" {
		t.Errorf("recorded ip = %q, want the socket peer", ip)
	}
}
