package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPSelection(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded header wins",
			forwarded:  "192.0.2.44",
			remoteAddr: "10.0.0.9:52011",
			want:       "192.0.2.44",
		},
		{
			name:       "first hop of a chain",
			forwarded:  " 192.0.2.44 , 10.0.0.9 ",
			remoteAddr: "10.0.0.9:52011",
			want:       "192.0.2.44",
		},
		{
			name:       "garbage header ignored",
			forwarded:  "not-an-ip",
			remoteAddr: "10.0.0.9:52011",
			want:       "10.0.0.9",
		},
		{
			name:       "no header uses peer",
			forwarded:  "",
			remoteAddr: "10.0.0.9:52011",
			want:       "10.0.0.9",
		},
		{
			name:       "ipv6 hop",
			forwarded:  "2001:db8::1",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::1",
		},
		{
			name:       "ipv6 peer",
			forwarded:  "not-an-ip",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "peer without port",
			forwarded:  "not-an-ip",
			remoteAddr: "192.0.2.44",
			want:       "192.0.2.44",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLimiterWindowReset(t *testing.T) {
	l := &limiter{limit: 1, per: time.Minute, windows: make(map[string]*window)}
	start := time.Now()

	if ok, _ := l.take("client", start); !ok {
		t.Fatal("first request blocked")
	}
	ok, retry := l.take("client", start.Add(30*time.Second))
	if ok {
		t.Fatal("second request in the same window allowed")
	}
	if retry < 1 || retry > 31 {
		t.Fatalf("retry = %d, want within the remaining window", retry)
	}
	if ok, _ := l.take("client", start.Add(61*time.Second)); !ok {
		t.Fatal("request after window reset blocked")
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After header missing")
	}
}

func TestRateLimitDisabledWhenLimitZero(t *testing.T) {
	handler := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}
