package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// limiter counts requests per client over fixed windows. Expired entries
// are swept opportunistically once the map grows past sweepThreshold.
type limiter struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	windows map[string]*window
}

type window struct {
	hits   int
	resets time.Time
}

const sweepThreshold = 1024

// take consumes one slot for the client and reports whether the request may
// proceed, along with the seconds left until the window resets when it may
// not.
func (l *limiter) take(client string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[client]
	if !ok || now.After(w.resets) {
		if len(l.windows) >= sweepThreshold {
			for k, v := range l.windows {
				if now.After(v.resets) {
					delete(l.windows, k)
				}
			}
		}
		w = &window{resets: now.Add(l.per)}
		l.windows[client] = w
	}
	if w.hits >= l.limit {
		return false, int(w.resets.Sub(now).Seconds()) + 1
	}
	w.hits++
	return true, 0
}

// RateLimit allows up to limit requests per client IP within each window.
// A limit of zero or less disables the middleware.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := &limiter{limit: limit, per: per, windows: make(map[string]*window)}
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.take(clientIP(r), time.Now())
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the address to throttle on: the first valid
// X-Forwarded-For hop when one exists, otherwise the transport peer.
func clientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
