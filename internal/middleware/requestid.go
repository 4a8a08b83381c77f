// Package middleware holds the HTTP middlewares the router composes around
// every handler: request ids, access logging, CORS, and rate limiting.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID honors a usable incoming X-Request-ID or assigns a fresh uuid,
// echoes it on the response, and stores it in the context for the access
// logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := sanitizeRequestID(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sanitizeRequestID accepts client ids only when they are short and
// printable, so arbitrary header bytes never reach the logs.
func sanitizeRequestID(rid string) string {
	if len(rid) > 64 {
		return ""
	}
	for _, c := range rid {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return rid
}

// RequestIDFrom returns the request id stored by RequestID, if any.
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
