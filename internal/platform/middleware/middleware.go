// Package middleware holds the HTTP middleware chain: panic recovery,
// request provenance (correlation id, client metadata, request time), request
// logging, and actor authentication. Provenance lands in pkg/requestcontext
// so the audit writer can read it without touching net/http.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/trace"

	"ams/pkg/requestcontext"
)

// correlationHeader carries the caller-provided correlation id.
const correlationHeader = "X-Correlation-ID"

// Recovery converts panics into 500 responses.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(r.Context(), "panic recovered",
						"panic", rec, "path", r.URL.Path)
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Provenance stamps every request with a correlation id, the request path,
// and one consistent timestamp. The correlation id comes from the caller's
// header, falls back to the active trace id, and finally to a fresh UUID; it
// is echoed back on the response.
func Provenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		corr := strings.TrimSpace(r.Header.Get(correlationHeader))
		if corr == "" {
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				corr = sc.TraceID().String()
			}
		}
		if corr == "" {
			corr = uuid.NewString()
		}

		ctx = requestcontext.WithCorrelationID(ctx, corr)
		ctx = requestcontext.WithPath(ctx, r.URL.Path)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(correlationHeader, corr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata extracts the client IP and a compact user-agent summary.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), uaSummary(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs each request with its outcome and duration.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"correlation_id", requestcontext.CorrelationID(r.Context()),
			)
		})
	}
}

// TokenValidator validates a session token and returns the actor it names.
type TokenValidator interface {
	ValidateActor(token string) (subject, name string, err error)
}

// RequireActor rejects requests without a valid bearer token and places the
// actor identity in the request context.
func RequireActor(validator TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			subject, name, err := validator.ValidateActor(token)
			if err != nil {
				log.WarnContext(r.Context(), "rejected session token", "error", err)
				unauthorized(w)
				return
			}
			ctx := requestcontext.WithActor(r.Context(), subject, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"authentication required"}`))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// uaSummary reduces the raw User-Agent to "Browser Version (OS)".
func uaSummary(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " (" + os + ")"
	}
	return summary
}
