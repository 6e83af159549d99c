package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hazyhaar/zona9/kit"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLog returns middleware that writes one http_request_logs row per
// request. Paths listed in skip (exact match) are not logged. It must run
// after shield.TraceID so the trace id is available.
func RequestLog(db *sql.DB, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			_, err = db.ExecContext(context.WithoutCancel(r.Context()), `
				INSERT INTO http_request_logs (trace_id, method, path, status_code, duration_ms, ip_address)
				VALUES (?,?,?,?,?,?)`,
				kit.GetTraceID(r.Context()), r.Method, r.URL.Path, rec.status,
				time.Since(start).Milliseconds(), ip)
			if err != nil {
				slog.Warn("observability: request log failed", "error", err, "path", r.URL.Path)
			}
		})
	}
}
