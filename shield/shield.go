// Package shield provides the HTTP middleware stack of the zona9 server:
// security headers, HEAD handling, form body limits, request tracing, rate
// limiting of the export endpoints and flash messages for the entry form.
//
// Usage:
//
//	r := chi.NewRouter()
//	stack, rl := shield.DefaultStack(db, "/static/", "/healthz")
//	rl.StartReloader(ctx)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// FlashKey is the context key for flash messages.
	FlashKey contextKey = "shield_flash"
)

// DefaultStack returns the middleware stack of the dashboard server, in
// order: HeadToGet → SecurityHeaders → MaxFormBody → TraceID → RateLimiter → Flash.
// HEAD on the export routes is refused rather than rendered.
// Paths starting with one of exclude bypass the rate limiter.
func DefaultStack(db *sql.DB, exclude ...string) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(db, exclude...)
	return []func(http.Handler) http.Handler{
		HeadToGet("/api/export"),
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(256 * 1024),
		TraceID,
		rl.Middleware,
		Flash,
	}, rl
}
