package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/zona9/watch"
)

// rule is an enabled row of rate_limits. A path ending in "*" covers every
// path it prefixes; the others match exactly.
type rule struct {
	pattern string // the endpoint column, e.g. "GET /api/export/*"
	method  string
	path    string
	prefix  bool
	max     int
	window  time.Duration
}

// parseRule splits an endpoint pattern "METHOD /path" or "METHOD /path*".
func parseRule(pattern string, max, windowSeconds int) (rule, error) {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok || method == "" || !strings.HasPrefix(path, "/") {
		return rule{}, fmt.Errorf("ratelimit: bad endpoint %q", pattern)
	}
	if max < 1 || windowSeconds < 1 {
		return rule{}, fmt.Errorf("ratelimit: %q needs a positive limit and window", pattern)
	}
	r := rule{pattern: pattern, method: method, path: path, max: max, window: time.Duration(windowSeconds) * time.Second}
	if p, ok := strings.CutSuffix(path, "*"); ok {
		r.path, r.prefix = p, true
	}
	return r, nil
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter throttles the costly routes of the dashboard per client, with
// fixed windows configured in the rate_limits table (see Schema). Every
// capture starts a browser, so the export routes carry the tightest rules.
// All paths under one rule share one budget.
type RateLimiter struct {
	db      *sql.DB
	exclude []string // path prefixes never limited
	now     func() time.Time

	mu    sync.RWMutex
	rules []rule // exact rules first, then longer prefixes first

	buckets sync.Map // client + " " + pattern -> *bucket
}

// NewRateLimiter loads the rules of db. Call StartReloader to follow edits.
func NewRateLimiter(db *sql.DB, excludePrefixes ...string) *RateLimiter {
	rl := &RateLimiter{db: db, exclude: excludePrefixes, now: time.Now}
	if err := rl.Reload(); err != nil {
		slog.Warn("ratelimit: initial load failed, nothing is limited", "error", err)
	}
	return rl
}

// rulesChecksum changes whenever a rate_limits row is added, removed or edited.
var rulesChecksum = watch.Checksum(`SELECT COALESCE(SUM(max_requests*1000003 + window_seconds*1009 + enabled), 0) + COUNT(*) FROM rate_limits`)

// StartReloader reloads the rules when the rate_limits table changes
// (polled every 5s, debounced 1s) and drops expired buckets every 5min.
// Stops when ctx ends.
func (rl *RateLimiter) StartReloader(ctx context.Context) {
	w := watch.New(rl.db, watch.Options{
		Interval: 5 * time.Second,
		Debounce: time.Second,
		Detector: rulesChecksum,
		Name:     "rate_limits",
	})
	go w.OnChange(ctx, rl.Reload)

	go func() {
		tick := time.NewTicker(5 * time.Minute)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

// Reload re-reads the enabled rules. Malformed rows are skipped with a
// warning. On a read error the current rules stay in place.
func (rl *RateLimiter) Reload() error {
	rows, err := rl.db.Query(`SELECT endpoint, max_requests, window_seconds FROM rate_limits WHERE enabled = 1`)
	if err != nil {
		return fmt.Errorf("ratelimit: load rules: %w", err)
	}
	defer rows.Close()

	var rules []rule
	for rows.Next() {
		var pattern string
		var max, window int
		if err := rows.Scan(&pattern, &max, &window); err != nil {
			return fmt.Errorf("ratelimit: scan rule: %w", err)
		}
		r, err := parseRule(pattern, max, window)
		if err != nil {
			slog.Warn("ratelimit: rule skipped", "error", err)
			continue
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("ratelimit: load rules: %w", err)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].prefix != rules[j].prefix {
			return !rules[i].prefix
		}
		return len(rules[i].path) > len(rules[j].path)
	})

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()
	slog.Debug("ratelimit: rules loaded", "count", len(rules))
	return nil
}

// match returns the most specific rule covering method and path.
func (rl *RateLimiter) match(method, path string) (rule, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	for _, r := range rl.rules {
		if r.method != method {
			continue
		}
		if r.prefix && strings.HasPrefix(path, r.path) || !r.prefix && path == r.path {
			return r, true
		}
	}
	return rule{}, false
}

// allow counts one request of client against r. When the budget is spent
// it returns false and the time left in the window.
func (rl *RateLimiter) allow(client string, r rule) (bool, time.Duration) {
	now := rl.now()
	v, loaded := rl.buckets.LoadOrStore(client+" "+r.pattern, &bucket{count: 1, resetAt: now.Add(r.window)})
	if !loaded {
		return true, 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !now.Before(b.resetAt) {
		b.count, b.resetAt = 1, now.Add(r.window)
		return true, 0
	}
	if b.count >= r.max {
		return false, b.resetAt.Sub(now)
	}
	b.count++
	return true, 0
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := !now.Before(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Middleware enforces the rules. A throttled API call gets a 429 JSON
// error; a throttled form post is sent back to its page with an error
// flash. Both carry Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		ru, ok := rl.match(r.Method, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		client := ExtractIP(r)
		allowed, wait := rl.allow(client, ru)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		secs := int(math.Ceil(wait.Seconds()))
		slog.Warn("ratelimit: request blocked", "ip", client, "rule", ru.pattern, "retry_after", secs)
		w.Header().Set("Retry-After", strconv.Itoa(secs))

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":       fmt.Sprintf("too many exports, retry in %ds", secs),
				"retry_after": secs,
			})
			return
		}

		SetFlash(w, FlashError, fmt.Sprintf("Too many requests, retry in %d seconds", secs))
		http.Redirect(w, r, sameOriginReferer(r), http.StatusSeeOther)
	})
}

// sameOriginReferer is the path of the Referer when it points at this
// host, "/" otherwise.
func sameOriginReferer(r *http.Request) string {
	u, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
