// Package watch polls a SQLite database for a change token and runs a
// reload action once the token settles. zona9 uses it to hot-reload the
// export rate-limit rules edited directly in the observability database.
//
//	w := watch.New(db, watch.Options{Detector: watch.Checksum(query), Debounce: time.Second})
//	go w.OnChange(ctx, limiter.Reload)
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token. Two different tokens mean the
// watched data changed.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes a Watcher.
type Options struct {
	// Interval is the polling period. Default: 5s.
	Interval time.Duration
	// Debounce is the quiet period a new token must hold before the action
	// runs. 0 runs it on the first poll that sees the change.
	Debounce time.Duration
	// Detector reads the token. Default: PragmaDataVersion.
	Detector ChangeDetector
	Logger   *slog.Logger
	// Name labels the log lines.
	Name string
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaDataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Name == "" {
		o.Name = "watch"
	}
}

// Watcher runs an action whenever the detected token changes.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Reloads         int64 `json:"reloads"`
}

// New creates a Watcher. OnChange starts it.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
}

// Version returns the token of the last successful reload.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx ends. When the token differs from the last
// reloaded one and stays put for Debounce, action runs. A failing action
// keeps the old token, so the next poll tries again.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger.With("watcher", w.opts.Name)

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		pending  int64
		hasPend  bool
		settleAt time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if cur == w.version.Load() {
				hasPend = false
				continue
			}
			if !hasPend || cur != pending {
				w.changes.Add(1)
				pending, hasPend = cur, true
				settleAt = now.Add(w.opts.Debounce)
				log.Debug("watch: change detected", "token", cur)
			}
			if now.Before(settleAt) {
				continue
			}
			if err := action(); err != nil {
				w.errors.Add(1)
				log.Error("watch: reload failed", "error", err)
				continue
			}
			w.reloads.Add(1)
			w.version.Store(pending)
			hasPend = false
			log.Info("watch: reloaded", "token", pending)
		}
	}
}

// PragmaDataVersion changes whenever another connection commits to the
// database file.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// Checksum returns a detector evaluating query, which must select a single
// integer summarizing the watched rows.
func Checksum(query string) ChangeDetector {
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}
