// Package dashboard is the web surface of zona9: the daily, weekly and
// data-entry pages, the JSON snapshot API, the workbook download and the
// MCP tools. It wires the store, the assembler and the aggregator.
//
// Usage:
//
//	svc := dashboard.New(st, dashboard.Config{BaseURL: cfg.BaseURL}, logger)
//	r := chi.NewRouter()
//	svc.Mount(r)
//	svc.RegisterMCP(mcpServer)
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/assemble"
	"github.com/hazyhaar/zona9/idgen"
	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/rendermode"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/store"
)

// Config configures the Service.
type Config struct {
	// BaseURL is the origin export links and MCP export URLs point at.
	BaseURL string

	// LabelThreshold hides chart labels below this share. Default: 0.01.
	LabelThreshold float64

	// SettleDelay is published to the page readiness script. Default: 1s.
	SettleDelay time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// PageTTL drops the session of a page idle for longer. Default: 30m.
	PageTTL time.Duration

	Metrics *observability.MetricsManager
	Events  *observability.EventLogger
}

func (c *Config) defaults() {
	if c.LabelThreshold <= 0 {
		c.LabelThreshold = aggregate.DefaultLabelThreshold
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = rendermode.DefaultSettleDelay
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

const (
	pagePrefix = "pg_"
	paramPage  = "page"
	paramDays  = "days"

	defaultStatsDays = 7
	maxStatsDays     = 90
)

// ErrNoObservability is returned by Stats when the service runs without
// the observability database.
var ErrNoObservability = errors.New("dashboard: observability disabled")

// Service is the dashboard orchestrator.
type Service struct {
	store  *store.Store
	asm    *assemble.Assembler
	pages  *assemble.Pages
	agg    aggregate.Aggregator
	policy *bluemonday.Policy
	newID  idgen.Generator
	cfg    Config
	logger *slog.Logger
}

// New wires a Service over st.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Service {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	opts := []assemble.Option{assemble.WithLogger(logger)}
	if cfg.Metrics != nil {
		opts = append(opts, assemble.WithMetrics(cfg.Metrics))
	}
	asm := assemble.New(st, opts...)
	agg := aggregate.Aggregator{LabelThreshold: cfg.LabelThreshold}

	return &Service{
		store:  st,
		asm:    asm,
		pages:  assemble.NewPages(asm, agg, cfg.PageTTL, 0),
		agg:    agg,
		policy: bluemonday.StrictPolicy(),
		newID:  idgen.Prefixed(pagePrefix, idgen.Default),
		cfg:    cfg,
		logger: logger,
	}
}

// Report is one loaded page: the snapshot, its summary and the outcome.
type Report struct {
	Period   report.Period
	View     report.ViewMode
	Snapshot *report.Snapshot
	Summary  *aggregate.Summary
	Outcome  report.Outcome
	Err      error
}

// Load assembles and summarizes one Period. A failed read is not returned
// as an error: it is reported through Outcome and Err so the page can
// show its empty state and a toast.
func (s *Service) Load(ctx context.Context, period report.Period, view report.ViewMode) *Report {
	snap, err := s.asm.Assemble(ctx, period, view)
	r := &Report{
		Period:   period,
		View:     view,
		Snapshot: snap,
		Outcome:  report.Classify(snap, err),
		Err:      err,
	}
	if err != nil {
		s.logger.Warn("dashboard: load failed", "period", period.String(), "error", err)
		return r
	}
	r.Summary = s.agg.Summarize(snap, view)
	return r
}

// Refresh loads a Period into the session of page. A newer Refresh of
// the same page issued meanwhile wins: this one gets its own, discarded
// report back with assemble.ErrSuperseded. Other pages are unaffected.
func (s *Service) Refresh(ctx context.Context, page string, period report.Period, view report.ViewMode) (*Report, error) {
	sess := s.pages.Get(page)
	st, err := sess.Load(ctx, period, view)
	r := &Report{
		Period:   st.Period,
		View:     st.View,
		Snapshot: st.Snapshot,
		Outcome:  st.Outcome,
		Err:      st.Err,
	}
	if errors.Is(err, assemble.ErrSuperseded) {
		return r, err
	}
	if err != nil {
		s.logger.Warn("dashboard: load failed", "page", page, "period", period.String(), "error", err)
	}
	r.Summary = sess.Summary(st)
	return r, nil
}

// Save writes an entry form. Note bodies are sanitized first.
func (s *Service) Save(ctx context.Context, e assemble.Entry) error {
	start := time.Now()
	for i := range e.Notes {
		e.Notes[i].Body = s.sanitize(e.Notes[i].Body)
	}
	err := assemble.BulkSave(ctx, s.store, e)

	entity := e.Date.Format(report.DateLayout)
	if err != nil {
		s.logger.Error("dashboard: bulk save failed", "date", entity, "error", err)
		if s.cfg.Metrics != nil {
			var se *report.SaveError
			labels := map[string]string{}
			if errors.As(err, &se) {
				labels["collection"] = se.Collection
			}
			s.cfg.Metrics.Count(observability.MetricBulkSaveFailed, labels)
		}
	} else {
		s.logger.Info("dashboard: bulk save", "date", entity,
			"sites", len(e.Sites), "fuel", len(e.Fuel), "rig_moves", len(e.RigMoves), "notes", len(e.Notes),
			"elapsed", time.Since(start))
	}
	if s.cfg.Events != nil {
		s.cfg.Events.LogEvent(context.WithoutCancel(ctx), observability.BusinessEvent{
			EventType:   observability.EventBulkSave,
			ServiceName: "dashboard",
			EntityType:  "period",
			EntityID:    entity,
			Action:      "save",
			Success:     err == nil,
		})
	}
	return err
}

// DefaultDate is the date a page opens on without a date parameter: the
// latest date holding records, or today.
func (s *Service) DefaultDate(ctx context.Context) time.Time {
	d, ok, err := s.store.LatestDate(ctx)
	if err != nil {
		s.logger.Warn("dashboard: latest date", "error", err)
	}
	if err != nil || !ok {
		return report.Day(s.cfg.Now()).Start
	}
	return d
}

// ExportURL is the capture endpoint URL for req.
func (s *Service) ExportURL(req report.ExportRequest) (string, error) {
	if s.cfg.BaseURL == "" {
		return "", fmt.Errorf("dashboard: no base URL configured")
	}
	v := req.Values()
	v.Del(report.ParamExport)
	return s.cfg.BaseURL + "/api/export?" + v.Encode(), nil
}

// sanitize strips markup from a note body and keeps its text, so the
// templates escape it exactly once.
func (s *Service) sanitize(body string) string {
	return html.UnescapeString(s.policy.Sanitize(body))
}

// Stats is the export and entry activity over the last Days days.
type Stats struct {
	Days    int                                 `json:"days"`
	Exports *observability.ExportStats          `json:"exports"`
	Events  map[string]observability.EventCount `json:"events"`
}

// Stats reads the activity of the last days days, 1 to 90. Zero means a
// week.
func (s *Service) Stats(ctx context.Context, days int) (*Stats, error) {
	if s.cfg.Metrics == nil || s.cfg.Events == nil {
		return nil, ErrNoObservability
	}
	if days == 0 {
		days = defaultStatsDays
	}
	if days < 1 || days > maxStatsDays {
		return nil, fmt.Errorf("dashboard: days must be between 1 and %d, got %d", maxStatsDays, days)
	}
	since := time.Now().AddDate(0, 0, -days)

	exports, err := s.cfg.Metrics.ExportStats(ctx, since)
	if err != nil {
		return nil, err
	}
	events, err := s.cfg.Events.EventCounts(ctx, since)
	if err != nil {
		return nil, err
	}
	return &Stats{Days: days, Exports: exports, Events: events}, nil
}
