package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/zona9/idgen"
)

// Business event types written by zona9.
const (
	EventExportRender = "export.render"
	EventExportLive   = "export.live"
	EventBulkSave     = "entry.bulk_save"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string // "period", "collection"
	EntityID    string // e.g. "2026-01-07"
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged via slog and never
// propagate: a failing observability store must not fail an export.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	eventID := l.newID()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		eventID, event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.Action, event.Details, event.Success, time.Now().Unix())
	if err != nil {
		slog.Error("observability: event log failed", "error", err, "event_type", event.EventType)
	}
}

// EventCount tallies the events of one type.
type EventCount struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// EventCounts groups the events recorded since since by type.
func (l *EventLogger) EventCounts(ctx context.Context, since time.Time) (map[string]EventCount, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_type,
		       SUM(CASE WHEN success THEN 1 ELSE 0 END),
		       SUM(CASE WHEN success THEN 0 ELSE 1 END)
		FROM business_event_logs WHERE created_at >= ?
		GROUP BY event_type`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("observability: event counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]EventCount)
	for rows.Next() {
		var typ string
		var c EventCount
		if err := rows.Scan(&typ, &c.OK, &c.Failed); err != nil {
			return nil, fmt.Errorf("observability: scan event count: %w", err)
		}
		out[typ] = c
	}
	return out, rows.Err()
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	HTTPLogsDays   int
	EventLogsDays  int
	MetricsDays    int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	type cleanupTarget struct {
		table  string
		column string
		days   int
	}
	// Table and column names are fixed here, never taken from input.
	targets := []cleanupTarget{
		{"http_request_logs", "created_at", cfg.HTTPLogsDays},
		{"business_event_logs", "created_at", cfg.EventLogsDays},
		{"metrics_timeseries", "timestamp", cfg.MetricsDays},
	}

	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		cutoff := now - int64(t.days*86400)
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.table, t.column)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("observability: cleanup %s: %w", t.table, err)
		}
	}

	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("observability: vacuum: %w", err)
		}
	}
	return nil
}
