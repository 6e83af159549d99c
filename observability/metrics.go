// Package observability records export timings, business events and HTTP
// request logs into a SQLite database kept apart from the report store.
//
// Call Init on the shared *sql.DB first, then pass it to the individual
// constructors. Metric persistence is async: datapoints are buffered and
// flushed in batches, and write errors are logged rather than returned.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Metric names recorded by the export pipeline and the snapshot assembler.
const (
	MetricExportRenderMs     = "export_render_ms"
	MetricExportRenderFailed = "export_render_failed"
	MetricExportBytes        = "export_bytes"
	MetricAssembleMs         = "snapshot_assemble_ms"
	MetricBulkSaveFailed     = "bulk_save_failed"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Labels    map[string]string // "format", "view", "stage", "collection"
	Unit      string            // "milliseconds", "count", "bytes"
}

// MetricsManager buffers metrics and flushes them to SQLite in batches.
type MetricsManager struct {
	db    *sql.DB
	size  int
	every time.Duration

	mu      sync.Mutex
	pending []*Metric

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewMetricsManager creates a manager that flushes every flushInterval or
// once bufferSize datapoints are pending. Zero values default to 100 and
// 5s.
func NewMetricsManager(db *sql.DB, bufferSize int, flushInterval time.Duration) *MetricsManager {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	mm := &MetricsManager{
		db:      db,
		size:    bufferSize,
		every:   flushInterval,
		pending: make([]*Metric, 0, bufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go mm.loop()
	return mm
}

// Record queues a metric. Non-blocking unless the buffer is full.
func (mm *MetricsManager) Record(m *Metric) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.pending = append(mm.pending, m)
	if len(mm.pending) >= mm.size {
		mm.flushLocked(context.Background())
	}
}

// RecordDuration records the milliseconds elapsed since start.
func (mm *MetricsManager) RecordDuration(name string, start time.Time, labels map[string]string) {
	mm.Record(&Metric{
		Name:      name,
		Timestamp: time.Now(),
		Value:     float64(time.Since(start).Milliseconds()),
		Labels:    labels,
		Unit:      "milliseconds",
	})
}

// Count records one occurrence of name.
func (mm *MetricsManager) Count(name string, labels map[string]string) {
	mm.Record(&Metric{Name: name, Timestamp: time.Now(), Value: 1, Labels: labels, Unit: "count"})
}

// Flush writes the pending metrics now.
func (mm *MetricsManager) Flush(ctx context.Context) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.flushLocked(ctx)
}

// Close flushes the pending metrics and stops the flush loop. Safe to call
// more than once.
func (mm *MetricsManager) Close() error {
	mm.closeOnce.Do(func() { close(mm.stop) })
	<-mm.done
	return nil
}

func (mm *MetricsManager) loop() {
	defer close(mm.done)
	tick := time.NewTicker(mm.every)
	defer tick.Stop()
	for {
		select {
		case <-mm.stop:
			mm.Flush(context.Background())
			return
		case <-tick.C:
			mm.Flush(context.Background())
		}
	}
}

func (mm *MetricsManager) flushLocked(ctx context.Context) {
	if len(mm.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := func() error {
		tx, err := mm.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range mm.pending {
			var labels sql.NullString
			if len(m.Labels) > 0 {
				if b, err := json.Marshal(m.Labels); err == nil {
					labels = sql.NullString{String: string(b), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, m.Name, m.Timestamp.Unix(), m.Value, labels, m.Unit); err != nil {
				return fmt.Errorf("insert %s: %w", m.Name, err)
			}
		}
		return tx.Commit()
	}()
	if err != nil {
		slog.Error("observability: metrics flush failed", "error", err, "pending", len(mm.pending))
	}
	mm.pending = mm.pending[:0]
}

// ExportStats summarizes the export pipeline over a window.
type ExportStats struct {
	Since time.Time `json:"since"`

	// Renders counts finished captures, successful or not.
	Renders int     `json:"renders"`
	Failed  int     `json:"failed"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	Bytes   int64   `json:"bytes"`

	ByFormat      map[string]int `json:"by_format"`
	FailedByStage map[string]int `json:"failed_by_stage"`
}

// ExportStats flushes the pending metrics and aggregates the export
// datapoints recorded since since.
func (mm *MetricsManager) ExportStats(ctx context.Context, since time.Time) (*ExportStats, error) {
	mm.Flush(ctx)

	st := &ExportStats{Since: since, ByFormat: map[string]int{}, FailedByStage: map[string]int{}}
	ts := since.Unix()

	err := mm.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(value), 0), COALESCE(MAX(value), 0)
		FROM metrics_timeseries WHERE metric_name = ? AND timestamp >= ?`,
		MetricExportRenderMs, ts).Scan(&st.Renders, &st.AvgMs, &st.MaxMs)
	if err != nil {
		return nil, fmt.Errorf("observability: export stats: %w", err)
	}
	var bytes float64
	err = mm.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(value), 0) FROM metrics_timeseries WHERE metric_name = ? AND timestamp >= ?`,
		MetricExportBytes, ts).Scan(&bytes)
	if err != nil {
		return nil, fmt.Errorf("observability: export bytes: %w", err)
	}
	st.Bytes = int64(bytes)

	if err := mm.groupByLabel(ctx, MetricExportRenderMs, "format", ts, st.ByFormat); err != nil {
		return nil, err
	}
	if err := mm.groupByLabel(ctx, MetricExportRenderFailed, "stage", ts, st.FailedByStage); err != nil {
		return nil, err
	}
	for _, n := range st.FailedByStage {
		st.Failed += n
	}
	return st, nil
}

// groupByLabel counts the datapoints of metric since ts per value of a
// label. label is one of the fixed names above, never input.
func (mm *MetricsManager) groupByLabel(ctx context.Context, metric, label string, ts int64, into map[string]int) error {
	rows, err := mm.db.QueryContext(ctx, `
		SELECT COALESCE(json_extract(labels, '$.`+label+`'), ''), COUNT(*)
		FROM metrics_timeseries WHERE metric_name = ? AND timestamp >= ?
		GROUP BY 1`, metric, ts)
	if err != nil {
		return fmt.Errorf("observability: %s by %s: %w", metric, label, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("observability: scan %s: %w", metric, err)
		}
		into[k] = n
	}
	return rows.Err()
}
