package observability

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/kit"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestInit_CreatesAllTables(t *testing.T) {
	db := setupObsDB(t)
	for _, table := range []string{"metrics_timeseries", "business_event_logs", "http_request_logs"} {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
}

// --- MetricsManager ---

func TestMetricsManager_ExportStats(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour)
	defer mm.Close()
	ctx := context.Background()
	now := time.Now()

	render := func(ms float64, format string, at time.Time) {
		mm.Record(&Metric{Name: MetricExportRenderMs, Timestamp: at, Value: ms, Unit: "milliseconds",
			Labels: map[string]string{"format": format}})
	}
	render(1800, "png", now)
	render(2200, "png", now)
	render(3000, "pdf", now)
	render(9000, "pdf", now.Add(-48*time.Hour)) // outside the window
	mm.Record(&Metric{Name: MetricExportBytes, Timestamp: now, Value: 4096, Unit: "bytes"})
	mm.Count(MetricExportRenderFailed, map[string]string{"stage": "readiness"})
	mm.Count(MetricExportRenderFailed, map[string]string{"stage": "readiness"})
	mm.Count(MetricExportRenderFailed, map[string]string{"stage": "navigate"})

	st, err := mm.ExportStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if st.Renders != 3 || st.MaxMs != 3000 || st.AvgMs < 2333 || st.AvgMs > 2334 {
		t.Fatalf("renders=%d avg=%.1f max=%.0f", st.Renders, st.AvgMs, st.MaxMs)
	}
	if st.Bytes != 4096 {
		t.Errorf("bytes = %d", st.Bytes)
	}
	if st.ByFormat["png"] != 2 || st.ByFormat["pdf"] != 1 {
		t.Errorf("by format = %v", st.ByFormat)
	}
	if st.Failed != 3 || st.FailedByStage["readiness"] != 2 || st.FailedByStage["navigate"] != 1 {
		t.Errorf("failed = %d by stage %v", st.Failed, st.FailedByStage)
	}
}

func TestMetricsManager_ExportStatsEmpty(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 0, 0)
	defer mm.Close()

	st, err := mm.ExportStats(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if st.Renders != 0 || st.Failed != 0 || st.Bytes != 0 || len(st.ByFormat) != 0 {
		t.Errorf("empty window: %+v", st)
	}
}

func TestMetricsManager_FlushOnFullBuffer(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 2, time.Hour)
	defer mm.Close()

	mm.Count(MetricBulkSaveFailed, map[string]string{"collection": "notes"})
	mm.Count(MetricBulkSaveFailed, map[string]string{"collection": "stock"})

	var n int
	db.QueryRow("SELECT COUNT(*) FROM metrics_timeseries").Scan(&n)
	if n != 2 {
		t.Fatalf("rows after full buffer: got %d, want 2", n)
	}
}

func TestMetricsManager_RecordDuration(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 0, 0)
	mm.RecordDuration(MetricAssembleMs, time.Now().Add(-50*time.Millisecond), map[string]string{"view": "day"})
	mm.Close()
	mm.Close() // second close is a no-op

	var value float64
	var unit, labels string
	err := db.QueryRow("SELECT value, unit, labels FROM metrics_timeseries WHERE metric_name = ?", MetricAssembleMs).
		Scan(&value, &unit, &labels)
	if err != nil {
		t.Fatal(err)
	}
	if value < 50 || unit != "milliseconds" || labels != `{"view":"day"}` {
		t.Fatalf("duration metric: %v %q %q", value, unit, labels)
	}
}

// --- EventLogger ---

func TestEventLogger_LogEvent(t *testing.T) {
	db := setupObsDB(t)
	el := NewEventLogger(db)
	ctx := context.Background()

	el.LogEvent(ctx, BusinessEvent{
		EventType:   EventExportRender,
		ServiceName: "zona9",
		EntityType:  "period",
		EntityID:    "2026-01-07",
		Action:      "png",
		Success:     true,
	})
	el.LogEvent(ctx, BusinessEvent{EventType: EventExportRender, ServiceName: "zona9", Action: "pdf"})
	el.LogEvent(ctx, BusinessEvent{EventType: EventBulkSave, ServiceName: "zona9", Action: "save", Success: true})

	var eventID, entityID string
	db.QueryRow("SELECT event_id, entity_id FROM business_event_logs WHERE action = 'png'").Scan(&eventID, &entityID)
	if entityID != "2026-01-07" {
		t.Fatalf("entity_id: got %q", entityID)
	}
	if len(eventID) < 5 || eventID[:4] != "evt_" {
		t.Fatalf("event_id: got %q", eventID)
	}

	counts, err := el.EventCounts(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]EventCount{
		EventExportRender: {OK: 1, Failed: 1},
		EventBulkSave:     {OK: 1},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("event counts (-want +got):\n%s", diff)
	}

	later, _ := el.EventCounts(ctx, time.Now().Add(time.Hour))
	if len(later) != 0 {
		t.Errorf("future window: %v", later)
	}
}

func TestEventLogger_WithIDGenerator(t *testing.T) {
	db := setupObsDB(t)
	gen := func() string { return "evt_custom" }
	el := NewEventLogger(db, WithEventIDGenerator(gen))

	el.LogEvent(context.Background(), BusinessEvent{
		EventType:   EventBulkSave,
		ServiceName: "zona9",
		Action:      "save",
		Success:     true,
	})

	var eventID string
	db.QueryRow("SELECT event_id FROM business_event_logs LIMIT 1").Scan(&eventID)
	if eventID != "evt_custom" {
		t.Fatalf("custom event_id: got %q", eventID)
	}
}

// --- RequestLog ---

func TestRequestLog(t *testing.T) {
	db := setupObsDB(t)
	h := RequestLog(db, "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest("GET", "/api/export", nil)
	req = req.WithContext(kit.WithTraceID(req.Context(), "abcd1234"))
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	var n, status int
	var traceID string
	db.QueryRow("SELECT COUNT(*) FROM http_request_logs").Scan(&n)
	db.QueryRow("SELECT status_code, trace_id FROM http_request_logs").Scan(&status, &traceID)
	if n != 1 {
		t.Fatalf("rows: got %d, want 1 (healthz skipped)", n)
	}
	if status != http.StatusBadGateway || traceID != "abcd1234" {
		t.Fatalf("row: status=%d trace=%q", status, traceID)
	}
}

// --- Retention Cleanup ---

func TestCleanup_Retention(t *testing.T) {
	db := setupObsDB(t)

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec("INSERT INTO http_request_logs (method, path, created_at) VALUES ('GET', '/test', ?)", oldTs)
	db.Exec("INSERT INTO business_event_logs (event_id, event_type, service_name, action, success, created_at) VALUES ('e1', 'test', 'svc', 'act', 1, ?)", oldTs)

	err := Cleanup(context.Background(), db, RetentionConfig{
		HTTPLogsDays:  30,
		EventLogsDays: 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	var httpCount, eventCount int
	db.QueryRow("SELECT COUNT(*) FROM http_request_logs").Scan(&httpCount)
	db.QueryRow("SELECT COUNT(*) FROM business_event_logs").Scan(&eventCount)
	if httpCount != 0 {
		t.Fatalf("http_request_logs: got %d", httpCount)
	}
	if eventCount != 0 {
		t.Fatalf("business_event_logs: got %d", eventCount)
	}
}

func TestCleanup_SkipsZeroDays(t *testing.T) {
	db := setupObsDB(t)

	oldTs := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec("INSERT INTO http_request_logs (method, path, created_at) VALUES ('GET', '/test', ?)", oldTs)

	if err := Cleanup(context.Background(), db, RetentionConfig{}); err != nil {
		t.Fatal(err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM http_request_logs").Scan(&count)
	if count != 1 {
		t.Fatalf("should not clean when days=0: got %d", count)
	}
}
