package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/store"
)

func observedService(t *testing.T) (*Service, *observability.MetricsManager, *observability.EventLogger, http.Handler) {
	t.Helper()
	obs := dbopen.OpenMemory(t)
	if err := observability.Init(obs); err != nil {
		t.Fatal(err)
	}
	mm := observability.NewMetricsManager(obs, 100, time.Hour)
	t.Cleanup(func() { mm.Close() })
	ev := observability.NewEventLogger(obs)

	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	svc := New(st, Config{BaseURL: "http://127.0.0.1:8080", Metrics: mm, Events: ev}, nil)
	r := chi.NewRouter()
	svc.Mount(r)
	return svc, mm, ev, r
}

func TestStatsAPI(t *testing.T) {
	_, mm, ev, h := observedService(t)
	ctx := context.Background()

	mm.Record(&observability.Metric{Name: observability.MetricExportRenderMs, Timestamp: time.Now(), Value: 1500,
		Unit: "milliseconds", Labels: map[string]string{"format": "png"}})
	mm.Record(&observability.Metric{Name: observability.MetricExportRenderMs, Timestamp: time.Now(), Value: 900,
		Unit: "milliseconds", Labels: map[string]string{"format": "pdf", "stage": "verify"}})
	mm.Count(observability.MetricExportRenderFailed, map[string]string{"format": "pdf", "stage": "verify"})
	ev.LogEvent(ctx, observability.BusinessEvent{EventType: observability.EventExportRender, ServiceName: "capture", Success: true})
	ev.LogEvent(ctx, observability.BusinessEvent{EventType: observability.EventExportRender, ServiceName: "capture"})
	ev.LogEvent(ctx, observability.BusinessEvent{EventType: observability.EventBulkSave, ServiceName: "dashboard", Success: true})

	w := get(t, h, "/api/stats?days=1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var resp Stats
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Days != 1 || resp.Exports.Renders != 2 || resp.Exports.Failed != 1 || resp.Exports.FailedByStage["verify"] != 1 {
		t.Errorf("exports = %+v", resp.Exports)
	}
	if got := resp.Events[observability.EventExportRender]; got.OK != 1 || got.Failed != 1 {
		t.Errorf("render events = %+v", got)
	}
	if got := resp.Events[observability.EventBulkSave]; got.OK != 1 {
		t.Errorf("save events = %+v", got)
	}

	if w := get(t, h, "/api/stats"); w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
		t.Errorf("default window: %d %s", w.Code, w.Body)
	}
}

func TestStatsAPI_BadDays(t *testing.T) {
	_, _, _, h := observedService(t)
	for _, days := range []string{"0", "-1", "91", "week"} {
		if w := get(t, h, "/api/stats?days="+days); w.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status %d", days, w.Code)
		}
	}
}

func TestStatsAPI_NoObservability(t *testing.T) {
	_, _, h := testService(t, false)
	if w := get(t, h, "/api/stats"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
