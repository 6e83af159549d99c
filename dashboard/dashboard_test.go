package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/store"
)

var reportDay = time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

func testService(t *testing.T, seed bool) (*Service, *store.Store, http.Handler) {
	t.Helper()
	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	if seed {
		if err := st.Seed(context.Background(), reportDay); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := New(st, Config{
		BaseURL: "http://127.0.0.1:8080",
		Now:     func() time.Time { return reportDay.Add(10 * time.Hour) },
	}, nil)
	r := chi.NewRouter()
	svc.Mount(r)
	return svc, st, r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

// findAll returns every element named tag carrying class cls.
func findAll(t *testing.T, body, tag, cls string) []*html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			for _, a := range n.Attr {
				if a.Key == "class" && hasClass(a.Val, cls) {
					out = append(out, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func hasClass(list, cls string) bool {
	for _, c := range strings.Fields(list) {
		if c == cls {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestPage_DailyReport(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/?date=2026-01-07")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()

	if n := len(findAll(t, body, "svg", "chart-surface")); n < 4 {
		t.Errorf("chart surfaces = %d, want at least 4", n)
	}
	if !strings.Contains(body, `data-render-mode="interactive"`) {
		t.Error("interactive page not marked as such")
	}
	if !strings.Contains(body, "/static/capture.js") || strings.Contains(body, "/static/readiness.js") {
		t.Error("interactive page must load the capture script only")
	}
	if len(findAll(t, body, "nav", "no-print")) != 1 {
		t.Error("controls missing")
	}
	if !strings.Contains(body, `data-filename="Zona9_Report_2026-01-07.png"`) || !strings.Contains(body, "data-capture") {
		t.Error("in-browser capture control missing")
	}
	if !strings.Contains(body, `data-page="pg_`) {
		t.Error("page id missing")
	}
	// The seed has a baseline on 2026-01-06: issued fell, stock rose.
	trends := findAll(t, body, "span", "trend-down")
	if len(trends) == 0 {
		t.Error("expected a falling trend on issued")
	}
	if strings.Contains(body, "No previous-day report") {
		t.Error("baseline present but reported missing")
	}
}

func TestPage_ExportMode(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/?export=true&view=day&date=2026-01-07")
	body := w.Body.String()
	if !strings.Contains(body, `data-render-mode="export"`) {
		t.Error("export flag not applied")
	}
	if !strings.Contains(body, "/static/readiness.js") {
		t.Error("export page must load the readiness script")
	}
	if !strings.Contains(body, `id="report-root"`) {
		t.Error("measured root missing")
	}
}

func TestPage_NoDataForPeriod(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/?date=2025-06-01")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	if len(findAll(t, body, "section", "empty-state")) != 1 {
		t.Fatal("empty state not rendered")
	}
	if !strings.Contains(body, "view=entry") {
		t.Error("empty state lacks the entry link")
	}
	// Even the empty state exposes a chart surface, so an export of an
	// empty day still reaches readiness.
	if len(findAll(t, body, "svg", "chart-surface")) != 1 {
		t.Error("empty state chart surface missing")
	}
}

func TestPage_Unavailable(t *testing.T) {
	_, st, h := testService(t, true)
	if _, err := st.DB.Exec(`DROP TABLE fuel`); err != nil {
		t.Fatal(err)
	}

	w := get(t, h, "/?date=2026-01-07")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-toast="unavailable"`) {
		t.Error("unavailable toast missing")
	}
	if len(findAll(t, body, "section", "empty-state")) != 1 {
		t.Error("failed load must fall back to the empty state")
	}
}

func TestPage_WeeklyDefaultsToWeekOfDate(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/?view=week&date=2026-01-07")
	body := w.Body.String()
	if !strings.Contains(body, "Weekly Activity Log") {
		t.Error("weekly page not rendered")
	}
	if !strings.Contains(body, "startDate=2026-01-05") || !strings.Contains(body, "endDate=2026-01-11") {
		t.Error("weekly export links must carry the Monday to Sunday range")
	}
}

func TestPage_BadQuery(t *testing.T) {
	_, _, h := testService(t, false)
	for _, q := range []string{"/?date=07-01-2026", "/?view=month", "/?startDate=2026-01-11&endDate=2026-01-05"} {
		if w := get(t, h, q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, w.Code)
		}
	}
}

func TestEntry_SaveAndRedirect(t *testing.T) {
	_, st, h := testService(t, false)

	form := url.Values{
		"date":       {"2026-01-08"},
		"issued_0":   {"1,000"},
		"received_0": {"500"},
		"stock_0":    {"10000"},
		"pob_0":      {"26"},
		"biosolar_0": {"120"},
		"note_0":     {"Crane: <b>support</b> at RDP"},
		"rm_site":    {"TANJUNG", "PHSS"},
		"rm_rig":     {"PDSI #40", ""},
		"rm_origin":  {"TGB-1", ""},
		"rm_dest":    {"TGB-2", ""},
	}
	req := httptest.NewRequest("POST", "/entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "view=entry") || !strings.Contains(loc, "date=2026-01-08") {
		t.Errorf("Location = %q", loc)
	}

	ctx := context.Background()
	d := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	sites, err := st.SelectSites(ctx, store.OnDate(d))
	if err != nil || len(sites) != 1 || sites[0].Issued != 1000 || sites[0].POB != 26 {
		t.Errorf("sites = %+v, %v", sites, err)
	}
	moves, _ := st.SelectRigMoves(ctx, store.OnDate(d))
	if len(moves) != 1 || moves[0].Rig != "PDSI #40" {
		t.Errorf("rig moves = %+v", moves)
	}
	notes, _ := st.SelectNotes(ctx, store.OnDate(d))
	if len(notes) != 1 || strings.Contains(notes[0].Body, "<b>") {
		t.Errorf("notes = %+v, want sanitized body", notes)
	}
}

func TestEntry_InvalidNumber(t *testing.T) {
	_, st, h := testService(t, false)

	form := url.Values{"date": {"2026-01-08"}, "issued_0": {"lots"}}
	req := httptest.NewRequest("POST", "/entry", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), "flash") {
		t.Error("error flash not set")
	}
	sites, _ := st.SelectSites(context.Background(), store.Filter{})
	if len(sites) != 0 {
		t.Errorf("nothing should be written, got %+v", sites)
	}
}

func TestSnapshotAPI(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/api/snapshot?date=2026-01-07")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Period  string `json:"period"`
		Outcome string `json:"outcome"`
		Summary struct {
			Totals struct {
				Issued float64 `json:"issued"`
				POB    int     `json:"pob"`
			} `json:"totals"`
			Baseline bool `json:"baseline"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Period != "2026-01-07" || resp.Outcome != "ready" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Summary.Totals.Issued != 11722400+2860000 {
		t.Errorf("issued = %v", resp.Summary.Totals.Issued)
	}
	if resp.Summary.Totals.POB != 26+74+21+40+4 {
		t.Errorf("pob = %d", resp.Summary.Totals.POB)
	}
	if !resp.Summary.Baseline {
		t.Error("baseline expected")
	}

	w = get(t, h, "/api/snapshot?date=2025-01-01")
	if !strings.Contains(w.Body.String(), `"outcome":"no_data"`) || !strings.Contains(w.Body.String(), `"summary":null`) {
		t.Errorf("empty period: %s", w.Body.String())
	}
}

func TestSnapshotAPI_PageSession(t *testing.T) {
	svc, _, h := testService(t, true)
	page := svc.newID()

	w := get(t, h, "/api/snapshot?date=2026-01-07&page="+page)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"period":"2026-01-07"`) {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	cur, ok := svc.pages.Get(page).Current()
	if !ok || cur.Period.String() != "2026-01-07" {
		t.Errorf("page session holds %s, ok=%v", cur.Period, ok)
	}

	for _, bad := range []string{"pg_nope", "abc", "pg_" + page} {
		if w := get(t, h, "/api/snapshot?date=2026-01-07&page="+url.QueryEscape(bad)); w.Code != http.StatusBadRequest {
			t.Errorf("page %q: status %d, want 400", bad, w.Code)
		}
	}
}

func TestWorkbookExport(t *testing.T) {
	_, _, h := testService(t, true)

	w := get(t, h, "/api/export/xlsx?date=2026-01-07")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Zona9_Report_2026-01-07.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	want := []string{sheetSummary, sheetSites, sheetFuel, sheetRigMoves, sheetNotes}
	got := wb.GetSheetList()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sheets = %v, want %v", got, want)
	}
	rows, err := wb.GetRows(sheetSites)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1+5 {
		t.Errorf("site rows = %d, want header + 5", len(rows))
	}
	if v, _ := wb.GetCellValue(sheetSummary, "B1"); v != "2026-01-07" {
		t.Errorf("summary period = %q", v)
	}
}

func TestHealthAndAssets(t *testing.T) {
	_, _, h := testService(t, false)

	if w := get(t, h, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz status %d", w.Code)
	}
	w := get(t, h, "/static/readiness.js")
	if !strings.Contains(w.Body.String(), "data-export-ready") || !strings.Contains(w.Body.String(), "1000") {
		t.Error("readiness script must carry the settle delay")
	}
	if w := get(t, h, "/static/export.css"); !strings.Contains(w.Body.String(), "animation: none") {
		t.Error("export stylesheet missing")
	}
	w = get(t, h, "/static/capture.js")
	if w.Code != http.StatusOK {
		t.Errorf("capture.js status %d", w.Code)
	}
	// The fallback rasterizes the live DOM in the browser; it must not go
	// back to a server renderer.
	js := w.Body.String()
	for _, want := range []string{"foreignObject", "document.fonts", `"data-render-mode", "export"`, "toBlob"} {
		if !strings.Contains(js, want) {
			t.Errorf("capture.js lacks %q", want)
		}
	}
	if strings.Contains(js, "/api/export/live") {
		t.Error("in-browser capture must not call the live capture endpoint")
	}
}

func TestService_RefreshMemoPerPage(t *testing.T) {
	svc, _, _ := testService(t, true)
	ctx := context.Background()
	page := svc.newID()

	first, err := svc.Refresh(ctx, page, report.Day(reportDay), report.ViewDay)
	if err != nil {
		t.Fatal(err)
	}
	again, err := svc.Refresh(ctx, page, report.Day(reportDay), report.ViewDay)
	if err != nil {
		t.Fatal(err)
	}
	if first.Snapshot == again.Snapshot {
		t.Error("every refresh builds a fresh snapshot")
	}
	if first.Summary == again.Summary {
		t.Error("a new snapshot must be summarized again")
	}
	sess := svc.pages.Get(page)
	cur, ok := sess.Current()
	if !ok || sess.Summary(cur) != again.Summary {
		t.Error("memo must return the summary of the current snapshot")
	}
}

func TestService_RefreshPagesAreIndependent(t *testing.T) {
	svc, _, _ := testService(t, true)
	ctx := context.Background()
	// The seed carries a baseline day before reportDay.
	other := reportDay.AddDate(0, 0, -1)

	days := []time.Time{reportDay, other}
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for k, d := range days {
			wg.Add(1)
			go func(page string, d time.Time) {
				defer wg.Done()
				rep, err := svc.Refresh(ctx, page, report.Day(d), report.ViewDay)
				if err != nil {
					errs <- fmt.Errorf("page %s asked %s: %w", page, d.Format(report.DateLayout), err)
					return
				}
				if !rep.Period.Start.Equal(d) || rep.Summary == nil || !rep.Summary.Period.Start.Equal(d) {
					errs <- fmt.Errorf("page %s asked %s, got %s", page, d.Format(report.DateLayout), rep.Period)
				}
			}(fmt.Sprintf("pg_%d_%d", i, k), d)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestExportURL(t *testing.T) {
	svc, _, _ := testService(t, false)
	u, err := svc.ExportURL(report.ExportRequest{
		Period: report.Day(reportDay),
		View:   report.ViewDay,
		Format: report.FormatPDF,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "http://127.0.0.1:8080/api/export?") {
		t.Errorf("url = %q", u)
	}
	parsed, _ := url.Parse(u)
	q := parsed.Query()
	if q.Get("date") != "2026-01-07" || q.Get("format") != "pdf" || q.Has("export") {
		t.Errorf("query = %v", q)
	}
}
