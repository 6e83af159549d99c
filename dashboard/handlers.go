package dashboard

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/assemble"
	"github.com/hazyhaar/zona9/idgen"
	"github.com/hazyhaar/zona9/rendermode"
	"github.com/hazyhaar/zona9/report"
	"github.com/hazyhaar/zona9/shield"
	"github.com/hazyhaar/zona9/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// Mount registers the dashboard routes on r.
func (s *Service) Mount(r chi.Router) {
	r.Get("/", s.handlePage)
	r.Post("/entry", s.handleEntry)
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/api/export/xlsx", s.handleWorkbook)
	r.Get("/api/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)
	r.Get("/static/readiness.js", s.handleReadinessJS)
	r.Get("/static/export.css", handleExportCSS)

	sub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
}

// pageQuery is the decoded state of a page URL.
type pageQuery struct {
	View   report.ViewMode
	Period report.Period
	Mode   rendermode.Controller
}

// parsePageQuery reads view, date, startDate and endDate. A missing date
// opens the latest reported day; a weekly view without a range covers the
// Monday to Sunday week of the date.
func (s *Service) parsePageQuery(r *http.Request) (pageQuery, error) {
	q := r.URL.Query()
	view, err := report.ParseViewMode(q.Get(report.ParamView))
	if err != nil {
		return pageQuery{}, err
	}
	pq := pageQuery{View: view, Mode: rendermode.FromQuery(q)}

	start, end, date := q.Get(report.ParamStartDate), q.Get(report.ParamEndDate), q.Get(report.ParamDate)
	switch {
	case start != "" && end != "":
		pq.Period, err = report.ParseRange(start, end)
	case date != "":
		pq.Period, err = report.ParseDay(date)
	default:
		pq.Period = report.Day(s.DefaultDate(r.Context()))
	}
	if err != nil {
		return pageQuery{}, err
	}

	switch view {
	case report.ViewWeek:
		if pq.Period.IsDay() {
			pq.Period = report.WeekOf(pq.Period.Start)
		}
	case report.ViewEntry:
		pq.Period = report.Day(pq.Period.Start)
	}
	return pq, nil
}

// pageData feeds templates/page.html.
type pageData struct {
	Title   string
	Mode    string
	Export  bool
	Layout  rendermode.Layout
	View    report.ViewMode
	Period  report.Period
	Report  *Report
	Summary *aggregate.Summary
	Flash   *shield.FlashMessage
	NoData  bool
	Failed  bool
	Charts  charts
	Entry   *entryForm
	Nav     nav
	Links   exportLinks
	// PageID keys the snapshot session of this page for /api/snapshot.
	PageID string
	Now    time.Time
}

type charts struct {
	Stock    donut
	POB      donut
	RigMoves donut
	Fuel     []donut
}

type nav struct {
	Prev, Next, Day, Week, Entry string
}

type exportLinks struct {
	PNG, PDF, Workbook string
	// Filename names the in-browser capture of the current view.
	Filename string
}

func (s *Service) handlePage(w http.ResponseWriter, r *http.Request) {
	pq, err := s.parsePageQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log := shield.GetLogger(r.Context())

	data := pageData{
		Mode:   pq.Mode.Mode().String(),
		Export: pq.Mode.IsExport(),
		Layout: pq.Mode.Layout(),
		View:   pq.View,
		Period: pq.Period,
		Flash:  shield.GetFlash(r.Context()),
		PageID: s.newID(),
		Now:    s.cfg.Now(),
	}
	data.Nav = s.navFor(pq)
	data.Links = s.exportLinksFor(pq)

	rep := s.Load(r.Context(), pq.Period, pq.View)
	data.Report = rep
	data.Summary = rep.Summary
	data.Failed = rep.Outcome == report.OutcomeUnavailable
	data.NoData = rep.Outcome != report.OutcomeReady

	switch pq.View {
	case report.ViewEntry:
		data.Title = "Data entry"
		weekly, err := s.store.SelectNotes(r.Context(), store.OnDate(report.StandingWeeklyDate))
		if err != nil {
			log.Warn("dashboard: weekly standing notes", "error", err)
		}
		var daily []report.ActivityNote
		if rep.Snapshot != nil {
			daily = rep.Snapshot.StandingNotes
		}
		form := newEntryForm(pq.Period.Start, rep.Snapshot, daily, weekly)
		data.Entry = &form
	case report.ViewWeek:
		data.Title = "Weekly report"
	default:
		data.Title = "Daily report"
	}
	if data.Summary != nil {
		data.Charts = buildCharts(data.Summary)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "page.html", data); err != nil {
		log.Error("dashboard: render page", "error", err)
	}
}

func buildCharts(sum *aggregate.Summary) charts {
	c := charts{
		Stock: newDonut("Stock Value Distribution", "Rp", sum.StockShares),
		POB:   newDonut("Person on Board", "people", sum.POBShares),
	}
	var moves []aggregate.Slice
	for _, m := range sum.RigMoves {
		moves = append(moves, aggregate.Slice{Name: m.Site, Value: float64(m.Count), Color: m.Color})
	}
	c.RigMoves = newDonut("Support Rig Move", "moves", aggregate.Shares(moves, aggregate.DefaultLabelThreshold))
	for _, cat := range report.FuelCategories {
		c.Fuel = append(c.Fuel, newDonut(cat, "L", sum.FuelShares[cat]))
	}
	return c
}

func (s *Service) navFor(pq pageQuery) nav {
	link := func(view report.ViewMode, p report.Period) string {
		v := url.Values{}
		if view != report.ViewDay {
			v.Set(report.ParamView, string(view))
		}
		if view == report.ViewWeek {
			v.Set(report.ParamStartDate, p.Start.Format(report.DateLayout))
			v.Set(report.ParamEndDate, p.End.Format(report.DateLayout))
		} else {
			v.Set(report.ParamDate, p.Start.Format(report.DateLayout))
		}
		return "/?" + v.Encode()
	}
	step := 1
	if pq.View == report.ViewWeek {
		step = 7
	}
	prev := report.Period{Start: pq.Period.Start.AddDate(0, 0, -step), End: pq.Period.End.AddDate(0, 0, -step)}
	next := report.Period{Start: pq.Period.Start.AddDate(0, 0, step), End: pq.Period.End.AddDate(0, 0, step)}
	day := report.Day(pq.Period.End)
	return nav{
		Prev:  link(pq.View, prev),
		Next:  link(pq.View, next),
		Day:   link(report.ViewDay, day),
		Week:  link(report.ViewWeek, report.WeekOf(day.Start)),
		Entry: link(report.ViewEntry, day),
	}
}

func (s *Service) exportLinksFor(pq pageQuery) exportLinks {
	view := pq.View
	if view == report.ViewEntry {
		view = report.ViewDay
	}
	req := report.ExportRequest{Period: pq.Period, View: view}
	png := req
	png.Format = report.FormatPNG
	pdf := req
	pdf.Format = report.FormatPDF

	rel := func(path string, r report.ExportRequest) string {
		v := r.Values()
		v.Del(report.ParamExport)
		return path + "?" + v.Encode()
	}
	return exportLinks{
		PNG:      rel("/api/export", png),
		PDF:      rel("/api/export", pdf),
		Workbook: rel("/api/export/xlsx", req),
		Filename: png.Filename(),
	}
}

// handleEntry saves the entry form and redirects back to the entry view
// with a flash message.
func (s *Service) handleEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	back := "/?" + url.Values{report.ParamView: {string(report.ViewEntry)}, report.ParamDate: {r.PostForm.Get(fieldDate)}}.Encode()

	e, err := parseEntry(r.PostForm)
	if err != nil {
		shield.SetFlash(w, shield.FlashError, err.Error())
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err := s.Save(r.Context(), e); err != nil {
		msg := "Save failed"
		var se *report.SaveError
		if errors.As(err, &se) {
			msg = "Save failed while writing " + se.Collection + "; earlier sections were saved"
		}
		shield.SetFlash(w, shield.FlashError, msg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	shield.SetFlash(w, shield.FlashSuccess, "Report saved for "+e.Date.Format(report.DateLayout))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// snapshotResponse is the body of GET /api/snapshot.
type snapshotResponse struct {
	Period  string             `json:"period"`
	View    report.ViewMode    `json:"view"`
	Outcome string             `json:"outcome"`
	Summary *aggregate.Summary `json:"summary"`
	Error   string             `json:"error,omitempty"`
}

// handleSnapshot returns the summary of a Period. With a page parameter
// the load goes through that page's session, and a request overtaken by
// a newer one of the same page answers 409. Without one the load is
// stateless.
func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	pq, err := s.parsePageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var rep *Report
	if page := r.URL.Query().Get(paramPage); page != "" {
		if err := validPageID(page); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rep, err = s.Refresh(r.Context(), page, pq.Period, pq.View)
		if errors.Is(err, assemble.ErrSuperseded) {
			writeError(w, http.StatusConflict, err)
			return
		}
	} else {
		rep = s.Load(r.Context(), pq.Period, pq.View)
	}

	resp := snapshotResponse{
		Period:  rep.Period.String(),
		View:    rep.View,
		Outcome: rep.Outcome.String(),
		Summary: rep.Summary,
	}
	code := http.StatusOK
	if rep.Outcome == report.OutcomeUnavailable {
		code = http.StatusServiceUnavailable
		resp.Error = report.ErrDataUnavailable.Error()
	}
	writeJSON(w, code, resp)
}

// validPageID accepts the ids handed out with the page: "pg_" and a UUID.
func validPageID(page string) error {
	id, ok := strings.CutPrefix(page, pagePrefix)
	if !ok {
		return fmt.Errorf("dashboard: invalid page id %q", page)
	}
	if _, err := idgen.Parse(id); err != nil {
		return fmt.Errorf("dashboard: invalid page id %q: %w", page, err)
	}
	return nil
}

// handleStats reports the export and entry activity of the last days
// days (default 7).
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if raw := r.URL.Query().Get(paramDays); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStatsDays {
			writeError(w, http.StatusBadRequest, fmt.Errorf("dashboard: days must be an integer between 1 and %d", maxStatsDays))
			return
		}
		days = n
	}
	st, err := s.Stats(r.Context(), days)
	switch {
	case errors.Is(err, ErrNoObservability):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadinessJS serves the export readiness script. It is a route
// rather than an inline script so the page works under script-src 'self'.
func (s *Service) handleReadinessJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(rendermode.ReadinessScript(s.cfg.SettleDelay)))
}

func handleExportCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write([]byte(rendermode.ExportCSS))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
