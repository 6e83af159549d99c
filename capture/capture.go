// Package capture renders the dashboard to PNG or PDF by driving a
// headless browser against the export-mode page. Every capture runs in its
// own browser, which is torn down on every exit path. Failures surface as
// a single *report.RenderError; no partial artifact is ever returned.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/zona9/horosafe"
	"github.com/hazyhaar/zona9/idgen"
	"github.com/hazyhaar/zona9/kit"
	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/rendermode"
	"github.com/hazyhaar/zona9/report"
)

// Artifact is a finished capture.
type Artifact struct {
	Data     []byte
	MIME     string
	Filename string
	Width    int // CSS px
	Height   int // CSS px
}

// Config configures a Driver.
type Config struct {
	// BaseURL is the dashboard origin used when a request carries no host.
	BaseURL string

	// AllowedHosts lists origins a capture may navigate to. Default:
	// BaseURL alone. An empty list with no BaseURL admits public origins only.
	AllowedHosts []string

	ViewportWidth int     // Default: 1440.
	DeviceScale   float64 // Default: 2.

	// NavigationTimeout bounds navigation plus network quiescence.
	// Default: 30s.
	NavigationTimeout time.Duration

	// ReadyTimeout bounds the wait for the readiness contract. Default: 10s.
	ReadyTimeout time.Duration

	// Readiness carries the poll interval and settle delay.
	Readiness rendermode.Readiness

	// MaxHeight caps the measured content height. Default: 30000 px.
	MaxHeight int

	Logger  *slog.Logger
	Metrics *observability.MetricsManager
	Events  *observability.EventLogger
	NewID   idgen.Generator
}

func (c *Config) defaults() {
	if len(c.AllowedHosts) == 0 && c.BaseURL != "" {
		c.AllowedHosts = []string{c.BaseURL}
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = rendermode.DefaultViewportWidth
	}
	if c.DeviceScale <= 0 {
		c.DeviceScale = rendermode.DefaultDeviceScale
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 10 * time.Second
	}
	if c.Readiness.SettleDelay == 0 {
		c.Readiness.SettleDelay = rendermode.DefaultSettleDelay
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = 30000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = idgen.Prefixed("exp_", idgen.Default)
	}
}

// Driver produces artifacts from export requests.
type Driver struct {
	cfg      Config
	launcher Launcher
}

// NewDriver returns a driver launching browsers through l.
func NewDriver(l Launcher, cfg Config) *Driver {
	cfg.defaults()
	return &Driver{cfg: cfg, launcher: l}
}

// Render captures the export-mode page for req. The browser is released
// before Render returns, whatever the outcome.
func (d *Driver) Render(ctx context.Context, req report.ExportRequest) (art *Artifact, err error) {
	start := time.Now()
	ctx = kit.WithExportID(ctx, d.cfg.NewID())
	defer func() { d.record(ctx, "render", req, start, art, err) }()

	if req.Format == "" {
		req.Format = report.FormatPNG
	}
	target, err := d.target(req)
	if err != nil {
		return nil, err
	}

	b, err := d.launcher.Launch(ctx)
	if err != nil {
		return nil, &report.RenderError{Stage: report.StageLaunch, Err: err}
	}
	defer b.Close()

	page, err := d.open(ctx, b, target)
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadyTimeout)
	err = d.cfg.Readiness.Wait(readyCtx, page)
	cancel()
	if err != nil {
		return nil, &report.RenderError{Stage: report.StageReady, Err: err}
	}

	return d.shoot(ctx, page, req.Format, req.Filename())
}

// target builds and checks the URL the browser will load.
func (d *Driver) target(req report.ExportRequest) (string, error) {
	base := req.Host
	if base == "" {
		base = d.cfg.BaseURL
	}
	if _, err := horosafe.ValidateOrigin(base, d.cfg.AllowedHosts); err != nil {
		return "", &report.RenderError{Stage: report.StageValidate, Err: err}
	}
	u, err := req.URL(base)
	if err != nil {
		return "", &report.RenderError{Stage: report.StageValidate, Err: err}
	}
	return u, nil
}

// open creates a page at the capture viewport and navigates it to url.
func (d *Driver) open(ctx context.Context, b Browser, url string) (Page, error) {
	page, err := b.OpenPage(ctx)
	if err != nil {
		return nil, &report.RenderError{Stage: report.StageLaunch, Err: err}
	}
	if err := page.SetViewport(d.cfg.ViewportWidth, 900, d.cfg.DeviceScale); err != nil {
		return nil, &report.RenderError{Stage: report.StageLaunch, Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, d.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, url); err != nil {
		return nil, &report.RenderError{Stage: report.StageNavigate, Err: fmt.Errorf("%s: %w", url, err)}
	}
	return page, nil
}

// shoot measures the settled content and captures it at exactly that size.
func (d *Driver) shoot(ctx context.Context, page Page, format report.Format, filename string) (*Artifact, error) {
	height, err := page.ContentHeight(ctx)
	if err != nil {
		return nil, &report.RenderError{Stage: report.StageMeasure, Err: err}
	}
	if height <= 0 {
		return nil, &report.RenderError{Stage: report.StageMeasure, Err: errors.New("empty content")}
	}
	if height > d.cfg.MaxHeight {
		return nil, &report.RenderError{
			Stage: report.StageMeasure,
			Err:   fmt.Errorf("content height %d exceeds %d", height, d.cfg.MaxHeight),
		}
	}

	if err := page.SetViewport(d.cfg.ViewportWidth, height, d.cfg.DeviceScale); err != nil {
		return nil, &report.RenderError{Stage: report.StageCapture, Err: err}
	}

	var data []byte
	switch format {
	case report.FormatPDF:
		data, err = page.PDF(ctx, d.cfg.ViewportWidth, height)
		if err != nil {
			return nil, &report.RenderError{Stage: report.StageCapture, Err: err}
		}
		if err := verifySinglePage(data); err != nil {
			return nil, &report.RenderError{Stage: report.StageVerify, Err: err}
		}
	default:
		data, err = page.Screenshot(ctx)
		if err != nil {
			return nil, &report.RenderError{Stage: report.StageCapture, Err: err}
		}
	}
	if len(data) == 0 {
		return nil, &report.RenderError{Stage: report.StageCapture, Err: errors.New("empty output")}
	}

	return &Artifact{
		Data:     data,
		MIME:     format.MIME(),
		Filename: filename,
		Width:    d.cfg.ViewportWidth,
		Height:   height,
	}, nil
}

// jobLogger tags the logger with the export id carried by ctx.
func (d *Driver) jobLogger(ctx context.Context, req report.ExportRequest) *slog.Logger {
	return d.cfg.Logger.With("export_id", kit.GetExportID(ctx), "period", req.Period.String(), "format", string(req.Format))
}

type eventDetails struct {
	ExportID  string `json:"export_id"`
	Format    string `json:"format"`
	Stage     string `json:"stage,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// record emits the render metrics and the business event of the export
// job tagged on ctx.
func (d *Driver) record(ctx context.Context, action string, req report.ExportRequest, start time.Time, art *Artifact, err error) {
	ok := err == nil
	elapsed := time.Since(start)
	labels := map[string]string{"action": action, "format": string(req.Format), "view": string(req.View)}
	log := d.jobLogger(ctx, req)

	stage := ""
	if ok {
		log.Info("capture: done", "action", action, "bytes", len(art.Data), "height", art.Height, "elapsed", elapsed)
	} else {
		var re *report.RenderError
		if errors.As(err, &re) {
			stage = re.Stage
			labels["stage"] = stage
		}
		log.Error("capture: failed", "action", action, "stage", stage, "error", err)
	}

	if m := d.cfg.Metrics; m != nil {
		m.RecordDuration(observability.MetricExportRenderMs, start, labels)
		if ok {
			m.Record(&observability.Metric{
				Name:      observability.MetricExportBytes,
				Timestamp: time.Now(),
				Value:     float64(len(art.Data)),
				Unit:      "bytes",
				Labels:    labels,
			})
		} else {
			m.Count(observability.MetricExportRenderFailed, labels)
		}
	}

	if ev := d.cfg.Events; ev != nil {
		eventType := observability.EventExportRender
		if action == "live" {
			eventType = observability.EventExportLive
		}
		details, _ := json.Marshal(eventDetails{
			ExportID:  kit.GetExportID(ctx),
			Format:    string(req.Format),
			Stage:     stage,
			ElapsedMs: elapsed.Milliseconds(),
		})
		ev.LogEvent(context.WithoutCancel(ctx), observability.BusinessEvent{
			EventType:   eventType,
			ServiceName: "capture",
			EntityType:  "period",
			EntityID:    req.Period.String(),
			Action:      action,
			Details:     string(details),
			Success:     ok,
		})
	}
}
