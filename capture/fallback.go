package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hazyhaar/zona9/horosafe"
	"github.com/hazyhaar/zona9/kit"
	"github.com/hazyhaar/zona9/rendermode"
	"github.com/hazyhaar/zona9/report"
)

// Fallback is the server-side capture of the interactive page, behind
// GET /api/export/live and `zona9 capture --live`. It loads the page
// without the export flag and imposes the export layout in place. It
// shares the driver's launcher, so it is no help when the browser cannot
// start; the dashboard's in-browser capture covers that case. Best
// effort, no retry.
type Fallback struct {
	d *Driver
}

// NewFallback shares the driver's launcher and configuration.
func NewFallback(d *Driver) *Fallback { return &Fallback{d: d} }

// LiveURL is the interactive page for req: the export URL without the
// export flag.
func LiveURL(req report.ExportRequest, base string) (string, error) {
	raw, err := req.URL(base)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Del(report.ParamExport)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CaptureCurrentView screenshots liveURL as a PNG.
func (f *Fallback) CaptureCurrentView(ctx context.Context, liveURL string) (art *Artifact, err error) {
	cfg := f.d.cfg
	start := time.Now()

	req := report.ExportRequest{Format: report.FormatPNG}
	filename := "Zona9_Report.png"
	if u, perr := url.Parse(liveURL); perr == nil {
		if parsed, perr := report.ParseExportRequest(u.Query()); perr == nil {
			req = parsed
			req.Format = report.FormatPNG
			filename = req.Filename()
		}
	}
	ctx = kit.WithExportID(ctx, cfg.NewID())
	log := f.d.jobLogger(ctx, req)
	defer func() { f.d.record(ctx, "live", req, start, art, err) }()

	if _, err := horosafe.ValidateOrigin(liveURL, cfg.AllowedHosts); err != nil {
		return nil, &report.RenderError{Stage: report.StageValidate, Err: err}
	}

	b, err := f.d.launcher.Launch(ctx)
	if err != nil {
		return nil, &report.RenderError{Stage: report.StageLaunch, Err: err}
	}
	defer b.Close()

	page, err := f.d.open(ctx, b, liveURL)
	if err != nil {
		return nil, err
	}

	normCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	err = page.Run(normCtx, rendermode.NormalizeScript)
	if err == nil {
		// Charts are optional here; an empty day has none.
		var mounted bool
		mounted, err = page.ChartMounted(normCtx)
		if err == nil && !mounted {
			log.Warn("capture: live page has no chart surface")
		}
	}
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", rendermode.ErrNotReady, err)
		}
		return nil, &report.RenderError{Stage: report.StageReady, Err: err}
	}

	return f.d.shoot(ctx, page, report.FormatPNG, filename)
}
