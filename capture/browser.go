package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/zona9/rendermode"
)

// Launcher starts an isolated browser for one capture.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one isolated browser context. Close releases every OS
// resource it holds and is safe to call more than once.
type Browser interface {
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the set of page operations a capture needs.
type Page interface {
	rendermode.Probe
	SetViewport(width, height int, scale float64) error
	// Navigate loads url and returns once the network has been idle for
	// the configured quiet period.
	Navigate(ctx context.Context, url string) error
	// Run evaluates a JS function and waits for the promise it returns.
	Run(ctx context.Context, js string) error
	ContentHeight(ctx context.Context) (int, error)
	Screenshot(ctx context.Context) ([]byte, error)
	PDF(ctx context.Context, widthPx, heightPx int) ([]byte, error)
}

// RodConfig configures the rod-backed launcher.
type RodConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Each capture
	// then runs in its own incognito context. Empty launches a local
	// headless Chrome per capture.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty lets the launcher resolve it.
	Bin string

	// IdleQuiet is how long the network must stay idle after navigation.
	// Default: 500ms.
	IdleQuiet time.Duration

	Logger *slog.Logger
}

func (c *RodConfig) defaults() {
	if c.IdleQuiet <= 0 {
		c.IdleQuiet = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RodLauncher launches Chrome through go-rod.
type RodLauncher struct {
	cfg RodConfig
}

// NewRodLauncher returns a launcher for cfg.
func NewRodLauncher(cfg RodConfig) *RodLauncher {
	cfg.defaults()
	return &RodLauncher{cfg: cfg}
}

// Launch starts (or connects to) Chrome. On error nothing is left running.
func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	log := l.cfg.Logger

	if l.cfg.RemoteURL != "" {
		// The connection outlives the request context until Close has
		// disposed of the incognito context.
		connCtx, disconnect := context.WithCancel(context.WithoutCancel(ctx))
		root := rod.New().ControlURL(l.cfg.RemoteURL).Context(connCtx)
		if err := root.Connect(); err != nil {
			disconnect()
			return nil, fmt.Errorf("capture: connect %s: %w", l.cfg.RemoteURL, err)
		}
		inc, err := root.Incognito()
		if err != nil {
			disconnect()
			return nil, fmt.Errorf("capture: incognito: %w", err)
		}
		log.Debug("capture: remote incognito context opened", "url", l.cfg.RemoteURL)
		return &rodBrowser{b: inc, disconnect: disconnect, idle: l.cfg.IdleQuiet, log: log}, nil
	}

	ln := launcher.New().Headless(true).Context(ctx)
	if l.cfg.Bin != "" {
		ln = ln.Bin(l.cfg.Bin)
	}
	u, err := ln.Launch()
	if err != nil {
		ln.Cleanup()
		return nil, fmt.Errorf("capture: launch: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("capture: connect: %w", err)
	}
	log.Debug("capture: launched local chrome", "url", u)
	return &rodBrowser{b: b, lnch: ln, idle: l.cfg.IdleQuiet, log: log}, nil
}

type rodBrowser struct {
	b          *rod.Browser
	lnch       *launcher.Launcher
	disconnect context.CancelFunc
	idle       time.Duration
	log        *slog.Logger
	closed     bool
}

func (rb *rodBrowser) OpenPage(ctx context.Context) (Page, error) {
	p, err := rb.b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("capture: open page: %w", err)
	}
	return &rodPage{p: p, idle: rb.idle}, nil
}

// Close closes the browser (or the incognito context on a remote Chrome)
// and removes the launcher's profile directory.
func (rb *rodBrowser) Close() error {
	if rb.closed {
		return nil
	}
	rb.closed = true
	var err error
	if rb.b != nil {
		if cerr := rb.b.Close(); cerr != nil {
			err = fmt.Errorf("capture: close browser: %w", cerr)
		}
	}
	if rb.disconnect != nil {
		rb.disconnect()
	}
	if rb.lnch != nil {
		rb.lnch.Kill()
		rb.lnch.Cleanup()
	}
	if err != nil {
		rb.log.Warn("capture: teardown", "error", err)
	}
	return err
}

type rodPage struct {
	p    *rod.Page
	idle time.Duration
}

func (rp *rodPage) SetViewport(width, height int, scale float64) error {
	return rp.p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: scale,
	})
}

func (rp *rodPage) Navigate(ctx context.Context, url string) error {
	p := rp.p.Context(ctx)
	wait := p.WaitRequestIdle(rp.idle, nil, nil, nil)
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	if err := p.WaitLoad(); err != nil {
		return err
	}
	return ctx.Err()
}

func (rp *rodPage) Run(ctx context.Context, js string) error {
	_, err := rp.p.Context(ctx).Eval(js)
	return err
}

func (rp *rodPage) FontsLoaded(ctx context.Context) (bool, error) {
	res, err := rp.p.Context(ctx).Eval(`() => !document.fonts || document.fonts.status === "loaded"`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (rp *rodPage) ChartMounted(ctx context.Context) (bool, error) {
	ok, _, err := rp.p.Context(ctx).Has(rendermode.ChartSelector)
	return ok, err
}

func (rp *rodPage) ContentHeight(ctx context.Context) (int, error) {
	res, err := rp.p.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel) || document.documentElement;
		return Math.ceil(Math.max(el.scrollHeight, el.getBoundingClientRect().height));
	}`, rendermode.RootSelector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (rp *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return rp.p.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// PDF prints one page sized exactly to the content: CSS pixels are 1/96 in.
func (rp *rodPage) PDF(ctx context.Context, widthPx, heightPx int) ([]byte, error) {
	r, err := rp.p.Context(ctx).PDF(&proto.PagePrintToPDF{
		PaperWidth:      gson.Num(float64(widthPx) / 96),
		PaperHeight:     gson.Num(float64(heightPx) / 96),
		MarginTop:       gson.Num(0),
		MarginBottom:    gson.Num(0),
		MarginLeft:      gson.Num(0),
		MarginRight:     gson.Num(0),
		PrintBackground: true,
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
