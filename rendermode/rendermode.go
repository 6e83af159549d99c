// Package rendermode decides once per page load whether the dashboard is
// interactive or rendered for capture, and defines the readiness contract
// a capture waits on: fonts loaded, a chart surface in the DOM, then a
// fixed settle delay.
package rendermode

import (
	"net/url"
	"time"
)

// Mode is the render mode of a page.
type Mode int

const (
	Interactive Mode = iota
	Export
)

func (m Mode) String() string {
	if m == Export {
		return "export"
	}
	return "interactive"
}

// Capture constants shared by the page and the capture paths.
const (
	DefaultViewportWidth = 1440
	DefaultDeviceScale   = 2.0
	DefaultSettleDelay   = time.Second
	DefaultPollInterval  = 100 * time.Millisecond

	// ChartSelector matches the element every chart renders.
	ChartSelector = ".chart-surface"

	// RootSelector matches the element whose height is measured.
	RootSelector = "#report-root"
)

// Layout lists the constraints applied in export mode.
type Layout struct {
	Width             int  // fixed CSS width in px, 0 in interactive mode
	HideControls      bool // inputs and buttons are not rendered
	ExpandScroll      bool // height-capped containers grow to their content
	AutoGrowText      bool // text blocks render at full height
	DisableAnimations bool
}

// Controller holds the mode of one page. It is immutable.
type Controller struct {
	mode Mode
}

// FromQuery derives the controller from the page launch parameters.
// Only export=true selects export mode.
func FromQuery(v url.Values) Controller {
	if v.Get("export") == "true" {
		return Controller{mode: Export}
	}
	return Controller{mode: Interactive}
}

// New returns a controller fixed to m.
func New(m Mode) Controller { return Controller{mode: m} }

// Mode returns the render mode.
func (c Controller) Mode() Mode { return c.mode }

// IsExport reports whether the page renders for capture.
func (c Controller) IsExport() bool { return c.mode == Export }

// Layout returns the layout constraints of the mode.
func (c Controller) Layout() Layout {
	if c.mode != Export {
		return Layout{}
	}
	return Layout{
		Width:             DefaultViewportWidth,
		HideControls:      true,
		ExpandScroll:      true,
		AutoGrowText:      true,
		DisableAnimations: true,
	}
}

// ExportCSS is applied when <html> carries data-render-mode="export".
const ExportCSS = `
html[data-render-mode="export"], html[data-render-mode="export"] body { width: 1440px; min-width: 1440px; overflow: visible; }
html[data-render-mode="export"] .no-print { display: none !important; }
html[data-render-mode="export"] .scroll-area { max-height: none !important; height: auto !important; overflow: visible !important; }
html[data-render-mode="export"] .sticky { position: static !important; }
html[data-render-mode="export"] .note-text { white-space: pre-wrap; height: auto !important; overflow: visible !important; }
html[data-render-mode="export"] *, html[data-render-mode="export"] *::before, html[data-render-mode="export"] *::after {
  animation: none !important; transition: none !important; caret-color: transparent;
}
`
