package rendermode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotReady is returned when the page did not become ready before the
// context ended.
var ErrNotReady = errors.New("rendermode: page not ready")

// Probe inspects a page. The two conditions are checked independently.
type Probe interface {
	FontsLoaded(ctx context.Context) (bool, error)
	ChartMounted(ctx context.Context) (bool, error)
}

// Clock abstracts timers so tests can drive time.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Readiness waits for the readiness contract.
type Readiness struct {
	PollInterval time.Duration
	SettleDelay  time.Duration
	Clock        Clock
}

func (r *Readiness) defaults() {
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	if r.SettleDelay < 0 {
		r.SettleDelay = 0
	}
	if r.Clock == nil {
		r.Clock = SystemClock
	}
}

// Wait polls p until fonts are loaded and a chart is mounted, then waits
// SettleDelay. Each condition latches once observed. It returns ErrNotReady
// if ctx ends first, or the probe error if a probe fails.
func (r Readiness) Wait(ctx context.Context, p Probe) error {
	r.defaults()
	var fonts, chart bool
	for {
		var err error
		if !fonts {
			if fonts, err = p.FontsLoaded(ctx); err != nil {
				return fmt.Errorf("rendermode: fonts probe: %w", err)
			}
		}
		if !chart {
			if chart, err = p.ChartMounted(ctx); err != nil {
				return fmt.Errorf("rendermode: chart probe: %w", err)
			}
		}
		if fonts && chart {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: fonts=%t chart=%t: %w", ErrNotReady, fonts, chart, ctx.Err())
		case <-r.Clock.After(r.PollInterval):
		}
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: settling: %w", ErrNotReady, ctx.Err())
	case <-r.Clock.After(r.SettleDelay):
		return nil
	}
}

// ReadinessScript returns the in-page script publishing the same contract:
// once document.fonts is ready and a chart surface exists, it waits settle
// and then sets window.__zona9Ready and data-export-ready="true" on <html>.
func ReadinessScript(settle time.Duration) string {
	ms := strconv.FormatInt(settle.Milliseconds(), 10)
	return `(function () {
  var root = document.documentElement;
  function chart() { return document.querySelector("` + ChartSelector + `") !== null; }
  function whenChart() {
    return new Promise(function (resolve) {
      if (chart()) { return resolve(); }
      var obs = new MutationObserver(function () {
        if (chart()) { obs.disconnect(); resolve(); }
      });
      obs.observe(document.body, { childList: true, subtree: true });
    });
  }
  var fonts = document.fonts ? document.fonts.ready : Promise.resolve();
  Promise.all([fonts, whenChart()]).then(function () {
    setTimeout(function () {
      window.__zona9Ready = true;
      root.setAttribute("data-export-ready", "true");
    }, ` + ms + `);
  });
})();`
}

// NormalizeScript imposes the export layout on a live interactive page:
// it hides controls, expands scroll containers, unsticks headers, stops
// animations and resolves once web fonts are ready.
const NormalizeScript = `() => {
  var root = document.documentElement;
  root.setAttribute("data-render-mode", "export");
  document.querySelectorAll(".no-print").forEach(function (el) { el.style.display = "none"; });
  document.querySelectorAll(".scroll-area").forEach(function (el) {
    el.style.maxHeight = "none"; el.style.height = "auto"; el.style.overflow = "visible";
  });
  document.querySelectorAll(".sticky").forEach(function (el) { el.style.position = "static"; });
  document.querySelectorAll("textarea").forEach(function (el) {
    el.style.height = "auto"; el.style.height = el.scrollHeight + "px";
  });
  var style = document.createElement("style");
  style.textContent = "*,*::before,*::after{animation:none!important;transition:none!important}";
  document.head.appendChild(style);
  return document.fonts ? document.fonts.ready.then(function () { return true; }) : true;
}`
