package rendermode

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  Mode
	}{
		{"export=true&date=2026-01-07", Export},
		{"date=2026-01-07", Interactive},
		{"export=1", Interactive},
		{"export=false", Interactive},
		{"", Interactive},
	}
	for _, tt := range tests {
		v, _ := url.ParseQuery(tt.query)
		if got := FromQuery(v).Mode(); got != tt.want {
			t.Errorf("FromQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestLayout(t *testing.T) {
	l := New(Export).Layout()
	if l.Width != 1440 || !l.HideControls || !l.ExpandScroll || !l.AutoGrowText || !l.DisableAnimations {
		t.Errorf("export layout = %+v", l)
	}
	if (New(Interactive).Layout() != Layout{}) {
		t.Error("interactive layout should be unconstrained")
	}
	if !strings.Contains(ExportCSS, `data-render-mode="export"`) {
		t.Error("ExportCSS not scoped to export mode")
	}
}

// virtualClock advances a virtual time on every After call and fires at
// once. Past limit it cancels the test context instead.
type virtualClock struct {
	mu     sync.Mutex
	now    time.Duration
	limit  time.Duration
	cancel context.CancelFunc
}

func (c *virtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if c.limit > 0 && c.now+d > c.limit {
		c.cancel()
		return ch // never fires
	}
	c.now += d
	ch <- time.Time{}
	return ch
}

func (c *virtualClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// timedProbe reports fonts and chart ready once the virtual clock has
// reached the given instants; negative means never.
type timedProbe struct {
	clock          *virtualClock
	fontsAt        time.Duration
	chartAt        time.Duration
	fontsFirstSeen time.Duration
	chartFirstSeen time.Duration
}

func (p *timedProbe) FontsLoaded(context.Context) (bool, error) {
	now := p.clock.elapsed()
	ok := p.fontsAt >= 0 && now >= p.fontsAt
	if ok && p.fontsFirstSeen < 0 {
		p.fontsFirstSeen = now
	}
	return ok, nil
}

func (p *timedProbe) ChartMounted(context.Context) (bool, error) {
	now := p.clock.elapsed()
	ok := p.chartAt >= 0 && now >= p.chartAt
	if ok && p.chartFirstSeen < 0 {
		p.chartFirstSeen = now
	}
	return ok, nil
}

func TestReadiness_WaitsForBothConditionsThenSettles(t *testing.T) {
	tests := []struct {
		name             string
		fontsAt, chartAt time.Duration
		want             time.Duration
	}{
		{"fonts first", 300 * time.Millisecond, 700 * time.Millisecond, 1700 * time.Millisecond},
		{"chart first", 900 * time.Millisecond, 200 * time.Millisecond, 1900 * time.Millisecond},
		{"both immediately", 0, 0, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &virtualClock{}
			p := &timedProbe{clock: clock, fontsAt: tt.fontsAt, chartAt: tt.chartAt, fontsFirstSeen: -1, chartFirstSeen: -1}
			r := Readiness{PollInterval: 100 * time.Millisecond, SettleDelay: time.Second, Clock: clock}

			if err := r.Wait(context.Background(), p); err != nil {
				t.Fatalf("Wait: %v", err)
			}
			ready := clock.elapsed()
			if ready != tt.want {
				t.Errorf("ready at %v, want %v", ready, tt.want)
			}
			last := max(p.fontsFirstSeen, p.chartFirstSeen)
			if ready < last+r.SettleDelay {
				t.Errorf("ready at %v before conditions (%v) plus settle", ready, last)
			}
		})
	}
}

func TestReadiness_NeverReadyWithoutChart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &virtualClock{limit: 10 * time.Second, cancel: cancel}
	p := &timedProbe{clock: clock, fontsAt: 0, chartAt: -1, fontsFirstSeen: -1, chartFirstSeen: -1}
	r := Readiness{PollInterval: 100 * time.Millisecond, SettleDelay: time.Second, Clock: clock}

	err := r.Wait(ctx, p)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if !strings.Contains(err.Error(), "fonts=true chart=false") {
		t.Errorf("err = %v", err)
	}
}

func TestReadiness_NeverReadyWithoutFonts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &virtualClock{limit: 5 * time.Second, cancel: cancel}
	p := &timedProbe{clock: clock, fontsAt: -1, chartAt: 0, fontsFirstSeen: -1, chartFirstSeen: -1}
	r := Readiness{PollInterval: 100 * time.Millisecond, SettleDelay: time.Second, Clock: clock}

	if err := r.Wait(ctx, p); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestReadiness_CancelledDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Conditions hold at once; the settle delay overshoots the limit.
	clock := &virtualClock{limit: 500 * time.Millisecond, cancel: cancel}
	p := &timedProbe{clock: clock, fontsFirstSeen: -1, chartFirstSeen: -1}
	r := Readiness{SettleDelay: time.Second, Clock: clock}

	err := r.Wait(ctx, p)
	if !errors.Is(err, ErrNotReady) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type failingProbe struct{}

func (failingProbe) FontsLoaded(context.Context) (bool, error) {
	return false, errors.New("target closed")
}
func (failingProbe) ChartMounted(context.Context) (bool, error) { return false, nil }

func TestReadiness_ProbeError(t *testing.T) {
	err := Readiness{Clock: &virtualClock{}}.Wait(context.Background(), failingProbe{})
	if err == nil || errors.Is(err, ErrNotReady) || !strings.Contains(err.Error(), "target closed") {
		t.Errorf("err = %v", err)
	}
}

func TestReadinessScript(t *testing.T) {
	s := ReadinessScript(1500 * time.Millisecond)
	for _, want := range []string{"document.fonts", ChartSelector, "1500", "__zona9Ready", "data-export-ready"} {
		if !strings.Contains(s, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if !strings.Contains(NormalizeScript, ".no-print") || !strings.Contains(NormalizeScript, ".scroll-area") {
		t.Error("NormalizeScript incomplete")
	}
}
