package assemble

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/report"
)

// ErrSuperseded is returned by Session.Load when a later Load was issued
// before this one completed. Its result was discarded.
var ErrSuperseded = errors.New("assemble: superseded by a newer request")

// State is the content of the snapshot slot.
type State struct {
	Period     report.Period
	View       report.ViewMode
	Snapshot   *report.Snapshot
	Outcome    report.Outcome
	Err        error
	Generation uint64
}

// Session owns the current snapshot of one page. Every Load is stamped
// with a generation; only the completion of the latest issued Load is
// swapped into the slot, so a slow earlier request never overwrites a
// newer one.
type Session struct {
	asm  *Assembler
	memo *aggregate.Memo

	issued atomic.Uint64

	mu     sync.Mutex
	state  State
	loaded bool
}

// NewSession creates a Session over asm summarizing with aggregate.Default.
func NewSession(asm *Assembler) *Session {
	return newSession(asm, aggregate.Default)
}

func newSession(asm *Assembler, agg aggregate.Aggregator) *Session {
	return &Session{asm: asm, memo: aggregate.NewMemo(agg)}
}

// Load assembles period and swaps the result into the slot if no newer
// Load was issued meanwhile. A failed assembly is stored too, as
// OutcomeUnavailable with no snapshot. The returned State is always the
// one this call built, superseded or not.
func (s *Session) Load(ctx context.Context, period report.Period, view report.ViewMode) (State, error) {
	gen := s.issued.Add(1)
	snap, err := s.asm.Assemble(ctx, period, view)

	st := State{
		Period:     period,
		View:       view,
		Snapshot:   snap,
		Outcome:    report.Classify(snap, err),
		Err:        err,
		Generation: gen,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.issued.Load() {
		return st, ErrSuperseded
	}
	s.state = st
	s.loaded = true
	return st, err
}

// Current returns the content of the slot. ok is false until a Load has
// completed.
func (s *Session) Current() (st State, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.loaded
}

// Summary returns the summary of st, cached per snapshot and view. Nil
// for a failed or empty state.
func (s *Session) Summary(st State) *aggregate.Summary {
	if st.Err != nil || st.Snapshot == nil {
		return nil
	}
	return s.memo.Get(st.Snapshot, st.View)
}

// Page registry defaults.
const (
	DefaultPageTTL  = 30 * time.Minute
	DefaultMaxPages = 1024
)

type pageEntry struct {
	sess *Session
	used time.Time
}

// Pages hands out one Session per open page, so a newer request
// supersedes older ones of the same page only. Pages idle for longer
// than TTL are dropped on the next Get; past MaxPages the least recently
// used one is evicted.
type Pages struct {
	asm *Assembler
	agg aggregate.Aggregator
	ttl time.Duration
	max int
	now func() time.Time

	mu    sync.Mutex
	pages map[string]*pageEntry
}

// NewPages creates a page registry over asm. Zero ttl or max take the
// defaults.
func NewPages(asm *Assembler, agg aggregate.Aggregator, ttl time.Duration, max int) *Pages {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	if max <= 0 {
		max = DefaultMaxPages
	}
	return &Pages{
		asm:   asm,
		agg:   agg,
		ttl:   ttl,
		max:   max,
		now:   time.Now,
		pages: make(map[string]*pageEntry),
	}
}

// Get returns the Session of page id, creating it on first use.
func (p *Pages) Get(id string) *Session {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, e := range p.pages {
		if now.Sub(e.used) > p.ttl {
			delete(p.pages, k)
		}
	}
	if e, ok := p.pages[id]; ok {
		e.used = now
		return e.sess
	}
	if len(p.pages) >= p.max {
		var oldest string
		var at time.Time
		for k, e := range p.pages {
			if oldest == "" || e.used.Before(at) {
				oldest, at = k, e.used
			}
		}
		delete(p.pages, oldest)
	}
	e := &pageEntry{sess: newSession(p.asm, p.agg), used: now}
	p.pages[id] = e
	return e.sess
}

// Len is the number of live pages.
func (p *Pages) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}
