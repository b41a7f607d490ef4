package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-notebook-be/pkg/notebook"
)

// AccumulatorKind is the closed set of transient producers.
type AccumulatorKind string

const (
	Streaming  AccumulatorKind = "streaming"
	Modifying  AccumulatorKind = "modifying"
	Refreshing AccumulatorKind = "refreshing"
)

func (k AccumulatorKind) Valid() bool {
	switch k {
	case Streaming, Modifying, Refreshing:
		return true
	default:
		return false
	}
}

// Overlay is UI state attached to a cell.
type Overlay string

const (
	OverlayNone          Overlay = ""
	OverlayModifierMenu  Overlay = "modifier-menu"
	OverlayVersionPicker Overlay = "version-picker"
	OverlayRefreshConfig Overlay = "refresh-config"
)

// Accumulator is a snapshot of an open transient buffer. Base is an opaque
// value the caller captured when the producer started, typically the
// target's content fingerprint.
type Accumulator struct {
	CellID    string          `json:"cellId"`
	Kind      AccumulatorKind `json:"kind"`
	Base      uint64          `json:"-"`
	Text      string          `json:"text"`
	Chunks    int             `json:"chunks"`
	StartedAt time.Time       `json:"startedAt"`
}

type accumulator struct {
	kind    AccumulatorKind
	base    uint64
	buf     strings.Builder
	chunks  int
	started time.Time
}

func (a *accumulator) snapshot(id string) Accumulator {
	return Accumulator{
		CellID:    id,
		Kind:      a.kind,
		Base:      a.base,
		Text:      a.buf.String(),
		Chunks:    a.chunks,
		StartedAt: a.started,
	}
}

// Diff is the result of mirroring a new cell list.
type Diff struct {
	Changed []notebook.Cell
	Removed []string
}

func (d Diff) Empty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}

// Registry is safe for concurrent readers; writes are expected from the
// session's single engine.
type Registry struct {
	mu        sync.RWMutex
	sessionID string
	cells     []notebook.Cell
	index     map[string]int
	accs      map[string]*accumulator
	errs      map[string]string
	overlays  map[string]Overlay
	focus     string
	torn      bool
	now       func() time.Time
}

func New(sessionID string) *Registry {
	r := &Registry{sessionID: sessionID, now: time.Now}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.cells = nil
	r.index = make(map[string]int)
	r.accs = make(map[string]*accumulator)
	r.errs = make(map[string]string)
	r.overlays = make(map[string]Overlay)
	r.focus = ""
}

func (r *Registry) SessionID() string {
	return r.sessionID
}

// Mirror replaces the mirrored cell list and reports what differs from the
// previous one. Transient state of removed cells is dropped, except open
// accumulators, whose producers still have to complete.
func (r *Registry) Mirror(cells []notebook.Cell) (Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return Diff{}, ErrTornDown
	}

	var diff Diff
	next := make([]notebook.Cell, len(cells))
	index := make(map[string]int, len(cells))
	for i, c := range cells {
		next[i] = c.Clone()
		index[c.ID] = i
		if j, ok := r.index[c.ID]; !ok || !r.cells[j].Equal(c) {
			diff.Changed = append(diff.Changed, c.Clone())
		}
	}
	for _, c := range r.cells {
		if _, ok := index[c.ID]; !ok {
			diff.Removed = append(diff.Removed, c.ID)
			delete(r.errs, c.ID)
			delete(r.overlays, c.ID)
			if r.focus == c.ID {
				r.focus = ""
			}
		}
	}

	r.cells = next
	r.index = index
	return diff, nil
}

// Cells returns a copy of the mirror.
func (r *Registry) Cells() []notebook.Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notebook.Cell, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.Clone()
	}
	return out
}

func (r *Registry) Cell(id string) (notebook.Cell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return notebook.Cell{}, false
	}
	return r.cells[i].Clone(), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}

// Start opens an accumulator. At most one accumulator may be open per cell.
func (r *Registry) Start(id string, kind AccumulatorKind, base uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return ErrTornDown
	}
	if !kind.Valid() {
		return fmt.Errorf("invalid accumulator kind %q", kind)
	}
	if _, ok := r.index[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCell, id)
	}
	if a, ok := r.accs[id]; ok {
		return fmt.Errorf("%w: %s is %s", ErrAccumulatorBusy, id, a.kind)
	}
	r.accs[id] = &accumulator{kind: kind, base: base, started: r.now()}
	delete(r.errs, id)
	return nil
}

// Append adds a chunk. It reports false, dropping the chunk, when no
// accumulator is open for id.
func (r *Registry) Append(id, chunk string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accs[id]
	if !ok || r.torn {
		return false
	}
	a.buf.WriteString(chunk)
	a.chunks++
	return true
}

func (r *Registry) Text(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accs[id]
	if !ok {
		return "", false
	}
	return a.buf.String(), true
}

func (r *Registry) Active(id string) (Accumulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accs[id]
	if !ok {
		return Accumulator{}, false
	}
	return a.snapshot(id), true
}

// Accumulators returns every open accumulator.
func (r *Registry) Accumulators() []Accumulator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Accumulator, 0, len(r.accs))
	for _, c := range r.cells {
		if a, ok := r.accs[c.ID]; ok {
			out = append(out, a.snapshot(c.ID))
		}
	}
	for id, a := range r.accs {
		if _, ok := r.index[id]; !ok {
			out = append(out, a.snapshot(id))
		}
	}
	return out
}

// Finish closes the accumulator and returns its final state.
func (r *Registry) Finish(id string) (Accumulator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accs[id]
	if !ok {
		return Accumulator{}, false
	}
	delete(r.accs, id)
	return a.snapshot(id), true
}

// Discard drops the accumulator without reading it.
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accs[id]
	delete(r.accs, id)
	return ok
}

func (r *Registry) SetError(id, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return
	}
	r.errs[id] = msg
}

func (r *Registry) ClearError(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.errs, id)
}

func (r *Registry) Error(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.errs[id]
	return msg, ok
}

func (r *Registry) SetFocus(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return
	}
	r.focus = id
}

func (r *Registry) Focus() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focus
}

func (r *Registry) SetOverlay(id string, o Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return
	}
	if o == OverlayNone {
		delete(r.overlays, id)
		return
	}
	r.overlays[id] = o
}

func (r *Registry) Overlay(id string) Overlay {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overlays[id]
}

// Clear drops the mirror and every piece of transient state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Teardown clears the registry and rejects further writes.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	r.torn = true
}

func (r *Registry) TornDown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.torn
}
