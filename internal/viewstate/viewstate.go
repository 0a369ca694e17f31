// Package viewstate holds the shared view selection: highlighted
// wavelengths, the selected time interval and per-plot zoom bounds.
// The model is the single synchronization point between plots — every
// mutation is broadcast synchronously to all subscribed listeners, so
// dependent computations and redraws always observe the same state.
package viewstate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"taacli/internal/errors"
	"taacli/internal/infrastructure"
)

// Bounds describes a plot's visible axis ranges.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// EventKind identifies what changed in the model.
type EventKind string

const (
	// EventReset fires when a new dataset replaces the state wholesale.
	EventReset EventKind = "reset"
	// EventHighlightChanged fires when the highlighted wavelength set
	// changes.
	EventHighlightChanged EventKind = "highlight_changed"
	// EventIntervalChanged fires when the selected time interval moves.
	EventIntervalChanged EventKind = "interval_changed"
	// EventZoomChanged fires when a plot's view bounds change; with
	// sync zoom enabled the same bounds are applied to every plot.
	EventZoomChanged EventKind = "zoom_changed"
)

// Event is delivered to listeners on every mutation. State carries a
// consistent snapshot taken at notification time.
type Event struct {
	Kind   EventKind
	Origin string // plot that initiated a zoom change, empty otherwise
	State  Snapshot
}

// Snapshot is an immutable copy of the model state.
type Snapshot struct {
	Highlighted []float64 // ascending
	IntervalLo  float64
	IntervalHi  float64
	DataLo      float64
	DataHi      float64
	SyncZoom    bool
	Views       map[string]Bounds
	Zoomed      map[string]bool
}

// Listener receives state-change events. Listeners run synchronously
// on the mutating call; they must not mutate the model re-entrantly.
type Listener func(Event)

// Model is the view state for one loaded dataset.
type Model struct {
	mu sync.RWMutex

	hasData     bool
	wavelengths map[float64]bool
	dataLo      float64
	dataHi      float64

	highlighted map[float64]bool
	intervalLo  float64
	intervalHi  float64

	syncZoom bool
	views    map[string]Bounds
	zoomed   map[string]bool

	listeners     map[string]Listener
	listenerOrder []string

	logger *slog.Logger
}

// New creates an empty model. Sync zoom starts enabled, matching the
// plot panels' default.
func New(logger *slog.Logger) *Model {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Model{
		wavelengths: make(map[float64]bool),
		highlighted: make(map[float64]bool),
		views:       make(map[string]Bounds),
		zoomed:      make(map[string]bool),
		listeners:   make(map[string]Listener),
		syncZoom:    true,
		logger:      logger.With(slog.String("component", "viewstate")),
	}
}

// Subscribe registers a listener and returns its id for Unsubscribe.
func (m *Model) Subscribe(fn Listener) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.listeners[id] = fn
	m.listenerOrder = append(m.listenerOrder, id)
	return id
}

// Unsubscribe removes a listener.
func (m *Model) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
	for i, lid := range m.listenerOrder {
		if lid == id {
			m.listenerOrder = append(m.listenerOrder[:i], m.listenerOrder[i+1:]...)
			break
		}
	}
}

// RegisterPlot adds a named plot panel to the broadcast set. Its view
// starts unzoomed.
func (m *Model) RegisterPlot(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.views[name]; !ok {
		m.views[name] = Bounds{}
		m.zoomed[name] = false
	}
}

// Reset replaces the state for a newly loaded dataset: no highlighted
// wavelengths, the full time range selected, every plot unzoomed.
func (m *Model) Reset(wavelengths []float64, dataLo, dataHi float64) {
	m.mu.Lock()
	m.hasData = true
	m.wavelengths = make(map[float64]bool, len(wavelengths))
	for _, w := range wavelengths {
		m.wavelengths[w] = true
	}
	m.dataLo, m.dataHi = dataLo, dataHi
	m.highlighted = make(map[float64]bool)
	m.intervalLo, m.intervalHi = dataLo, dataHi
	for name := range m.views {
		m.views[name] = Bounds{}
		m.zoomed[name] = false
	}
	m.logger.Info("view state reset",
		slog.Int("wavelengths", len(wavelengths)),
		slog.Float64("data_lo", dataLo),
		slog.Float64("data_hi", dataHi))
	m.notifyLocked(Event{Kind: EventReset})
}

// SetHighlighted replaces the highlighted wavelength set. Every
// wavelength must belong to the current dataset.
func (m *Model) SetHighlighted(wavelengths ...float64) error {
	m.mu.Lock()
	for _, w := range wavelengths {
		if !m.wavelengths[w] {
			m.mu.Unlock()
			return errors.NewInvalidParameterError("viewstate.SetHighlighted",
				fmt.Sprintf("wavelength %g is not in the dataset", w))
		}
	}
	m.highlighted = make(map[float64]bool, len(wavelengths))
	for _, w := range wavelengths {
		m.highlighted[w] = true
	}
	m.notifyLocked(Event{Kind: EventHighlightChanged})
	return nil
}

// ToggleHighlight flips one wavelength's highlight state.
func (m *Model) ToggleHighlight(wavelength float64) error {
	m.mu.Lock()
	if !m.wavelengths[wavelength] {
		m.mu.Unlock()
		return errors.NewInvalidParameterError("viewstate.ToggleHighlight",
			fmt.Sprintf("wavelength %g is not in the dataset", wavelength))
	}
	if m.highlighted[wavelength] {
		delete(m.highlighted, wavelength)
	} else {
		m.highlighted[wavelength] = true
	}
	m.notifyLocked(Event{Kind: EventHighlightChanged})
	return nil
}

// Highlighted returns the highlighted wavelengths in ascending order.
func (m *Model) Highlighted() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.highlighted)
}

// SelectInterval sets the selected time interval. The endpoints are
// ordered and clamped to the data range rather than rejected, so a
// drag that overshoots the axis still yields a valid selection.
func (m *Model) SelectInterval(lo, hi float64) {
	m.mu.Lock()
	if lo > hi {
		lo, hi = hi, lo
	}
	lo = clamp(lo, m.dataLo, m.dataHi)
	hi = clamp(hi, m.dataLo, m.dataHi)
	m.intervalLo, m.intervalHi = lo, hi
	m.notifyLocked(Event{Kind: EventIntervalChanged})
}

// Interval returns the selected time interval.
func (m *Model) Interval() (lo, hi float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intervalLo, m.intervalHi
}

// SetSyncZoom enables or disables zoom propagation between plots.
func (m *Model) SetSyncZoom(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncZoom = enabled
}

// SyncZoom reports whether zoom propagation is enabled.
func (m *Model) SyncZoom() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncZoom
}

// SetZoom records new view bounds for a plot. With sync zoom enabled
// the bounds are broadcast to every registered plot; the most recent
// zoom always wins, there is no merging.
func (m *Model) SetZoom(plot string, b Bounds) {
	m.mu.Lock()
	if _, ok := m.views[plot]; !ok {
		m.views[plot] = Bounds{}
	}
	if m.syncZoom {
		for name := range m.views {
			m.views[name] = b
			m.zoomed[name] = true
		}
	} else {
		m.views[plot] = b
		m.zoomed[plot] = true
	}
	m.notifyLocked(Event{Kind: EventZoomChanged, Origin: plot})
}

// ResetZoom returns every plot to the unzoomed state.
func (m *Model) ResetZoom() {
	m.mu.Lock()
	for name := range m.views {
		m.views[name] = Bounds{}
		m.zoomed[name] = false
	}
	m.notifyLocked(Event{Kind: EventZoomChanged})
}

// View returns the bounds for a plot and whether it is zoomed.
func (m *Model) View(plot string) (Bounds, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.views[plot], m.zoomed[plot]
}

// Snapshot returns a consistent copy of the whole state.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Model) snapshotLocked() Snapshot {
	views := make(map[string]Bounds, len(m.views))
	zoomed := make(map[string]bool, len(m.zoomed))
	for name, b := range m.views {
		views[name] = b
		zoomed[name] = m.zoomed[name]
	}
	return Snapshot{
		Highlighted: sortedKeys(m.highlighted),
		IntervalLo:  m.intervalLo,
		IntervalHi:  m.intervalHi,
		DataLo:      m.dataLo,
		DataHi:      m.dataHi,
		SyncZoom:    m.syncZoom,
		Views:       views,
		Zoomed:      zoomed,
	}
}

// notifyLocked snapshots the state, releases the lock and invokes the
// listeners in subscription order. Callers must hold mu.
func (m *Model) notifyLocked(ev Event) {
	ev.State = m.snapshotLocked()
	fns := make([]Listener, 0, len(m.listenerOrder))
	for _, id := range m.listenerOrder {
		if fn, ok := m.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func sortedKeys(set map[float64]bool) []float64 {
	keys := make([]float64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
