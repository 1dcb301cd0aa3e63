// Package tabs implements the session manager for one wrapper window: an
// ordered collection of tabs, the active-tab pointer, and every operation
// the UI shell may perform on them. Each tab owns one rendering surface,
// allocated through an injected factory; the manager itself never renders.
package tabs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitewrap/backend/internal/infrastructure/logging"
	"github.com/sitewrap/backend/internal/infrastructure/monitoring"
	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/surface"
	"github.com/sitewrap/backend/internal/wrapper"
)

var (
	// ErrNotMember is returned in strict mode when an operation targets a
	// tab that is not part of the order.
	ErrNotMember = errors.New("tab is not a member of this manager")
	// ErrOutOfRange is returned in strict mode for positional arguments
	// outside the current bounds.
	ErrOutOfRange = errors.New("position out of range")
	// ErrEmpty is returned in strict mode for selection operations on an
	// empty manager.
	ErrEmpty = errors.New("manager has no tabs")
)

// Manager owns the ordered tab list and the active pointer for one window.
//
// Invariants: the active tab is nil iff the order is empty, and otherwise is
// always a member of the order; tab IDs are unique and never reused. All
// operations serialize through one mutex, the Go rendition of a single
// mutation thread. Surface events arrive on surface goroutines and are
// marshaled through the same mutex before touching tab state.
//
// Invalid input (missing member, out-of-range index) is a silent no-op by
// default, favoring UI robustness. Strict mode surfaces those cases as
// ErrNotMember / ErrOutOfRange / ErrEmpty without changing any other
// behavior.
type Manager struct {
	mu           sync.Mutex
	order        []*tab // Display order; protected by mu
	active       *tab   // Member of order or nil; protected by mu
	surfaceIndex map[id.SurfaceID]*tab

	cfg     *wrapper.Config
	factory surface.Factory
	strict  bool

	fanout  fanout
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithStrict makes invalid-input cases return typed errors instead of
// silently no-opping.
func WithStrict() Option {
	return func(m *Manager) { m.strict = true }
}

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics attaches metrics tracking.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a tab manager for one wrapper window.
func NewManager(cfg *wrapper.Config, factory surface.Factory, opts ...Option) *Manager {
	m := &Manager{
		surfaceIndex: make(map[id.SurfaceID]*tab),
		cfg:          cfg,
		factory:      factory,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddSink registers an event sink. Sinks must be registered before the
// manager is shared across goroutines.
func (m *Manager) AddSink(sink Sink) {
	m.fanout.sinks = append(m.fanout.sinks, sink)
}

// Config returns the owning wrapper configuration.
func (m *Manager) Config() *wrapper.Config {
	return m.cfg
}

// Create appends a new tab to the end of the order and loads the given
// address, or the wrapper's home address when address is empty. The tab
// becomes active unless background is true and an active tab already
// exists; on an empty manager it always becomes active.
func (m *Manager) Create(address string, background bool) (Tab, error) {
	return m.create(address, background, false, func() int {
		return len(m.order)
	})
}

// CreateRouted appends a tab for a navigation the policy has already routed
// here. Its initial load bypasses the surface's policy check; without that,
// a new-tab redirect would re-decide the same address in the fresh tab and
// route it again, forever.
func (m *Manager) CreateRouted(address string, background bool) (Tab, error) {
	return m.create(address, background, true, func() int {
		return len(m.order)
	})
}

// CreateAfterActive behaves like Create but inserts the new tab immediately
// after the active tab's position, falling back to append when there is no
// active tab.
func (m *Manager) CreateAfterActive(address string, background bool) (Tab, error) {
	return m.create(address, background, false, func() int {
		if m.active == nil {
			return len(m.order)
		}
		return m.indexOf(m.active.ID) + 1
	})
}

// create allocates the surface, inserts the tab at the position computed by
// position (called under the lock), and fires the initial load. direct
// skips the surface's navigation policy for that load.
func (m *Manager) create(address string, background, direct bool, position func() int) (Tab, error) {
	if address == "" {
		address = m.cfg.HomeAddress
	}

	surf, err := m.factory.New(m, m.cfg)
	if err != nil {
		return Tab{}, fmt.Errorf("failed to create surface: %w", err)
	}

	t := &tab{
		Tab: Tab{
			ID:        id.NewTabID(),
			Title:     m.cfg.Name,
			Address:   address,
			CreatedAt: time.Now(),
		},
		surface: surf,
	}

	m.mu.Lock()
	at := position()
	m.order = append(m.order, nil)
	copy(m.order[at+1:], m.order[at:])
	m.order[at] = t
	m.surfaceIndex[surf.ID()] = t

	events := []Event{{Type: EventCreated, Tab: t.snapshot()}}
	if !background || m.active == nil {
		m.active = t
		events = append(events, Event{Type: EventActivated, Tab: t.snapshot()})
	}
	total := len(m.order)
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Debug("tab created",
		zap.String("tab_id", t.ID.String()),
		zap.String("address", address),
		zap.Bool("background", background),
	)
	if m.metrics != nil {
		m.metrics.TabOpened(total)
	}
	m.fanout.publish(events)

	if direct {
		if dl, ok := surf.(surface.DirectLoader); ok {
			dl.LoadDirect(address)
			return snap, nil
		}
	}
	surf.Load(address)
	return snap, nil
}

// Close removes a tab from the order and releases its surface. If the tab
// was active, the tab now occupying its former index becomes active; when
// it was last, the new last tab does; when the order empties, there is no
// active tab. Unknown IDs are a no-op (ErrNotMember in strict mode).
func (m *Manager) Close(tabID id.TabID) error {
	m.mu.Lock()
	idx := m.indexOf(tabID)
	if idx < 0 {
		m.mu.Unlock()
		return m.reject(ErrNotMember)
	}

	closed := m.order[idx]
	m.removeAt(idx)

	events := []Event{{Type: EventClosed, Tab: closed.snapshot()}}
	if m.active == closed {
		m.active = nil
		if len(m.order) > 0 {
			next := idx
			if next >= len(m.order) {
				next = len(m.order) - 1
			}
			m.active = m.order[next]
			events = append(events, Event{Type: EventActivated, Tab: m.active.snapshot()})
		}
	}
	total := len(m.order)
	m.mu.Unlock()

	closed.surface.Close()
	m.logger.Debug("tab closed", zap.String("tab_id", tabID.String()))
	if m.metrics != nil {
		m.metrics.TabClosed(total)
	}
	m.fanout.publish(events)
	return nil
}

// CloseOthers removes every tab except the given one, which becomes active.
// The excepted tab is kept by filtering rather than validated up front: if
// it is not a member the order simply empties. Strict mode validates first
// and returns ErrNotMember without mutating.
func (m *Manager) CloseOthers(tabID id.TabID) error {
	m.mu.Lock()
	if m.strict && m.indexOf(tabID) < 0 {
		m.mu.Unlock()
		return ErrNotMember
	}

	var kept *tab
	var removed []*tab
	for _, t := range m.order {
		if t.ID == tabID {
			kept = t
			continue
		}
		removed = append(removed, t)
		delete(m.surfaceIndex, t.surface.ID())
	}

	m.order = m.order[:0]
	m.active = nil
	var events []Event
	for _, t := range removed {
		events = append(events, Event{Type: EventClosed, Tab: t.snapshot()})
	}
	if kept != nil {
		m.order = append(m.order, kept)
		m.active = kept
		events = append(events, Event{Type: EventActivated, Tab: kept.snapshot()})
	}
	total := len(m.order)
	m.mu.Unlock()

	for _, t := range removed {
		t.surface.Close()
		if m.metrics != nil {
			m.metrics.TabClosed(total)
		}
	}
	m.fanout.publish(events)
	return nil
}

// CloseRightOf removes every tab positioned after the given one. If the
// active tab was among those removed, the reference tab becomes active.
func (m *Manager) CloseRightOf(tabID id.TabID) error {
	m.mu.Lock()
	idx := m.indexOf(tabID)
	if idx < 0 {
		m.mu.Unlock()
		return m.reject(ErrNotMember)
	}

	removed := make([]*tab, len(m.order)-idx-1)
	copy(removed, m.order[idx+1:])
	m.order = m.order[:idx+1]

	var events []Event
	activeRemoved := false
	for _, t := range removed {
		delete(m.surfaceIndex, t.surface.ID())
		if m.active == t {
			activeRemoved = true
		}
		events = append(events, Event{Type: EventClosed, Tab: t.snapshot()})
	}
	if activeRemoved {
		m.active = m.order[idx]
		events = append(events, Event{Type: EventActivated, Tab: m.active.snapshot()})
	}
	total := len(m.order)
	m.mu.Unlock()

	for _, t := range removed {
		t.surface.Close()
		if m.metrics != nil {
			m.metrics.TabClosed(total)
		}
	}
	m.fanout.publish(events)
	return nil
}

// Move repositions a tab using remove-then-insert semantics: the tab is
// removed from position from, later indices shift down, and to is clamped
// to the post-removal bounds before insertion. Invalid from is a no-op
// (ErrOutOfRange in strict mode).
func (m *Manager) Move(from, to int) error {
	m.mu.Lock()
	if from < 0 || from >= len(m.order) {
		m.mu.Unlock()
		return m.reject(ErrOutOfRange)
	}

	t := m.order[from]
	m.order = append(m.order[:from], m.order[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(m.order) {
		to = len(m.order)
	}
	m.order = append(m.order, nil)
	copy(m.order[to+1:], m.order[to:])
	m.order[to] = t

	var events []Event
	if to != from {
		events = append(events, Event{Type: EventMoved, Tab: t.snapshot(), From: from, To: to})
	}
	m.mu.Unlock()

	m.fanout.publish(events)
	return nil
}

// SelectNext advances the active pointer one step in the order, wrapping
// from last to first. No-op on an empty manager (ErrEmpty in strict mode).
func (m *Manager) SelectNext() error {
	return m.step(1)
}

// SelectPrevious moves the active pointer one step back, wrapping from
// first to last.
func (m *Manager) SelectPrevious() error {
	return m.step(-1)
}

func (m *Manager) step(delta int) error {
	m.mu.Lock()
	if len(m.order) == 0 {
		m.mu.Unlock()
		return m.reject(ErrEmpty)
	}

	idx := m.indexOf(m.active.ID)
	idx = (idx + delta + len(m.order)) % len(m.order)
	events := m.activateLocked(m.order[idx])
	m.mu.Unlock()

	m.fanout.publish(events)
	return nil
}

// SelectOrdinal selects a tab by 1-based position. Ordinal 9 always selects
// the last tab regardless of count, mirroring the fixed "last tab"
// shortcut. Other out-of-range ordinals are a no-op (ErrOutOfRange in
// strict mode; ErrEmpty when the order is empty).
func (m *Manager) SelectOrdinal(n int) error {
	m.mu.Lock()
	if len(m.order) == 0 {
		m.mu.Unlock()
		return m.reject(ErrEmpty)
	}

	var target *tab
	switch {
	case n == 9:
		target = m.order[len(m.order)-1]
	case n >= 1 && n <= len(m.order):
		target = m.order[n-1]
	default:
		m.mu.Unlock()
		return m.reject(ErrOutOfRange)
	}

	events := m.activateLocked(target)
	m.mu.Unlock()

	m.fanout.publish(events)
	return nil
}

// Activate makes the given tab active. Unknown IDs are a no-op
// (ErrNotMember in strict mode).
func (m *Manager) Activate(tabID id.TabID) error {
	m.mu.Lock()
	idx := m.indexOf(tabID)
	if idx < 0 {
		m.mu.Unlock()
		return m.reject(ErrNotMember)
	}
	events := m.activateLocked(m.order[idx])
	m.mu.Unlock()

	m.fanout.publish(events)
	return nil
}

// Duplicate creates a new tab after the active one, loading the source
// tab's current address (the home address when it has none), and activates
// it.
func (m *Manager) Duplicate(tabID id.TabID) (Tab, error) {
	m.mu.Lock()
	idx := m.indexOf(tabID)
	if idx < 0 {
		m.mu.Unlock()
		if err := m.reject(ErrNotMember); err != nil {
			return Tab{}, err
		}
		return Tab{}, nil
	}
	address := m.order[idx].Address
	m.mu.Unlock()

	return m.CreateAfterActive(address, false)
}

// Navigate asks a tab's surface to load an address.
func (m *Manager) Navigate(tabID id.TabID, address string) error {
	return m.withSurface(tabID, func(s surface.Surface) { s.Load(address) })
}

// Reload asks a tab's surface to reload its current address.
func (m *Manager) Reload(tabID id.TabID) error {
	return m.withSurface(tabID, func(s surface.Surface) { s.Reload() })
}

// Stop halts a tab's in-flight load.
func (m *Manager) Stop(tabID id.TabID) error {
	return m.withSurface(tabID, func(s surface.Surface) { s.Stop() })
}

// Back navigates a tab's surface one step back in its history.
func (m *Manager) Back(tabID id.TabID) error {
	return m.withSurface(tabID, func(s surface.Surface) { s.Back() })
}

// Forward navigates a tab's surface one step forward in its history.
func (m *Manager) Forward(tabID id.TabID) error {
	return m.withSurface(tabID, func(s surface.Surface) { s.Forward() })
}

func (m *Manager) withSurface(tabID id.TabID, fn func(surface.Surface)) error {
	m.mu.Lock()
	idx := m.indexOf(tabID)
	if idx < 0 {
		m.mu.Unlock()
		return m.reject(ErrNotMember)
	}
	surf := m.order[idx].surface
	m.mu.Unlock()

	// Surface calls are fire-and-forget; results arrive as state events.
	fn(surf)
	return nil
}

// Get returns a snapshot of one tab.
func (m *Manager) Get(tabID id.TabID) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(tabID)
	if idx < 0 {
		return Tab{}, false
	}
	return m.order[idx].snapshot(), true
}

// List returns snapshots of all tabs in display order.
func (m *Manager) List() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Tab, len(m.order))
	for i, t := range m.order {
		out[i] = t.snapshot()
	}
	return out
}

// Active returns a snapshot of the active tab, or false when the order is
// empty.
func (m *Manager) Active() (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return Tab{}, false
	}
	return m.active.snapshot(), true
}

// Count returns the number of tabs.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Stats returns manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{TotalTabs: len(m.order)}
	for _, t := range m.order {
		if t.Loading {
			stats.LoadingTabs++
		}
	}
	if m.active != nil {
		activeID := m.active.ID
		stats.ActiveTabID = &activeID
	}
	return stats
}

// CloseAll releases every tab and surface. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	removed := m.order
	m.order = nil
	m.active = nil
	m.surfaceIndex = make(map[id.SurfaceID]*tab)
	m.mu.Unlock()

	var events []Event
	for _, t := range removed {
		t.surface.Close()
		events = append(events, Event{Type: EventClosed, Tab: t.snapshot()})
	}
	m.fanout.publish(events)
}

// SurfaceStateChanged implements surface.Notifier. Events arrive on surface
// goroutines and are serialized through the manager mutex; per-field
// updates apply last-write-wins.
func (m *Manager) SurfaceStateChanged(surfaceID id.SurfaceID, event surface.StateEvent) {
	m.mu.Lock()
	t, ok := m.surfaceIndex[surfaceID]
	if !ok {
		// Event from an already-closed surface; drop it.
		m.mu.Unlock()
		return
	}

	if event.Title != nil {
		t.Title = *event.Title
		if t.Title == "" {
			t.Title = m.cfg.Name
		}
	}
	if event.Address != nil {
		t.Address = *event.Address
	}
	if event.Loading != nil {
		t.Loading = *event.Loading
	}
	if event.Progress != nil {
		t.Progress = *event.Progress
	}
	if event.CanGoBack != nil {
		t.CanGoBack = *event.CanGoBack
	}
	if event.CanGoForward != nil {
		t.CanGoForward = *event.CanGoForward
	}
	snap := t.snapshot()
	m.mu.Unlock()

	m.fanout.publish([]Event{{Type: EventUpdated, Tab: snap}})
}

// activateLocked switches the active pointer and returns the events to
// publish. Caller must hold mu.
func (m *Manager) activateLocked(t *tab) []Event {
	if m.active == t {
		return nil
	}
	m.active = t
	return []Event{{Type: EventActivated, Tab: t.snapshot()}}
}

// indexOf returns the position of a tab in the order, or -1. Caller must
// hold mu.
func (m *Manager) indexOf(tabID id.TabID) int {
	for i, t := range m.order {
		if t.ID == tabID {
			return i
		}
	}
	return -1
}

// removeAt drops the tab at idx from the order and the surface index.
// Caller must hold mu.
func (m *Manager) removeAt(idx int) {
	t := m.order[idx]
	delete(m.surfaceIndex, t.surface.ID())
	m.order = append(m.order[:idx], m.order[idx+1:]...)
}

// reject returns err in strict mode and nil otherwise.
func (m *Manager) reject(err error) error {
	if m.strict {
		return err
	}
	return nil
}
