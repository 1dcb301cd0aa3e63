package tabs

import (
	"sync"
	"testing"

	"github.com/sitewrap/backend/internal/shared/id"
	"github.com/sitewrap/backend/internal/surface"
	"github.com/sitewrap/backend/internal/wrapper"
)

// mockSurface records calls; loads do nothing until the test pushes state
// events through the notifier.
type mockSurface struct {
	id          id.SurfaceID
	mu          sync.Mutex
	loads       []string
	directLoads []string
	closed      bool
}

func (s *mockSurface) ID() id.SurfaceID { return s.id }

func (s *mockSurface) Load(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, address)
}

func (s *mockSurface) LoadDirect(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directLoads = append(s.directLoads, address)
}

func (s *mockSurface) Reload()  {}
func (s *mockSurface) Stop()    {}
func (s *mockSurface) Back()    {}
func (s *mockSurface) Forward() {}

func (s *mockSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *mockSurface) lastLoad() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.loads) == 0 {
		return ""
	}
	return s.loads[len(s.loads)-1]
}

func (s *mockSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type mockFactory struct {
	mu       sync.Mutex
	surfaces []*mockSurface
}

func (f *mockFactory) New(owner surface.Notifier, cfg *wrapper.Config) (surface.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &mockSurface{id: id.NewSurfaceID()}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func testConfig() *wrapper.Config {
	cfg := wrapper.Default("Docs", "https://docs.example.com")
	return &cfg
}

func newTestManager(opts ...Option) (*Manager, *mockFactory) {
	factory := &mockFactory{}
	return NewManager(testConfig(), factory, opts...), factory
}

func activeID(t *testing.T, m *Manager) id.TabID {
	t.Helper()
	active, ok := m.Active()
	if !ok {
		t.Fatal("expected an active tab")
	}
	return active.ID
}

func TestCreateActivatesFirstTab(t *testing.T) {
	m, factory := newTestManager()

	tab, err := m.Create("", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := activeID(t, m); got != tab.ID {
		t.Errorf("expected new tab active, got %s", got)
	}

	// Empty address loads the home address.
	if got := factory.surfaces[0].lastLoad(); got != "https://docs.example.com" {
		t.Errorf("expected home address load, got %q", got)
	}

	if tab.Title != "Docs" {
		t.Errorf("expected wrapper name as fallback title, got %q", tab.Title)
	}
	if tab.Address != "https://docs.example.com" {
		t.Errorf("created snapshot should carry the initial address, got %q", tab.Address)
	}
}

func TestCreateRoutedBypassesPolicyLoad(t *testing.T) {
	m, factory := newTestManager()

	addr := "https://elsewhere.example.org/page"
	tab, err := m.CreateRouted(addr, true)
	if err != nil {
		t.Fatalf("CreateRouted failed: %v", err)
	}

	s := factory.surfaces[0]
	s.mu.Lock()
	loads, direct := len(s.loads), len(s.directLoads)
	var got string
	if direct > 0 {
		got = s.directLoads[0]
	}
	s.mu.Unlock()

	if loads != 0 {
		t.Error("routed create must not go through the policy-checked load")
	}
	if direct != 1 || got != addr {
		t.Errorf("expected one direct load of %q, got %d (%q)", addr, direct, got)
	}
	if tab.Address != addr {
		t.Errorf("expected snapshot address %q, got %q", addr, tab.Address)
	}
}

func TestCreateBackgroundKeepsActive(t *testing.T) {
	m, _ := newTestManager()

	first, _ := m.Create("", false)
	_, err := m.Create("https://docs.example.com/other", true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := activeID(t, m); got != first.ID {
		t.Errorf("background create should not change active tab, got %s", got)
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 tabs, got %d", m.Count())
	}
}

func TestCreateBackgroundOnEmptyActivates(t *testing.T) {
	m, _ := newTestManager()

	tab, err := m.Create("", true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := activeID(t, m); got != tab.ID {
		t.Error("background create on empty manager must activate")
	}
}

func TestCreateAfterActive(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	_ = b

	// Activate the first tab, then insert after it.
	if err := m.Activate(a.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	c, err := m.CreateAfterActive("", false)
	if err != nil {
		t.Fatalf("CreateAfterActive failed: %v", err)
	}

	order := m.List()
	if len(order) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(order))
	}
	if order[1].ID != c.ID {
		t.Errorf("expected new tab at position 1, got %s", order[1].ID)
	}
}

func TestCloseActiveActivatesSameIndex(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false)
	_ = a

	if err := m.Activate(b.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := m.Close(b.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The tab that moved into b's index becomes active.
	if got := activeID(t, m); got != c.ID {
		t.Errorf("expected %s active, got %s", c.ID, got)
	}
}

func TestCloseLastActiveActivatesNewLast(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)

	if err := m.Close(b.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := activeID(t, m); got != a.ID {
		t.Errorf("expected %s active, got %s", a.ID, got)
	}
}

func TestCloseInactiveKeepsActive(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	_ = a

	if err := m.Close(a.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := activeID(t, m); got != b.ID {
		t.Errorf("closing an inactive tab should not change active, got %s", got)
	}
}

func TestCloseReleasesSurface(t *testing.T) {
	m, factory := newTestManager()

	tab, _ := m.Create("", false)
	if err := m.Close(tab.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !factory.surfaces[0].isClosed() {
		t.Error("closing a tab must release its surface")
	}
	if _, ok := m.Active(); ok {
		t.Error("empty manager must have no active tab")
	}
}

func TestCloseUnknownIsNoOp(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	if err := m.Close(id.NewTabID()); err != nil {
		t.Fatalf("unknown close should be silent, got %v", err)
	}

	if m.Count() != 1 {
		t.Errorf("expected 1 tab, got %d", m.Count())
	}
	if got := activeID(t, m); got != a.ID {
		t.Error("active tab must be unchanged")
	}
}

func TestCloseOthers(t *testing.T) {
	m, factory := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false)
	_ = a
	_ = c

	if err := m.CloseOthers(b.ID); err != nil {
		t.Fatalf("CloseOthers failed: %v", err)
	}

	if m.Count() != 1 {
		t.Fatalf("expected 1 tab, got %d", m.Count())
	}
	if got := activeID(t, m); got != b.ID {
		t.Errorf("excepted tab must be active, got %s", got)
	}

	closed := 0
	for _, s := range factory.surfaces {
		if s.isClosed() {
			closed++
		}
	}
	if closed != 2 {
		t.Errorf("expected 2 released surfaces, got %d", closed)
	}
}

func TestCloseOthersUnknownEmptiesOrder(t *testing.T) {
	m, _ := newTestManager()

	m.Create("", false)
	m.Create("", false)

	// Filter-and-adopt: an unknown exception keeps nothing.
	if err := m.CloseOthers(id.NewTabID()); err != nil {
		t.Fatalf("CloseOthers failed: %v", err)
	}

	if m.Count() != 0 {
		t.Errorf("expected empty manager, got %d tabs", m.Count())
	}
	if _, ok := m.Active(); ok {
		t.Error("empty manager must have no active tab")
	}
}

func TestCloseRightOf(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false) // active
	_ = c

	if err := m.CloseRightOf(a.ID); err != nil {
		t.Fatalf("CloseRightOf failed: %v", err)
	}

	if m.Count() != 1 {
		t.Fatalf("expected 1 tab, got %d", m.Count())
	}
	// Active (c) was removed; the reference tab takes over.
	if got := activeID(t, m); got != a.ID {
		t.Errorf("expected %s active, got %s", a.ID, got)
	}
	_ = b
}

func TestCloseRightOfKeepsActiveWhenUntouched(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	m.Activate(a.ID)

	if err := m.CloseRightOf(a.ID); err != nil {
		t.Fatalf("CloseRightOf failed: %v", err)
	}

	if got := activeID(t, m); got != a.ID {
		t.Errorf("expected %s active, got %s", a.ID, got)
	}
	_ = b
}

func TestMove(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false)

	if err := m.Move(0, 2); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	order := m.List()
	want := []id.TabID{b.ID, c.ID, a.ID}
	for i, tab := range order {
		if tab.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], tab.ID)
		}
	}

	// Active pointer follows the tab, not the index.
	if got := activeID(t, m); got != c.ID {
		t.Errorf("move must not change the active tab, got %s", got)
	}
}

func TestMovePreservesMultiset(t *testing.T) {
	m, _ := newTestManager()

	for i := 0; i < 4; i++ {
		m.Create("", false)
	}
	before := make(map[id.TabID]bool)
	for _, tab := range m.List() {
		before[tab.ID] = true
	}

	m.Move(3, 0)
	m.Move(1, 2)
	m.Move(0, 9) // to is clamped

	after := m.List()
	if len(after) != len(before) {
		t.Fatalf("move changed tab count: %d != %d", len(after), len(before))
	}
	for _, tab := range after {
		if !before[tab.ID] {
			t.Errorf("move introduced unknown tab %s", tab.ID)
		}
	}
}

func TestMoveToOwnPosition(t *testing.T) {
	m, _ := newTestManager()

	m.Create("", false)
	m.Create("", false)
	before := m.List()

	if err := m.Move(1, 1); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	after := m.List()
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Error("moving a tab onto itself must not change the order")
		}
	}
}

func TestMoveInvalidFromIsNoOp(t *testing.T) {
	m, _ := newTestManager()

	m.Create("", false)
	if err := m.Move(5, 0); err != nil {
		t.Fatalf("invalid move should be silent, got %v", err)
	}
	if err := m.Move(-1, 0); err != nil {
		t.Fatalf("invalid move should be silent, got %v", err)
	}
}

func TestSelectNextWraps(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false) // active

	m.SelectNext()
	if got := activeID(t, m); got != a.ID {
		t.Errorf("expected wrap to first tab, got %s", got)
	}
	m.SelectNext()
	if got := activeID(t, m); got != b.ID {
		t.Errorf("expected second tab, got %s", got)
	}
	_ = c
}

func TestSelectPreviousWraps(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	m.Activate(a.ID)

	m.SelectPrevious()
	if got := activeID(t, m); got != b.ID {
		t.Errorf("expected wrap to last tab, got %s", got)
	}
}

func TestSelectCycleReturnsToStart(t *testing.T) {
	m, _ := newTestManager()

	for i := 0; i < 5; i++ {
		m.Create("", false)
	}
	start := activeID(t, m)

	for i := 0; i < m.Count(); i++ {
		m.SelectNext()
	}
	if got := activeID(t, m); got != start {
		t.Errorf("count SelectNext calls must return to start, got %s", got)
	}

	for i := 0; i < m.Count(); i++ {
		m.SelectPrevious()
	}
	if got := activeID(t, m); got != start {
		t.Errorf("count SelectPrevious calls must return to start, got %s", got)
	}
}

func TestSelectOrdinal(t *testing.T) {
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false)

	if err := m.SelectOrdinal(1); err != nil {
		t.Fatalf("SelectOrdinal failed: %v", err)
	}
	if got := activeID(t, m); got != a.ID {
		t.Errorf("ordinal 1 should select first, got %s", got)
	}

	m.SelectOrdinal(2)
	if got := activeID(t, m); got != b.ID {
		t.Errorf("ordinal 2 should select second, got %s", got)
	}

	// Ordinal 9 always selects the last tab regardless of count.
	m.SelectOrdinal(9)
	if got := activeID(t, m); got != c.ID {
		t.Errorf("ordinal 9 should select last, got %s", got)
	}

	// Other out-of-range ordinals are no-ops.
	m.SelectOrdinal(7)
	if got := activeID(t, m); got != c.ID {
		t.Errorf("out-of-range ordinal must not change active, got %s", got)
	}
	m.SelectOrdinal(0)
	if got := activeID(t, m); got != c.ID {
		t.Errorf("ordinal 0 must not change active, got %s", got)
	}
}

func TestEmptyManagerOperations(t *testing.T) {
	m, _ := newTestManager()

	if err := m.SelectNext(); err != nil {
		t.Errorf("SelectNext on empty manager should be silent, got %v", err)
	}
	if err := m.SelectPrevious(); err != nil {
		t.Errorf("SelectPrevious on empty manager should be silent, got %v", err)
	}
	if err := m.SelectOrdinal(1); err != nil {
		t.Errorf("SelectOrdinal on empty manager should be silent, got %v", err)
	}
	if err := m.Close(id.NewTabID()); err != nil {
		t.Errorf("Close on empty manager should be silent, got %v", err)
	}

	if m.Count() != 0 {
		t.Error("manager must remain empty")
	}
	if _, ok := m.Active(); ok {
		t.Error("empty manager must have no active tab")
	}
}

func TestDuplicate(t *testing.T) {
	m, factory := newTestManager()

	source, _ := m.Create("", false)

	// Feed the source tab an address through its surface.
	addr := "https://docs.example.com/deep/page"
	m.SurfaceStateChanged(factory.surfaces[0].ID(), surface.StateEvent{
		Address: surface.String(addr),
	})

	dup, err := m.Duplicate(source.ID)
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}

	if got := activeID(t, m); got != dup.ID {
		t.Error("duplicate must become active")
	}
	if got := factory.surfaces[1].lastLoad(); got != addr {
		t.Errorf("duplicate should load source address, got %q", got)
	}
}

func TestDuplicateWithoutAddressLoadsHome(t *testing.T) {
	m, factory := newTestManager()

	source, _ := m.Create("", false)
	if _, err := m.Duplicate(source.ID); err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}

	if got := factory.surfaces[1].lastLoad(); got != "https://docs.example.com" {
		t.Errorf("expected home address, got %q", got)
	}
}

func TestSurfaceStateChanged(t *testing.T) {
	m, factory := newTestManager()

	tab, _ := m.Create("", false)
	surfID := factory.surfaces[0].ID()

	m.SurfaceStateChanged(surfID, surface.StateEvent{
		Title:    surface.String("Deep Page"),
		Address:  surface.String("https://docs.example.com/deep"),
		Loading:  surface.Bool(true),
		Progress: surface.Float64(0.5),
	})

	got, ok := m.Get(tab.ID)
	if !ok {
		t.Fatal("tab disappeared")
	}
	if got.Title != "Deep Page" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
	if got.Address != "https://docs.example.com/deep" {
		t.Errorf("expected updated address, got %q", got.Address)
	}
	if !got.Loading || got.Progress != 0.5 {
		t.Errorf("expected loading at 0.5, got loading=%v progress=%v", got.Loading, got.Progress)
	}

	// An empty title falls back to the wrapper name.
	m.SurfaceStateChanged(surfID, surface.StateEvent{Title: surface.String("")})
	got, _ = m.Get(tab.ID)
	if got.Title != "Docs" {
		t.Errorf("expected fallback title 'Docs', got %q", got.Title)
	}
}

func TestSurfaceStateChangedAfterCloseIsDropped(t *testing.T) {
	m, factory := newTestManager()

	tab, _ := m.Create("", false)
	surfID := factory.surfaces[0].ID()
	m.Close(tab.ID)

	// Late event from the released surface must not resurrect state.
	m.SurfaceStateChanged(surfID, surface.StateEvent{Title: surface.String("ghost")})

	if m.Count() != 0 {
		t.Error("manager must stay empty")
	}
}

func TestStrictModeErrors(t *testing.T) {
	m, _ := newTestManager(WithStrict())

	if err := m.SelectNext(); err != ErrEmpty {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	if err := m.Close(id.NewTabID()); err != ErrNotMember {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if err := m.CloseOthers(id.NewTabID()); err != ErrNotMember {
		t.Errorf("expected ErrNotMember, got %v", err)
	}

	m.Create("", false)
	if err := m.Move(5, 0); err != ErrOutOfRange {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := m.SelectOrdinal(7); err != ErrOutOfRange {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestScenarioCreateCloseSelect(t *testing.T) {
	// Manager starts with one tab (A). Two creates give [A,B,C] with C
	// active. Closing B keeps C active. SelectPrevious lands on A.
	// Ordinal 9 returns to C.
	m, _ := newTestManager()

	a, _ := m.Create("", false)
	b, _ := m.Create("", false)
	c, _ := m.Create("", false)

	if got := activeID(t, m); got != c.ID {
		t.Fatalf("expected C active, got %s", got)
	}

	m.Close(b.ID)
	if got := activeID(t, m); got != c.ID {
		t.Errorf("closing B must keep C active, got %s", got)
	}
	if m.Count() != 2 {
		t.Fatalf("expected [A,C], got %d tabs", m.Count())
	}

	m.SelectPrevious()
	if got := activeID(t, m); got != a.ID {
		t.Errorf("expected A active, got %s", got)
	}

	m.SelectOrdinal(9)
	if got := activeID(t, m); got != c.ID {
		t.Errorf("expected C active, got %s", got)
	}
}

func TestEventsPublished(t *testing.T) {
	m, factory := newTestManager()

	var mu sync.Mutex
	var got []EventType
	m.AddSink(SinkFunc(func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Type)
	}))

	tab, _ := m.Create("", false)
	m.SurfaceStateChanged(factory.surfaces[0].ID(), surface.StateEvent{
		Title: surface.String("T"),
	})
	m.Close(tab.ID)

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventCreated, EventActivated, EventUpdated, EventClosed}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestStats(t *testing.T) {
	m, factory := newTestManager()

	m.Create("", false)
	tab, _ := m.Create("", false)

	m.SurfaceStateChanged(factory.surfaces[1].ID(), surface.StateEvent{
		Loading: surface.Bool(true),
	})

	stats := m.Stats()
	if stats.TotalTabs != 2 {
		t.Errorf("expected 2 tabs, got %d", stats.TotalTabs)
	}
	if stats.LoadingTabs != 1 {
		t.Errorf("expected 1 loading tab, got %d", stats.LoadingTabs)
	}
	if stats.ActiveTabID == nil || *stats.ActiveTabID != tab.ID {
		t.Error("expected active tab ID in stats")
	}
}

func TestCloseAll(t *testing.T) {
	m, factory := newTestManager()

	m.Create("", false)
	m.Create("", false)
	m.CloseAll()

	if m.Count() != 0 {
		t.Errorf("expected empty manager, got %d", m.Count())
	}
	for i, s := range factory.surfaces {
		if !s.isClosed() {
			t.Errorf("surface %d not released", i)
		}
	}
}
