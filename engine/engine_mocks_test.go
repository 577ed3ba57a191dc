package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aidiag/buffer"
	"aidiag/types"
)

// --- Mock implementations ---

// mockCollector implements the Collector interface for testing
type mockCollector struct {
	mu      sync.Mutex
	result  *buffer.CollectResult
	err     error
	calls   int
	lastMin types.Severity
}

func newMockCollector() *mockCollector {
	snapshots := buffer.NewSnapshotSet()
	snapshots.Add(&buffer.Snapshot{
		Filename: "a.lua",
		Lines:    []string{"local x = 1", "print(y)", "return x"},
	})
	return &mockCollector{
		result: &buffer.CollectResult{
			Files: map[string][]types.Diagnostic{
				"a.lua": {{
					Severity: types.SeverityError,
					Message:  "y undefined",
					Range:    types.Range{Start: 1, End: 1},
				}},
			},
			Snapshots: snapshots,
		},
	}
}

func (c *mockCollector) Collect(ctx context.Context, minSeverity types.Severity) (*buffer.CollectResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastMin = minSeverity
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *mockCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *mockCollector) lastMinSeverity() types.Severity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMin
}

func (c *mockCollector) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// mockPanel implements the Panel interface for testing
type mockPanel struct {
	mu      sync.Mutex
	open    bool
	applied []appliedReport
	shows   int
	hides   int
	yanks   []yankCall
	notices []string
}

type appliedReport struct {
	gen     uint64
	content string
}

type yankCall struct {
	register string
	content  string
}

func newMockPanel() *mockPanel {
	return &mockPanel{}
}

func (p *mockPanel) Apply(gen uint64, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, appliedReport{gen: gen, content: content})
	return nil
}

func (p *mockPanel) Show() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shows++
	p.open = true
	return nil
}

func (p *mockPanel) Hide() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hides++
	p.open = false
	return nil
}

func (p *mockPanel) IsOpen() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open, nil
}

func (p *mockPanel) Yank(register, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.yanks = append(p.yanks, yankCall{register: register, content: content})
	return nil
}

func (p *mockPanel) Notify(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, message)
}

func (p *mockPanel) setOpen(open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = open
}

func (p *mockPanel) applyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

func (p *mockPanel) lastApplied() (appliedReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.applied) == 0 {
		return appliedReport{}, false
	}
	return p.applied[len(p.applied)-1], true
}

func (p *mockPanel) showCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shows
}

func (p *mockPanel) lastNotice() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notices) == 0 {
		return "", false
	}
	return p.notices[len(p.notices)-1], true
}

// mockArchive implements the Archive interface for testing
type mockArchive struct {
	mu      sync.Mutex
	entries []string
	loadErr error
}

func newMockArchive() *mockArchive {
	return &mockArchive{}
}

func (a *mockArchive) Append(report string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, report)
	return nil
}

func (a *mockArchive) Load(offset int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return "", a.loadErr
	}
	if offset < 0 || offset >= len(a.entries) {
		return "", fmt.Errorf("history entry %d not found (%d archived)", offset, len(a.entries))
	}
	return a.entries[len(a.entries)-1-offset], nil
}

func (a *mockArchive) entryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// mockClock implements Clock for testing
type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{
		now: time.Now(),
	}
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{
		fireTime: c.now.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	// Copy timers to avoid holding lock during callback
	var toFire []*mockTimer
	for _, t := range c.timers {
		if !t.fireTime.After(c.now) {
			toFire = append(toFire, t)
		}
	}
	c.mu.Unlock()

	for _, t := range toFire {
		t.fire()
	}
}

func (c *mockClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type mockTimer struct {
	fireTime time.Time
	f        func()
	stopped  bool
	mu       sync.Mutex
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	f := t.f
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// --- Helper functions ---

func createTestEngine() (*Engine, *mockCollector, *mockPanel, *mockArchive, *mockClock) {
	collector := newMockCollector()
	panel := newMockPanel()
	archive := newMockArchive()
	clock := newMockClock()

	eng := NewEngine(collector, panel, archive, Config{
		RenderTimeout:  5 * time.Second,
		UpdateDebounce: 100 * time.Millisecond,
		LiveUpdates:    true,
		YankRegister:   "+",
		MinSeverity:    types.SeverityHint,
	}, clock)
	return eng, collector, panel, archive, clock
}

// createTestEngineWithContext creates an engine with mainCtx set (needed
// for paths that spawn render goroutines without Start)
func createTestEngineWithContext() (*Engine, *mockCollector, *mockPanel, *mockArchive, *mockClock, context.CancelFunc) {
	eng, collector, panel, archive, clock := createTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	eng.mainCtx = ctx
	eng.mainCancel = cancel
	return eng, collector, panel, archive, clock, cancel
}
