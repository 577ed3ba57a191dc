// Package engine serializes plugin commands and diagnostic updates
// through a single event loop. Renders run off the loop and report back
// as events; only the newest render generation reaches the panel.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/neovim/go-client/nvim"

	"aidiag/buffer"
	"aidiag/logger"
	"aidiag/report"
	"aidiag/types"
)

// Collector supplies one consistent snapshot of the editor's diagnostics
// and the buffer lines that back them.
type Collector interface {
	Collect(ctx context.Context, minSeverity types.Severity) (*buffer.CollectResult, error)
}

// Panel is the report surface inside the editor.
type Panel interface {
	Apply(gen uint64, content string) error
	Show() error
	Hide() error
	IsOpen() (bool, error)
	Yank(register, content string) error
	Notify(message string)
}

// Archive persists rendered reports for later recall.
type Archive interface {
	Append(report string) error
	Load(offset int) (string, error)
}

type Config struct {
	RenderTimeout  time.Duration
	UpdateDebounce time.Duration
	LiveUpdates    bool
	YankRegister   string
	MinSeverity    types.Severity
	Render         report.Config
}

type Engine struct {
	collector Collector
	panel     Panel
	archive   Archive
	clock     Clock
	n         *nvim.Nvim

	config Config

	mu        sync.RWMutex
	eventChan chan Event

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	currentCancel context.CancelFunc
	updateTimer   Timer

	// renderGen numbers render requests; a result carrying an older
	// generation than the latest request is stale and dropped.
	renderGen    uint64
	lastArchived string
}

func NewEngine(collector Collector, panel Panel, archive Archive, config Config, clock Clock) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	if config.RenderTimeout <= 0 {
		config.RenderTimeout = 5 * time.Second
	}
	if config.UpdateDebounce <= 0 {
		config.UpdateDebounce = 300 * time.Millisecond
	}
	if config.YankRegister == "" {
		config.YankRegister = "+"
	}
	if config.MinSeverity <= 0 {
		config.MinSeverity = types.SeverityHint
	}

	return &Engine{
		collector: collector,
		panel:     panel,
		archive:   archive,
		clock:     clock,
		config:    config,
		eventChan: make(chan Event, 100),
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop shuts down the event loop and cancels any render in flight. The
// event channel stays open: render goroutines and timer callbacks may
// still post results after Stop, and a send must never hit a closed
// channel.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")

		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		if e.currentCancel != nil {
			e.currentCancel()
			e.currentCancel = nil
		}
		e.stopUpdateTimer()

		logger.Info("engine stopped")
	})
}

// maxLoopRestarts bounds how many times the event loop is revived after
// a panic escapes event handling.
const maxLoopRestarts = 5

func (e *Engine) eventLoop(ctx context.Context) {
	for restarts := 0; ; restarts++ {
		if e.runEventLoop(ctx) {
			return
		}
		if restarts == maxLoopRestarts {
			logger.Error("event loop hit the restart limit (%d), giving up", maxLoopRestarts)
			return
		}
		logger.Warn("event loop restarting after panic (%d/%d)", restarts+1, maxLoopRestarts)
	}
}

// runEventLoop consumes events until shutdown. It reports whether it
// exited cleanly; false means a panic escaped event handling and the
// caller decides whether to restart.
func (e *Engine) runEventLoop(ctx context.Context) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true
		case event, ok := <-e.eventChan:
			if !ok {
				return true
			}

			e.mu.RLock()
			stopped := e.stopped
			e.mu.RUnlock()
			if stopped {
				return true
			}

			// Wrap event handling in its own recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	logger.Debug("handle event: %s %q", event.Type, event.Arg)

	switch event.Type {
	case EventShow:
		e.requestRender(EventShow, "")
	case EventHide:
		e.handleHide()
	case EventToggle:
		e.handleToggle()
	case EventRefresh:
		e.requestRender(EventRefresh, "")
	case EventYank:
		e.requestRender(EventYank, event.Arg)
	case EventSave:
		e.requestRender(EventSave, event.Arg)
	case EventHistory:
		e.handleHistory(event.Arg)
	case EventDiagnosticsChanged:
		e.handleDiagnosticsChanged()
	case EventUpdateTimeout:
		e.handleUpdateTimeout()
	case EventRenderReady:
		e.handleRenderReady(event.Data.(*renderResult))
	case EventRenderError:
		e.handleRenderError(event.Data.(error))
	}
}

// SetNvim wires a connection and registers the RPC handler the plugin
// notifies. Called again whenever a new socket connection replaces the
// previous one.
func (e *Engine) SetNvim(n *nvim.Nvim) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	e.n = n

	if err := e.n.RegisterHandler("aidiag_event", func(_ *nvim.Nvim, args ...string) {
		e.mu.RLock()
		stopped := e.stopped
		e.mu.RUnlock()
		if stopped || len(args) == 0 {
			return
		}

		eventType := EventTypeFromString(args[0])
		if eventType == "" {
			logger.Warn("unknown plugin event %q", args[0])
			return
		}
		arg := ""
		if len(args) > 1 {
			arg = args[1]
		}

		select {
		case e.eventChan <- Event{Type: eventType, Arg: arg}:
		case <-e.mainCtx.Done():
		}
	}); err != nil {
		logger.Error("error registering event handler for new connection: %v", err)
	}
}
