package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"aidiag/logger"
	"aidiag/report"
)

const defaultSavePath = "aidiag-report.txt"

// requestRender schedules a fresh collect-and-render cycle. The action
// rides along and runs once this exact generation is applied, so a save
// or yank can never act on an older report than the one just requested.
func (e *Engine) requestRender(action EventType, arg string) {
	if e.stopped {
		return
	}

	// A new request supersedes any render still in flight.
	if e.currentCancel != nil {
		e.currentCancel()
		e.currentCancel = nil
	}

	e.renderGen++
	gen := e.renderGen
	started := e.clock.Now()

	ctx, cancel := context.WithTimeout(e.mainCtx, e.config.RenderTimeout)
	e.currentCancel = cancel

	go func() {
		defer cancel()

		collected, err := e.collector.Collect(ctx, e.config.MinSeverity)
		if err != nil {
			e.sendEvent(Event{Type: EventRenderError, Data: err})
			return
		}

		rendered, err := report.RenderAll(collected.Files, collected.Snapshots, e.config.Render)
		if err != nil {
			e.sendEvent(Event{Type: EventRenderError, Data: err})
			return
		}

		e.sendEvent(Event{Type: EventRenderReady, Data: &renderResult{
			gen:     gen,
			report:  rendered,
			action:  action,
			arg:     arg,
			files:   len(collected.Files),
			count:   collected.TotalDiagnostics(),
			elapsed: e.clock.Now().Sub(started),
		}})
	}()
}

// sendEvent posts an event to the loop. The event channel is never
// closed, so callers that outlive Stop can still post; once the loop is
// gone the canceled main context keeps the send from blocking.
func (e *Engine) sendEvent(event Event) {
	select {
	case e.eventChan <- event:
	case <-e.mainCtx.Done():
	}
}

func (e *Engine) handleRenderReady(res *renderResult) {
	if res.gen < e.renderGen {
		logger.Debug("dropping stale render (gen %d < %d)", res.gen, e.renderGen)
		return
	}
	e.currentCancel = nil

	logger.Debug("render gen %d: %d diagnostics in %d files (%v)", res.gen, res.count, res.files, res.elapsed)

	if err := e.panel.Apply(res.gen, res.report); err != nil {
		logger.Error("error applying report: %v", err)
		return
	}

	switch res.action {
	case EventShow:
		if err := e.panel.Show(); err != nil {
			logger.Error("error showing panel: %v", err)
		}
	case EventYank:
		register := res.arg
		if register == "" {
			register = e.config.YankRegister
		}
		if err := e.panel.Yank(register, res.report); err != nil {
			logger.Error("error yanking report: %v", err)
		}
	case EventSave:
		e.saveReport(res.arg, res.report)
	}

	e.archiveReport(res.report)
}

func (e *Engine) handleRenderError(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("render canceled: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("render timed out: %v", err)
	default:
		logger.Error("render error: %v", err)
	}
}

func (e *Engine) handleHide() {
	e.stopUpdateTimer()
	if err := e.panel.Hide(); err != nil {
		logger.Error("error hiding panel: %v", err)
	}
}

func (e *Engine) handleToggle() {
	open, err := e.panel.IsOpen()
	if err != nil {
		logger.Error("error checking panel state: %v", err)
		return
	}
	if open {
		e.handleHide()
		return
	}
	e.requestRender(EventShow, "")
}

// handleDiagnosticsChanged debounces live updates. Updates only run while
// the panel is open; a closed panel gets fresh content when shown.
func (e *Engine) handleDiagnosticsChanged() {
	if !e.config.LiveUpdates {
		return
	}
	open, err := e.panel.IsOpen()
	if err != nil || !open {
		return
	}
	e.startUpdateTimer()
}

func (e *Engine) handleUpdateTimeout() {
	open, err := e.panel.IsOpen()
	if err != nil || !open {
		return
	}
	e.requestRender(EventDiagnosticsChanged, "")
}

func (e *Engine) startUpdateTimer() {
	e.stopUpdateTimer()
	e.updateTimer = e.clock.AfterFunc(e.config.UpdateDebounce, func() {
		e.sendEvent(Event{Type: EventUpdateTimeout})
	})
}

func (e *Engine) stopUpdateTimer() {
	if e.updateTimer != nil {
		e.updateTimer.Stop()
		e.updateTimer = nil
	}
}

// archiveReport stores a report unless it is the empty sentinel or a
// repeat of the last archived one.
func (e *Engine) archiveReport(content string) {
	if e.archive == nil || content == report.EmptyReport {
		return
	}
	if content == e.lastArchived {
		return
	}
	if err := e.archive.Append(content); err != nil {
		logger.Warn("could not archive report: %v", err)
		return
	}
	e.lastArchived = content
}

func (e *Engine) saveReport(path, content string) {
	resolved, err := resolveSavePath(path)
	if err != nil {
		logger.Error("error resolving save path: %v", err)
		e.panel.Notify(fmt.Sprintf("aidiag: could not save report: %v", err))
		return
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		logger.Error("error saving report: %v", err)
		e.panel.Notify(fmt.Sprintf("aidiag: could not save report: %v", err))
		return
	}
	logger.Info("report saved to %s", resolved)
	e.panel.Notify(fmt.Sprintf("aidiag: report saved to %s", resolved))
}

func resolveSavePath(path string) (string, error) {
	if path == "" {
		return defaultSavePath, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// handleHistory shows an archived report in the panel. The argument is a
// recency offset, empty or 0 meaning the most recent archive.
func (e *Engine) handleHistory(arg string) {
	if e.archive == nil {
		return
	}

	offset := 0
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil {
			e.panel.Notify(fmt.Sprintf("aidiag: bad history offset %q", arg))
			return
		}
		offset = parsed
	}

	content, err := e.archive.Load(offset)
	if err != nil {
		logger.Warn("history load failed: %v", err)
		e.panel.Notify(fmt.Sprintf("aidiag: %v", err))
		return
	}

	// The archived view takes a fresh generation so a render already in
	// flight cannot overwrite it.
	e.renderGen++
	if err := e.panel.Apply(e.renderGen, content); err != nil {
		logger.Error("error applying archived report: %v", err)
		return
	}
	if err := e.panel.Show(); err != nil {
		logger.Error("error showing panel: %v", err)
	}
}
