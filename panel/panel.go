// Package panel owns the report window inside Neovim: a named scratch
// buffer shown in a bottom or right split. Updates rewrite only the lines
// that changed so the window keeps its scroll position while the user
// reads.
package panel

import (
	"fmt"

	"github.com/neovim/go-client/nvim"

	"aidiag/logger"
	"aidiag/text"
)

// BufferName is the name given to the report scratch buffer.
const BufferName = "aidiag://report"

const (
	PositionBottom = "bottom"
	PositionRight  = "right"

	defaultSize = 12
)

// Config controls where the panel opens and how large it is. Size is a
// height for bottom panels and a width for right panels.
type Config struct {
	Position string
	Size     int
}

// Panel manages the report buffer and its window. It is not safe for
// concurrent use; the engine serializes all calls.
type Panel struct {
	client *nvim.Nvim
	log    *logger.Scope

	cfg Config
	buf nvim.Buffer
	win nvim.Window

	// current mirrors the buffer's lines so updates can be computed as
	// minimal edits without reading the buffer back.
	current    []string
	appliedGen uint64
}

func New(cfg Config) *Panel {
	if cfg.Position != PositionRight {
		cfg.Position = PositionBottom
	}
	if cfg.Size <= 0 {
		cfg.Size = defaultSize
	}
	return &Panel{cfg: cfg, log: logger.Scoped("panel")}
}

// SetClient points the panel at a new nvim connection. Buffer and window
// numbers restart with every Neovim instance, so handles held for the
// previous connection would name unrelated buffers and windows in the new
// one; they are dropped and the next Apply or Show starts from a fresh
// scratch buffer.
func (p *Panel) SetClient(client *nvim.Nvim) {
	p.client = client
	p.buf = 0
	p.win = 0
	p.current = nil
}

// Apply replaces the panel content with the given report text. Calls
// carrying a generation older than one already applied are ignored, so a
// slow render can never overwrite a newer one. The buffer is updated even
// while the window is closed; Show then reveals the latest report.
func (p *Panel) Apply(gen uint64, content string) error {
	if gen < p.appliedGen {
		p.log.Debug("dropping stale render (gen %d < %d)", gen, p.appliedGen)
		return nil
	}
	p.appliedGen = gen

	if err := p.ensureBuffer(); err != nil {
		return err
	}

	newLines := text.SplitLines(content)
	edits := text.ComputeLineEdits(p.current, newLines)
	if len(edits) == 0 {
		return nil
	}

	batch := p.client.NewBatch()
	batch.SetBufferOption(p.buf, "modifiable", true)
	// Edits come back in ascending old-buffer order; applying them last
	// to first keeps earlier offsets valid.
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		batch.SetBufferLines(p.buf, e.Start, e.End, false, toByteLines(e.Lines))
	}
	batch.SetBufferOption(p.buf, "modifiable", false)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("updating panel buffer: %w", err)
	}

	p.current = newLines
	p.log.Debug("applied gen %d: %d lines, %d edits", gen, len(newLines), len(edits))
	return nil
}

// Show opens the panel window if it is not already open.
func (p *Panel) Show() error {
	if err := p.ensureBuffer(); err != nil {
		return err
	}
	open, err := p.IsOpen()
	if err != nil {
		return err
	}
	if open {
		return nil
	}
	return p.openWindow()
}

// Hide closes the panel window. The buffer and its content survive.
func (p *Panel) Hide() error {
	open, err := p.IsOpen()
	if err != nil {
		return err
	}
	if !open {
		return nil
	}
	if err := p.client.CloseWindow(p.win, true); err != nil {
		return fmt.Errorf("closing panel window: %w", err)
	}
	p.win = 0
	return nil
}

// IsOpen reports whether the panel window currently exists. The user can
// close the window behind our back, so the handle is validated each time.
func (p *Panel) IsOpen() (bool, error) {
	if p.client == nil || p.win == 0 {
		return false, nil
	}
	valid, err := p.client.IsWindowValid(p.win)
	if err != nil {
		return false, err
	}
	if !valid {
		p.win = 0
	}
	return valid, nil
}

// Yank writes the given report text into a register and tells the user.
func (p *Panel) Yank(register, content string) error {
	luaCode := `
		local register, content = ...
		vim.fn.setreg(register, content)
		vim.notify(string.format("aidiag: report yanked to register %s", register), vim.log.levels.INFO)
	`
	var result any
	if err := p.client.ExecLua(luaCode, &result, register, content); err != nil {
		return fmt.Errorf("yanking report: %w", err)
	}
	return nil
}

// Notify shows a one-line message to the user via vim.notify.
func (p *Panel) Notify(message string) {
	if p.client == nil {
		return
	}
	luaCode := `
		local message = ...
		vim.notify(message, vim.log.levels.INFO)
	`
	var result any
	if err := p.client.ExecLua(luaCode, &result, message); err != nil {
		p.log.Warn("notify failed: %v", err)
	}
}

// ensureBuffer creates the scratch buffer on first use and recreates it
// if the user wiped it.
func (p *Panel) ensureBuffer() error {
	if p.client == nil {
		return fmt.Errorf("panel has no nvim client")
	}
	if p.buf != 0 {
		valid, err := p.client.IsBufferValid(p.buf)
		if err != nil {
			return err
		}
		if valid {
			return nil
		}
		p.buf = 0
		p.current = nil
	}

	buf, err := p.client.CreateBuffer(false, true)
	if err != nil {
		return fmt.Errorf("creating panel buffer: %w", err)
	}

	batch := p.client.NewBatch()
	batch.SetBufferName(buf, BufferName)
	batch.SetBufferOption(buf, "filetype", "aidiag")
	batch.SetBufferOption(buf, "modifiable", false)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("configuring panel buffer: %w", err)
	}

	p.buf = buf
	// A fresh buffer holds a single empty line.
	p.current = []string{""}
	p.log.Debug("created panel buffer %d", int(buf))
	return nil
}

// openWindow opens the split, attaches the panel buffer and returns focus
// to the window the user was in.
func (p *Panel) openWindow() error {
	luaCode := `
		local bufnr, split_command = ...
		local previous = vim.api.nvim_get_current_win()
		vim.cmd(split_command)
		local win = vim.api.nvim_get_current_win()
		vim.api.nvim_win_set_buf(win, bufnr)
		vim.wo[win].number = false
		vim.wo[win].relativenumber = false
		vim.wo[win].wrap = false
		vim.wo[win].winfixheight = true
		vim.wo[win].winfixwidth = true
		vim.api.nvim_set_current_win(previous)
		return win
	`
	var winID int64
	if err := p.client.ExecLua(luaCode, &winID, int(p.buf), splitCommand(p.cfg.Position, p.cfg.Size)); err != nil {
		return fmt.Errorf("opening panel window: %w", err)
	}
	p.win = nvim.Window(winID)
	p.log.Debug("opened panel window %d (%s, size %d)", winID, p.cfg.Position, p.cfg.Size)
	return nil
}

// splitCommand builds the :split command for the configured position.
func splitCommand(position string, size int) string {
	if position == PositionRight {
		return fmt.Sprintf("vertical botright %dsplit", size)
	}
	return fmt.Sprintf("botright %dsplit", size)
}

func toByteLines(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
