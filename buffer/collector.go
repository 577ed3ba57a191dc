// Package buffer talks to the Neovim host: it pulls the current
// diagnostic list out of vim.diagnostic and snapshots the lines of every
// buffer those diagnostics point at, so rendering never has to call back
// into the editor.
package buffer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neovim/go-client/nvim"

	"aidiag/logger"
	"aidiag/types"
)

// UnnamedBuffer is the display name used for buffers without a file name,
// matching what Neovim shows in its own UI.
const UnnamedBuffer = "[No Name]"

// Collector fetches diagnostics and buffer snapshots from a Neovim
// instance. It holds no state between Collect calls beyond the client.
type Collector struct {
	client *nvim.Nvim
	log    *logger.Scope
}

func NewCollector() *Collector {
	return &Collector{log: logger.Scoped("collector")}
}

// SetClient sets the nvim client used for all host queries.
func (c *Collector) SetClient(client *nvim.Nvim) {
	c.client = client
}

// CollectResult is one consistent view of the editor: diagnostics grouped
// by display name, plus the line snapshots that back them.
type CollectResult struct {
	Files     map[string][]types.Diagnostic
	Snapshots *SnapshotSet
}

// TotalDiagnostics counts diagnostics across all files.
func (r *CollectResult) TotalDiagnostics() int {
	total := 0
	for _, ds := range r.Files {
		total += len(ds)
	}
	return total
}

// Collect queries vim.diagnostic.get(nil) for all buffers, filters by
// severity, then snapshots each involved buffer. Buffers that fail to
// read or are unloaded are skipped; their diagnostics stay in the result
// and the renderer drops them when the snapshot set reports the file
// unavailable.
func (c *Collector) Collect(ctx context.Context, minSeverity types.Severity) (*CollectResult, error) {
	if c.client == nil {
		return nil, fmt.Errorf("collector has no nvim client")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []map[string]any
	var workspacePath string
	batch := c.client.NewBatch()
	batch.ExecLua("return vim.diagnostic.get(nil)", &raw, nil)
	batch.ExecLua("return vim.fn.getcwd()", &workspacePath, nil)
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("fetching diagnostics: %w", err)
	}

	byBuffer := convertDiagnostics(raw, minSeverity)
	c.log.Debug("collected %d raw diagnostics across %d buffers", len(raw), len(byBuffer))

	result := &CollectResult{
		Files:     make(map[string][]types.Diagnostic, len(byBuffer)),
		Snapshots: NewSnapshotSet(),
	}

	// Stable buffer order keeps logs and duplicate-name resolution
	// deterministic across runs.
	bufnrs := make([]int, 0, len(byBuffer))
	for bufnr := range byBuffer {
		bufnrs = append(bufnrs, bufnr)
	}
	sort.Ints(bufnrs)

	for _, bufnr := range bufnrs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, lines, err := c.fetchBuffer(nvim.Buffer(bufnr))
		filename := displayName(name, workspacePath)
		if err != nil {
			c.log.Warn("buffer %d (%s) unavailable: %v", bufnr, filename, err)
		} else {
			result.Snapshots.Add(&Snapshot{Filename: filename, Lines: lines})
		}
		result.Files[filename] = append(result.Files[filename], byBuffer[bufnr]...)
	}

	for _, ds := range result.Files {
		sortDiagnostics(ds)
	}
	return result, nil
}

// fetchBuffer reads a buffer's name, loaded state and full lines in a
// single round-trip. Each buffer gets its own batch so one dead buffer
// cannot fail the whole collection.
func (c *Collector) fetchBuffer(buf nvim.Buffer) (string, []string, error) {
	var name string
	var loaded bool
	var rawLines [][]byte
	batch := c.client.NewBatch()
	batch.BufferName(buf, &name)
	batch.IsBufferLoaded(buf, &loaded)
	batch.BufferLines(buf, 0, -1, false, &rawLines)
	if err := batch.Execute(); err != nil {
		return name, nil, err
	}
	if !loaded {
		return name, nil, fmt.Errorf("buffer not loaded")
	}
	lines := make([]string, len(rawLines))
	for i, l := range rawLines {
		lines[i] = string(l)
	}
	return name, lines, nil
}

// convertDiagnostics turns raw vim.diagnostic.get entries into typed
// diagnostics grouped by buffer number. Entries above the severity
// threshold (numerically larger means less severe) and entries without a
// usable buffer or line are dropped.
func convertDiagnostics(raw []map[string]any, minSeverity types.Severity) map[int][]types.Diagnostic {
	byBuffer := make(map[int][]types.Diagnostic)
	for _, entry := range raw {
		d, bufnr, ok := convertDiagnostic(entry)
		if !ok {
			continue
		}
		if d.Severity > minSeverity {
			continue
		}
		byBuffer[bufnr] = append(byBuffer[bufnr], d)
	}
	return byBuffer
}

func convertDiagnostic(entry map[string]any) (types.Diagnostic, int, bool) {
	bufnr := getNumber(entry, "bufnr")
	lnum := getNumber(entry, "lnum")
	if bufnr < 0 || lnum < 0 {
		return types.Diagnostic{}, -1, false
	}
	endLnum := getNumber(entry, "end_lnum")
	if endLnum < 0 {
		endLnum = lnum
	}
	d := types.Diagnostic{
		Severity: types.Severity(getNumber(entry, "severity")),
		Message:  getString(entry, "message"),
		Range:    types.Range{Start: lnum, End: endLnum},
	}
	return d, bufnr, true
}

// sortDiagnostics orders a file's diagnostics by position, then severity,
// then message, so the merge step sees a deterministic supply order no
// matter how the host enumerated them.
func sortDiagnostics(ds []types.Diagnostic) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Range.Start != b.Range.Start {
			return a.Range.Start < b.Range.Start
		}
		if a.Range.End != b.Range.End {
			return a.Range.End < b.Range.End
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.Message < b.Message
	})
}

// displayName maps a buffer name to the name shown in report headers:
// workspace-relative when the file lives under the workspace, absolute
// otherwise, and a placeholder for unnamed buffers.
func displayName(bufferName, workspacePath string) string {
	if bufferName == "" {
		return UnnamedBuffer
	}
	return makeRelativeToWorkspace(bufferName, workspacePath)
}

func makeRelativeToWorkspace(absolutePath, workspacePath string) string {
	if workspacePath == "" {
		return absolutePath
	}
	cleanPath := filepath.Clean(absolutePath)
	cleanWorkspace := filepath.Clean(workspacePath)
	if relative, found := strings.CutPrefix(cleanPath, cleanWorkspace); found {
		trimmed := strings.TrimPrefix(relative, string(filepath.Separator))
		if trimmed != "" {
			return trimmed
		}
	}
	return absolutePath
}

func getString(m map[string]any, key string) string {
	if value, ok := m[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

func getNumber(m map[string]any, key string) int {
	if value, ok := m[key]; ok {
		switch n := value.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case uint:
			return int(n)
		case uint32:
			return int(n)
		case uint64:
			return int(n)
		case float32:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return -1
}
