package buffer

import (
	"errors"
	"testing"

	"aidiag/assert"
	"aidiag/report"
	"aidiag/types"
)

// rawEntry builds a vim.diagnostic.get entry the way msgpack decoding
// delivers it, with numbers arriving as int64.
func rawEntry(bufnr, lnum, endLnum int, severity int, message string) map[string]any {
	return map[string]any{
		"bufnr":    int64(bufnr),
		"lnum":     int64(lnum),
		"end_lnum": int64(endLnum),
		"severity": int64(severity),
		"message":  message,
	}
}

func TestConvertDiagnostic_Basic(t *testing.T) {
	d, bufnr, ok := convertDiagnostic(rawEntry(3, 10, 12, 1, "boom"))
	assert.True(t, ok, "entry should convert")
	assert.Equal(t, 3, bufnr, "bufnr")
	assert.Equal(t, types.SeverityError, d.Severity, "severity")
	assert.Equal(t, "boom", d.Message, "message")
	assert.Equal(t, types.Range{Start: 10, End: 12}, d.Range, "range")
}

func TestConvertDiagnostic_MissingEndDefaultsToStart(t *testing.T) {
	entry := map[string]any{
		"bufnr":    int64(1),
		"lnum":     int64(7),
		"severity": int64(2),
		"message":  "w",
	}
	d, _, ok := convertDiagnostic(entry)
	assert.True(t, ok, "entry should convert")
	assert.Equal(t, types.Range{Start: 7, End: 7}, d.Range, "range collapses to lnum")
}

func TestConvertDiagnostic_FloatNumbers(t *testing.T) {
	entry := map[string]any{
		"bufnr":    float64(2),
		"lnum":     float64(4),
		"end_lnum": float64(5),
		"severity": float64(3),
		"message":  "info",
	}
	d, bufnr, ok := convertDiagnostic(entry)
	assert.True(t, ok, "entry should convert")
	assert.Equal(t, 2, bufnr, "bufnr")
	assert.Equal(t, types.SeverityInfo, d.Severity, "severity")
	assert.Equal(t, types.Range{Start: 4, End: 5}, d.Range, "range")
}

func TestConvertDiagnostic_DropsEntriesWithoutBufferOrLine(t *testing.T) {
	_, _, ok := convertDiagnostic(map[string]any{"lnum": int64(3)})
	assert.False(t, ok, "missing bufnr should drop")

	_, _, ok = convertDiagnostic(map[string]any{"bufnr": int64(1)})
	assert.False(t, ok, "missing lnum should drop")
}

func TestConvertDiagnostics_SeverityFilter(t *testing.T) {
	raw := []map[string]any{
		rawEntry(1, 0, 0, 1, "error"),
		rawEntry(1, 1, 1, 2, "warning"),
		rawEntry(1, 2, 2, 3, "info"),
		rawEntry(1, 3, 3, 4, "hint"),
	}

	byBuffer := convertDiagnostics(raw, types.SeverityWarning)
	assert.Len(t, 2, byBuffer[1], "only error and warning pass the filter")
	assert.Equal(t, "error", byBuffer[1][0].Message, "first kept")
	assert.Equal(t, "warning", byBuffer[1][1].Message, "second kept")

	byBuffer = convertDiagnostics(raw, types.SeverityHint)
	assert.Len(t, 4, byBuffer[1], "hint threshold keeps everything")
}

func TestConvertDiagnostics_GroupsByBuffer(t *testing.T) {
	raw := []map[string]any{
		rawEntry(1, 0, 0, 1, "a"),
		rawEntry(2, 0, 0, 1, "b"),
		rawEntry(1, 5, 5, 1, "c"),
	}

	byBuffer := convertDiagnostics(raw, types.SeverityHint)
	assert.Len(t, 2, byBuffer, "two buffers")
	assert.Len(t, 2, byBuffer[1], "buffer 1 diagnostics")
	assert.Len(t, 1, byBuffer[2], "buffer 2 diagnostics")
}

func TestSortDiagnostics_PositionSeverityMessage(t *testing.T) {
	ds := []types.Diagnostic{
		{Severity: types.SeverityWarning, Message: "b", Range: types.Range{Start: 5, End: 5}},
		{Severity: types.SeverityError, Message: "z", Range: types.Range{Start: 2, End: 2}},
		{Severity: types.SeverityError, Message: "a", Range: types.Range{Start: 5, End: 5}},
		{Severity: types.SeverityWarning, Message: "a", Range: types.Range{Start: 5, End: 5}},
	}

	sortDiagnostics(ds)

	assert.Equal(t, "z", ds[0].Message, "lowest start first")
	assert.Equal(t, types.SeverityError, ds[1].Severity, "severity breaks position ties")
	assert.Equal(t, "a", ds[2].Message, "message breaks severity ties")
	assert.Equal(t, "b", ds[3].Message, "last by message")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, UnnamedBuffer, displayName("", "/home/user/proj"), "unnamed buffer")
	assert.Equal(t, "src/main.lua", displayName("/home/user/proj/src/main.lua", "/home/user/proj"), "workspace relative")
	assert.Equal(t, "/etc/hosts", displayName("/etc/hosts", "/home/user/proj"), "outside workspace stays absolute")
	assert.Equal(t, "/home/user/proj/a.lua", displayName("/home/user/proj/a.lua", ""), "no workspace")
}

func TestMakeRelativeToWorkspace_WorkspaceItself(t *testing.T) {
	got := makeRelativeToWorkspace("/home/user/proj", "/home/user/proj")
	assert.Equal(t, "/home/user/proj", got, "workspace root itself stays absolute")
}

func TestSnapshotSet_LinesAndBounds(t *testing.T) {
	set := NewSnapshotSet()
	set.Add(&Snapshot{Filename: "a.lua", Lines: []string{"l0", "l1", "l2"}})

	count, err := set.LineCount("a.lua")
	assert.NoError(t, err, "line count")
	assert.Equal(t, 3, count, "line count value")

	lines, err := set.Lines("a.lua", 1, 2)
	assert.NoError(t, err, "in-range read")
	assert.Len(t, 2, lines, "two lines")
	assert.Equal(t, types.SourceLine{Number: 1, Content: "l1"}, lines[0], "first line")
	assert.Equal(t, types.SourceLine{Number: 2, Content: "l2"}, lines[1], "second line")

	_, err = set.Lines("a.lua", 1, 3)
	assert.True(t, errors.Is(err, report.ErrSourceUnavailable), "past-end read unavailable")

	_, err = set.Lines("a.lua", -1, 0)
	assert.True(t, errors.Is(err, report.ErrSourceUnavailable), "negative start unavailable")
}

func TestSnapshotSet_MissingFile(t *testing.T) {
	set := NewSnapshotSet()

	_, err := set.LineCount("ghost.lua")
	assert.True(t, errors.Is(err, report.ErrSourceUnavailable), "missing file line count")

	_, err = set.Lines("ghost.lua", 0, 0)
	assert.True(t, errors.Is(err, report.ErrSourceUnavailable), "missing file lines")
}

func TestSnapshotSet_FirstSnapshotWins(t *testing.T) {
	set := NewSnapshotSet()
	set.Add(&Snapshot{Filename: "a.lua", Lines: []string{"first"}})
	set.Add(&Snapshot{Filename: "a.lua", Lines: []string{"second"}})

	lines, err := set.Lines("a.lua", 0, 0)
	assert.NoError(t, err, "read")
	assert.Equal(t, "first", lines[0].Content, "first snapshot kept")
}

func TestSnapshotSet_ServesReportRenderer(t *testing.T) {
	set := NewSnapshotSet()
	set.Add(&Snapshot{Filename: "a.lua", Lines: []string{"local x", "print(x)", "return x"}})

	cfg := report.DefaultConfig()
	cfg.BeforeLines = 1
	cfg.AfterLines = 1
	cfg.MaxLineLength = 0

	diags := []types.Diagnostic{{
		Severity: types.SeverityError,
		Message:  "x undefined",
		Range:    types.Range{Start: 1, End: 1},
	}}

	got := report.RenderOneFile("a.lua", diags, set, cfg)
	want := "\nFile: a.lua\n\nlocal x\nprint(x)  [Error: x undefined]\nreturn x\n"
	assert.Equal(t, want, got, "snapshot-backed render")
}
