package report

import (
	"errors"
	"fmt"

	"aidiag/types"
)

// LineFetcher returns the inclusive 0-indexed line range [start, end] of a
// single file. Implementations signal unreadable content with an error;
// any error is treated as the source being unavailable.
type LineFetcher func(start, end int) ([]types.SourceLine, error)

// ContextWindow is the clipped window of lines around one diagnostic,
// 0-indexed, inclusive. Start > End encodes an empty window.
type ContextWindow struct {
	Start int
	End   int
}

// Empty reports whether the window contains no lines.
func (w ContextWindow) Empty() bool { return w.Start > w.End }

// ContextLine is one window line plus whether the diagnostic's own range
// covers it. Covered lines receive the annotation during rendering.
type ContextLine struct {
	types.SourceLine
	IsDiagnostic bool
}

// DiagnosticContext binds a diagnostic to its resolved window and lines.
type DiagnosticContext struct {
	Diagnostic types.Diagnostic
	Window     ContextWindow
	Lines      []ContextLine
}

// NormalizeRange clamps an inverted range (End < Start) to the single line
// at Start and reports whether it had to. Some tooling emits inverted
// ranges; rendering continues with the clamped range everywhere, it is
// never re-derived from the raw input.
func NormalizeRange(d types.Diagnostic) (types.Diagnostic, bool) {
	if d.Range.End < d.Range.Start {
		d.Range.End = d.Range.Start
		return d, true
	}
	return d, false
}

// ExtractContext clips [Start-before, End+after] to [0, lineCount-1] and
// fetches the window's lines. A zero-line file, or a diagnostic lying
// wholly past the end of the file, yields an empty context and no error.
// A fetch failure wraps ErrSourceUnavailable; callers drop just this
// diagnostic and keep rendering the rest.
func ExtractContext(d types.Diagnostic, lineCount, before, after int, fetch LineFetcher) (DiagnosticContext, error) {
	d, _ = NormalizeRange(d)
	dc := DiagnosticContext{Diagnostic: d, Window: ContextWindow{Start: 0, End: -1}}
	if lineCount <= 0 {
		return dc, nil
	}
	start := d.Range.Start - before
	if start < 0 {
		start = 0
	}
	end := d.Range.End + after
	if end > lineCount-1 {
		end = lineCount - 1
	}
	if start > end {
		return dc, nil
	}
	lines, err := fetch(start, end)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return DiagnosticContext{}, fmt.Errorf("lines [%d, %d]: %w", start, end, err)
		}
		return DiagnosticContext{}, fmt.Errorf("lines [%d, %d]: %w: %v", start, end, ErrSourceUnavailable, err)
	}
	dc.Window = ContextWindow{Start: start, End: end}
	dc.Lines = make([]ContextLine, 0, len(lines))
	for _, ln := range lines {
		dc.Lines = append(dc.Lines, ContextLine{
			SourceLine:   ln,
			IsDiagnostic: ln.Number >= d.Range.Start && ln.Number <= d.Range.End,
		})
	}
	return dc, nil
}
