// Package text computes minimal line-level edits between two snapshots of
// buffer content. The panel applies these edits instead of rewriting the
// whole buffer so Neovim keeps the user's scroll and cursor position.
package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineEdit replaces the old lines [Start, End) with Lines. Start and End
// are 0-indexed and end-exclusive, matching nvim_buf_set_lines. A pure
// insertion has Start == End; a pure deletion has empty Lines.
type LineEdit struct {
	Start int
	End   int
	Lines []string
}

// JoinLines terminates every line with \n, the form diffmatchpatch expects
// for line-level diffing:
// - ["a", "b"] -> "a\nb\n"
// - ["a", ""]  -> "a\n\n"
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// SplitLines is the inverse of JoinLines: it drops the empty element that
// the trailing \n produces.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ComputeLineEdits diffs two line slices and returns the edits that turn
// old into new. Edits are in ascending order, non-overlapping, and
// expressed in OLD coordinates, so appliers must work back-to-front (or
// track offsets). Equal inputs yield nil. A delete immediately followed by
// an insert collapses into a single replacement edit.
func ComputeLineEdits(oldLines, newLines []string) []LineEdit {
	oldText := JoinLines(oldLines)
	newText := JoinLines(newLines)
	if oldText == newText {
		return nil
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	var edits []LineEdit
	oldPos := 0
	i := 0
	for i < len(lineDiffs) {
		d := lineDiffs[i]
		n := len(SplitLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += n
			i++
		case diffmatchpatch.DiffDelete:
			if i+1 < len(lineDiffs) && lineDiffs[i+1].Type == diffmatchpatch.DiffInsert {
				edits = append(edits, LineEdit{
					Start: oldPos,
					End:   oldPos + n,
					Lines: SplitLines(lineDiffs[i+1].Text),
				})
				oldPos += n
				i += 2
				continue
			}
			edits = append(edits, LineEdit{Start: oldPos, End: oldPos + n})
			oldPos += n
			i++
		case diffmatchpatch.DiffInsert:
			edits = append(edits, LineEdit{Start: oldPos, End: oldPos, Lines: SplitLines(d.Text)})
			i++
		}
	}
	return edits
}

// ApplyLineEdits returns a copy of lines with edits applied. Edits must be
// ascending and non-overlapping, which is what ComputeLineEdits produces.
func ApplyLineEdits(lines []string, edits []LineEdit) []string {
	out := make([]string, 0, len(lines))
	pos := 0
	for _, e := range edits {
		out = append(out, lines[pos:e.Start]...)
		out = append(out, e.Lines...)
		pos = e.End
	}
	return append(out, lines[pos:]...)
}
