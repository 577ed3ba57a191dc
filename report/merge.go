package report

import (
	"sort"

	"aidiag/types"
)

// RenderLine is one output line: its content plus every diagnostic whose
// own range covers it, in supply order.
type RenderLine struct {
	Number      int // 0-indexed; the renderer converts to 1-indexed display
	Content     string
	Diagnostics []types.Diagnostic
}

// MergedBlock is a maximal run of contiguous line numbers gathered from
// one or more context windows of the same file. Blocks of a file never
// overlap or touch: there is a gap of at least 2 lines between them.
type MergedBlock struct {
	Start int // 0-indexed, inclusive
	End   int // 0-indexed, inclusive
	Lines []RenderLine
}

// MergeBlocks folds all context windows of one file into contiguous
// blocks. The merge is driven by the set of line numbers present, not by
// window identity, so windows clipped asymmetrically at file boundaries
// still merge correctly. Content is written once per line (overlapping
// windows read the same snapshot, later writes would be identical);
// diagnostics accumulate per covered line in supply order. Empty input
// yields an empty block list, not an error.
func MergeBlocks(fd *FileDiagnostics) []MergedBlock {
	if fd == nil || len(fd.Contexts) == 0 {
		return nil
	}

	type lineEntry struct {
		content string
		diags   []types.Diagnostic
	}
	byLine := make(map[int]*lineEntry)
	for _, dc := range fd.Contexts {
		for _, ln := range dc.Lines {
			e, ok := byLine[ln.Number]
			if !ok {
				e = &lineEntry{content: ln.Content}
				byLine[ln.Number] = e
			}
			if ln.IsDiagnostic {
				e.diags = append(e.diags, dc.Diagnostic)
			}
		}
	}
	if len(byLine) == 0 {
		return nil
	}

	nums := make([]int, 0, len(byLine))
	for n := range byLine {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var blocks []MergedBlock
	for _, n := range nums {
		last := len(blocks) - 1
		if last < 0 || n > blocks[last].End+1 {
			blocks = append(blocks, MergedBlock{Start: n, End: n})
			last++
		} else {
			blocks[last].End = n
		}
		e := byLine[n]
		blocks[last].Lines = append(blocks[last].Lines, RenderLine{
			Number:      n,
			Content:     e.content,
			Diagnostics: e.diags,
		})
	}
	return blocks
}
