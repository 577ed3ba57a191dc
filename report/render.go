package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"aidiag/types"
)

const (
	// annotationGap sits between line content and the first annotation;
	// annotationSep separates annotations sharing a line.
	annotationGap = "  "
	annotationSep = " "

	truncationTail = "..."
)

// Truncate caps a line at max display columns, keeping the leading
// max-3 columns and appending "...". max <= 0 disables truncation.
// Width is measured in display cells so wide runes count double.
// Idempotent: output always fits within max and passes through unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max-len(truncationTail), "") + truncationTail
}

// flattenMessage collapses every whitespace run, including newlines, to a
// single space so a message can never break the line-oriented format.
func flattenMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

// formatAnnotation renders one diagnostic as "[Error: message]".
func formatAnnotation(d types.Diagnostic) string {
	return "[" + d.Severity.String() + ": " + flattenMessage(d.Message) + "]"
}

// sanitizeFilename strips CR and LF so a filename cannot inject extra
// report lines through the header.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\r", "")
	return strings.ReplaceAll(name, "\n", "")
}

// RenderFile renders one file section: a leading blank line (this is what
// separates files in the assembled report), the header, a blank line, then
// each block's lines with blocks separated by exactly one blank line.
// Stored line numbers are 0-indexed; the +1 to display numbering happens
// here and nowhere else. An empty block list renders to "".
func RenderFile(filename string, blocks []MergedBlock, cfg Config) string {
	if len(blocks) == 0 {
		return ""
	}
	cfg = cfg.sanitized()
	name := filename
	if cfg.SanitizeFilenames {
		name = sanitizeFilename(name)
	}
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, cfg.FileHeaderFormat, name)
	b.WriteString("\n")
	for _, blk := range blocks {
		b.WriteString("\n")
		writeBlock(&b, blk, cfg)
	}
	return b.String()
}

func writeBlock(b *strings.Builder, blk MergedBlock, cfg Config) {
	for _, ln := range blk.Lines {
		if cfg.ShowLineNumbers {
			fmt.Fprintf(b, "%4d: ", ln.Number+1)
		}
		b.WriteString(Truncate(ln.Content, cfg.MaxLineLength))
		for i, d := range ln.Diagnostics {
			if i == 0 {
				b.WriteString(annotationGap)
			} else {
				b.WriteString(annotationSep)
			}
			b.WriteString(formatAnnotation(d))
		}
		b.WriteString("\n")
	}
}
