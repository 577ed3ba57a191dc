// Package report turns per-file diagnostics plus source lines into a
// deterministic text report. Each diagnostic gets a clipped context window,
// overlapping and adjacent windows merge into contiguous blocks, and the
// blocks render under per-file headers with inline annotations. Every
// render is a self-contained call over an already-collected snapshot; the
// package keeps no state between calls and is safe to invoke from
// concurrent renders.
package report

import (
	"errors"
	"strings"

	"aidiag/logger"
	"aidiag/types"
)

var (
	// ErrSourceUnavailable means a file's lines could not be read, for
	// example because the buffer was wiped between collection and render.
	// Recovery is local: the affected diagnostic is dropped.
	ErrSourceUnavailable = errors.New("source lines unavailable")

	// ErrLengthMismatch means parallel pipeline inputs went out of sync.
	// That is a bug in the caller, not bad data, and aborts the render.
	ErrLengthMismatch = errors.New("parallel inputs differ in length")
)

// LineSource gives the pipeline read access to file content as it existed
// when the diagnostics were collected.
type LineSource interface {
	// LineCount returns the number of lines in file.
	LineCount(file string) (int, error)
	// Lines returns the inclusive 0-indexed line range [start, end].
	Lines(file string, start, end int) ([]types.SourceLine, error)
}

// MinLineLength is the smallest usable truncation limit; configured
// values between 1 and 9 are raised to it.
const MinLineLength = 10

// DefaultFileHeaderFormat introduces each file section.
const DefaultFileHeaderFormat = "File: %s"

// Config controls context extraction and rendering. The zero value renders
// bare diagnostic lines with no surrounding context; DefaultConfig returns
// what the plugin ships with.
type Config struct {
	// BeforeLines and AfterLines are how many context lines to pull in
	// around each diagnostic's range. Negative values act as 0.
	BeforeLines int
	AfterLines  int
	// MaxLineLength caps rendered content width in display columns.
	// 0 disables truncation.
	MaxLineLength int
	// ShowLineNumbers prefixes content with 1-based line numbers.
	ShowLineNumbers bool
	// FileHeaderFormat must contain exactly one %s, which receives the
	// filename. Anything else falls back to DefaultFileHeaderFormat.
	FileHeaderFormat string
	// SanitizeFilenames strips CR/LF from filenames before they reach
	// the header.
	SanitizeFilenames bool
}

// DefaultConfig returns the stock rendering configuration.
func DefaultConfig() Config {
	return Config{
		BeforeLines:       2,
		AfterLines:        2,
		MaxLineLength:     120,
		ShowLineNumbers:   false,
		FileHeaderFormat:  DefaultFileHeaderFormat,
		SanitizeFilenames: true,
	}
}

// sanitized pulls out-of-range values back to safe ones. Applied once at
// every public entry point so the pipeline can trust the values.
func (c Config) sanitized() Config {
	if c.BeforeLines < 0 {
		c.BeforeLines = 0
	}
	if c.AfterLines < 0 {
		c.AfterLines = 0
	}
	if c.MaxLineLength < 0 {
		c.MaxLineLength = 0
	}
	if c.MaxLineLength > 0 && c.MaxLineLength < MinLineLength {
		c.MaxLineLength = MinLineLength
	}
	if strings.Count(c.FileHeaderFormat, "%s") != 1 {
		c.FileHeaderFormat = DefaultFileHeaderFormat
	}
	return c
}

// RenderAll renders the full report for a set of files. Unreadable files
// and diagnostics whose context cannot be fetched are dropped and the rest
// still renders; output is byte-identical across calls for the same input,
// regardless of map iteration order. Zero renderable diagnostics yield
// EmptyReport. The only error is ErrLengthMismatch, a broken invariant in
// this package's own bookkeeping or a misassembled manual pipeline.
func RenderAll(files map[string][]types.Diagnostic, src LineSource, cfg Config) (string, error) {
	defer logger.Trace("report.RenderAll")()
	cfg = cfg.sanitized()

	var (
		filenames []string
		contexts  []DiagnosticContext
	)
	for name, diags := range files {
		for _, dc := range extractFileContexts(name, diags, src, cfg) {
			filenames = append(filenames, name)
			contexts = append(contexts, dc)
		}
	}

	groups, err := GroupByFile(filenames, contexts)
	if err != nil {
		return "", err
	}
	renders := make(map[string]string, len(groups))
	for name, fd := range groups {
		renders[name] = RenderFile(name, MergeBlocks(fd), cfg)
	}
	return Assemble(renders), nil
}

// RenderOneFile renders a single file's section. An unreadable file, or
// one where every diagnostic dropped, yields "" (the EmptyReport sentinel
// belongs to whole-report assembly, not to single sections).
func RenderOneFile(filename string, diags []types.Diagnostic, src LineSource, cfg Config) string {
	cfg = cfg.sanitized()
	contexts := extractFileContexts(filename, diags, src, cfg)
	if len(contexts) == 0 {
		return ""
	}
	fd := &FileDiagnostics{Filename: filename, Contexts: contexts}
	return RenderFile(filename, MergeBlocks(fd), cfg)
}

// extractFileContexts resolves every diagnostic of one file into a context,
// dropping the ones whose lines cannot be read. A file whose line count is
// unavailable contributes nothing.
func extractFileContexts(name string, diags []types.Diagnostic, src LineSource, cfg Config) []DiagnosticContext {
	if len(diags) == 0 {
		return nil
	}
	lineCount, err := src.LineCount(name)
	if err != nil {
		logger.Debug("report: skipping file %q: %v", name, err)
		return nil
	}
	fetch := func(start, end int) ([]types.SourceLine, error) {
		return src.Lines(name, start, end)
	}
	out := make([]DiagnosticContext, 0, len(diags))
	for _, d := range diags {
		if _, clamped := NormalizeRange(d); clamped {
			logger.Debug("report: clamping inverted range [%d, %d] in %q",
				d.Range.Start, d.Range.End, name)
		}
		dc, err := ExtractContext(d, lineCount, cfg.BeforeLines, cfg.AfterLines, fetch)
		if err != nil {
			logger.Debug("report: dropping diagnostic in %q: %v", name, err)
			continue
		}
		out = append(out, dc)
	}
	return out
}
