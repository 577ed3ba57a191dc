package types

import "strings"

// Severity mirrors vim.diagnostic.severity numbering: smaller is more severe.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
	SeverityHint    Severity = 4
)

// String returns the display name used in report annotations. Values outside
// the vim.diagnostic range render as "Unknown" rather than failing.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInfo:
		return "Info"
	case SeverityHint:
		return "Hint"
	default:
		return "Unknown"
	}
}

// ParseSeverity maps a config string to a Severity threshold. Unrecognized
// values (including "") fall back to SeverityHint, which keeps everything.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info", "information":
		return SeverityInfo
	default:
		return SeverityHint
	}
}

// Range is a span of source lines, 0-indexed, inclusive on both ends.
type Range struct {
	Start int
	End   int
}

// Diagnostic is one host diagnostic reduced to what the report pipeline needs.
// Diagnostics are plain values; two are the same iff all fields are equal.
type Diagnostic struct {
	Severity Severity
	Message  string
	Range    Range
}

// SourceLine is one line of buffer content tagged with its line number.
type SourceLine struct {
	Number  int // 0-indexed
	Content string
}
