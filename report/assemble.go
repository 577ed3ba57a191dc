package report

import (
	"sort"
	"strings"
)

// EmptyReport is the report produced when there is nothing to show. It is
// deliberately a non-empty sentinel: callers can tell "rendered, clean"
// apart from "never rendered".
const EmptyReport = "No diagnostics found."

// Assemble concatenates per-file renders in byte-wise ascending filename
// order. This is the single ordering rule for the whole report, so output
// is reproducible no matter how the inputs were iterated. Files that
// rendered to "" (every diagnostic dropped) are skipped; if nothing
// remains the result is EmptyReport.
func Assemble(renders map[string]string) string {
	names := make([]string, 0, len(renders))
	for name, text := range renders {
		if text == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return EmptyReport
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(renders[name])
	}
	return b.String()
}
