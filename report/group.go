package report

import "fmt"

// FileDiagnostics collects every extracted context belonging to one file,
// in the order the diagnostics were supplied.
type FileDiagnostics struct {
	Filename string
	Contexts []DiagnosticContext
}

// GroupByFile partitions parallel slices of filenames and contexts into
// per-file buckets. Pure partitioning: no sorting, no merging. The slices
// must be the same length; a mismatch means the caller broke the pipeline
// invariant and the whole render aborts with ErrLengthMismatch.
func GroupByFile(filenames []string, contexts []DiagnosticContext) (map[string]*FileDiagnostics, error) {
	if len(filenames) != len(contexts) {
		return nil, fmt.Errorf("%w: %d filenames, %d contexts",
			ErrLengthMismatch, len(filenames), len(contexts))
	}
	groups := make(map[string]*FileDiagnostics)
	for i, name := range filenames {
		g, ok := groups[name]
		if !ok {
			g = &FileDiagnostics{Filename: name}
			groups[name] = g
		}
		g.Contexts = append(g.Contexts, contexts[i])
	}
	return groups, nil
}
