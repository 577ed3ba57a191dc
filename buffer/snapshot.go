package buffer

import (
	"fmt"

	"aidiag/report"
	"aidiag/types"
)

// Snapshot is one buffer's full content at collection time.
type Snapshot struct {
	Filename string
	Lines    []string
}

// SnapshotSet serves source lines for every file captured during a
// collection pass. It implements report.LineSource; files that were not
// captured, or reads outside a captured file's bounds, report
// report.ErrSourceUnavailable.
type SnapshotSet struct {
	files map[string]*Snapshot
}

func NewSnapshotSet() *SnapshotSet {
	return &SnapshotSet{files: make(map[string]*Snapshot)}
}

// Add registers a snapshot under its filename. The first snapshot for a
// name wins; duplicates happen when two buffers visit the same file.
func (s *SnapshotSet) Add(snap *Snapshot) {
	if _, ok := s.files[snap.Filename]; ok {
		return
	}
	s.files[snap.Filename] = snap
}

func (s *SnapshotSet) LineCount(file string) (int, error) {
	snap, ok := s.files[file]
	if !ok {
		return 0, fmt.Errorf("%w: %q", report.ErrSourceUnavailable, file)
	}
	return len(snap.Lines), nil
}

func (s *SnapshotSet) Lines(file string, start, end int) ([]types.SourceLine, error) {
	snap, ok := s.files[file]
	if !ok {
		return nil, fmt.Errorf("%w: %q", report.ErrSourceUnavailable, file)
	}
	if start < 0 || start > end || end >= len(snap.Lines) {
		return nil, fmt.Errorf("%w: %q lines [%d, %d]", report.ErrSourceUnavailable, file, start, end)
	}
	out := make([]types.SourceLine, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, types.SourceLine{Number: n, Content: snap.Lines[n]})
	}
	return out, nil
}
