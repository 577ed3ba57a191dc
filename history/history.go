// Package history archives rendered reports on disk so earlier reports
// stay recallable after the diagnostics that produced them are fixed.
// Archives are brotli-compressed text files, pruned oldest first.
package history

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"aidiag/logger"
)

const (
	filePrefix = "report-"
	fileSuffix = ".txt.br"

	// Quality 4 favors speed; reports are small and archived often.
	compressionQuality = 4
)

// Store keeps the newest reports under dir, up to max entries. A max of
// zero or less disables archiving entirely.
type Store struct {
	dir string
	max int
	log *logger.Scope
}

func NewStore(dir string, max int) (*Store, error) {
	if max > 0 {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}
	return &Store{dir: dir, max: max, log: logger.Scoped("history")}, nil
}

// Append archives one report and prunes entries beyond the limit.
// Archive names embed a nanosecond timestamp, so lexicographic order is
// chronological order.
func (s *Store) Append(report string) error {
	if s.max <= 0 {
		return nil
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, compressionQuality)
	if _, err := w.Write([]byte(report)); err != nil {
		return fmt.Errorf("compressing report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compressing report: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", filePrefix, time.Now().UnixNano(), fileSuffix)
	if err := os.WriteFile(filepath.Join(s.dir, name), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	s.log.Debug("archived %s (%d -> %d bytes)", name, len(report), buf.Len())
	return s.prune()
}

// Load returns an archived report by recency: offset 0 is the most
// recent entry, 1 the one before it, and so on.
func (s *Store) Load(offset int) (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if offset < 0 || offset >= len(names) {
		return "", fmt.Errorf("history entry %d not found (%d archived)", offset, len(names))
	}
	name := names[len(names)-1-offset]

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("reading archive: %w", err)
	}
	report, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return "", fmt.Errorf("decompressing %s: %w", name, err)
	}
	return string(report), nil
}

// List returns archive file names sorted oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) prune() error {
	names, err := s.List()
	if err != nil {
		return err
	}
	for len(names) > s.max {
		victim := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(s.dir, victim)); err != nil {
			s.log.Warn("could not prune %s: %v", victim, err)
		}
	}
	return nil
}
