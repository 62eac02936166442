// Package seed writes the solver-produced blobs of spec.md §6's outbound
// filesystem contract: one file per solve, named by an increasing
// counter, under the session's output directory.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists seed blobs under <output_dir>/<session_id>/seeds/<n>,
// opening and closing each file per write (spec.md §5: "Seed files:
// opened per solve, closed immediately").
type Writer struct {
	dir     string
	counter int
}

// New builds a Writer rooted at outputDir/sessionID/seeds, creating the
// directory if it does not exist.
func New(outputDir, sessionID string) (*Writer, error) {
	dir := filepath.Join(outputDir, sessionID, "seeds")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("seed: create seed dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write persists blob as the next seed file and returns its path. A
// write failure is an IO fatal condition per spec.md §7 ("the fuzzing
// loop depends on durability"): the caller is expected to treat a
// non-nil error as terminal.
func (w *Writer) Write(blob []byte) (path string, err error) {
	path = filepath.Join(w.dir, fmt.Sprintf("%d", w.counter))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(blob); err != nil {
		return "", fmt.Errorf("seed: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("seed: sync %s: %w", path, err)
	}
	w.counter++
	return path, nil
}

// Counter reports the number of seeds written so far (the next seed's
// file name).
func (w *Writer) Counter() int { return w.counter }
