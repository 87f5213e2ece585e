// Package journal appends research notes to local text files.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultFile is the file written when no name is given.
const DefaultFile = "research_output.txt"

// TimestampLayout is the entry timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Writer appends timestamped entries to files under one directory.
// Appends are serialized.
type Writer struct {
	dir         string
	defaultName string
	now         func() time.Time

	mu sync.Mutex
}

// New creates a Writer rooted at dir. Empty dir means the working
// directory; empty defaultName means DefaultFile.
func New(dir, defaultName string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if defaultName == "" {
		defaultName = DefaultFile
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	return &Writer{
		dir:         dir,
		defaultName: filepath.Base(defaultName),
		now:         time.Now,
	}, nil
}

// Format renders one entry.
func Format(ts time.Time, data string) string {
	return fmt.Sprintf("--- Research Output ---\nTimestamp: %s\n\n%s\n\n", ts.Format(TimestampLayout), data)
}

// Resolve maps a requested name to a file name inside the writer's
// directory. Directory components are dropped.
func (w *Writer) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return w.defaultName
	}
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return w.defaultName
	}
	return base
}

// Path returns the absolute-or-relative path an entry for name lands in.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, w.Resolve(name))
}

// Append writes data as a new entry and returns the file name used.
func (w *Writer) Append(name, data string) (string, error) {
	file := w.Resolve(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(w.dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("journal: open %s: %w", file, err)
	}
	if _, err := f.WriteString(Format(w.now(), data)); err != nil {
		f.Close()
		return "", fmt.Errorf("journal: write %s: %w", file, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("journal: close %s: %w", file, err)
	}
	return file, nil
}
