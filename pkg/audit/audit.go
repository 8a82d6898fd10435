// Package audit keeps the worker's append-only log of response lines.
package audit

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// FileMode is the permission of a newly created log file.
const FileMode os.FileMode = 0o644

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("audit: log closed")

// File appends every recorded line, byte for byte, to a file. Earlier
// content is never truncated.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, FileMode)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	return &File{path: path, f: f}, nil
}

// Path returns the file path.
func (l *File) Path() string {
	return l.path
}

// Record appends line exactly as given, in a single write.
func (l *File) Record(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return ErrClosed
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("audit: write %s: %w", l.path, err)
	}
	return nil
}

// Close closes the file. It is idempotent.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
