// Package logsink provides an append-only log file that is safe to share
// between goroutines.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is an append-only log file. Every Write is applied whole, so a caller
// that writes one line per call never sees its lines interleaved with another
// goroutine's.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the file's location.
func (s *File) Path() string {
	return s.path
}

// Write appends p to the file.
func (s *File) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	return s.f.Write(p)
}

// Close closes the file. Writes after Close fail with os.ErrClosed.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
