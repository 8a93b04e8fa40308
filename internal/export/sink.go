package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives the encoded export file.
type Sink interface {
	Create(filename string) (io.WriteCloser, error)
}

// DirSink writes export files into a directory.
type DirSink struct {
	Dir string
}

// Create creates filename inside Dir. Directory components in filename are
// discarded.
func (s DirSink) Create(filename string) (io.WriteCloser, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(filepath.Join(s.Dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	return f, nil
}

// BufferSink keeps the last export in memory.
type BufferSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	filename string
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Create resets the buffer and records filename.
func (s *BufferSink) Create(filename string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	s.filename = filename
	return nopCloser{&lockedWriter{s: s}}, nil
}

type lockedWriter struct{ s *BufferSink }

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.buf.Write(p)
}

// Bytes returns a copy of the buffered file.
func (s *BufferSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// Filename returns the name recorded by the last Create.
func (s *BufferSink) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}
