package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	defaultMaxSizeKB = 1024
	defaultMaxFiles  = 3
)

// FileSink is a size-rotated log file. Rotated files are gzipped.
type FileSink struct {
	path string
	r    *rotator.Rotator
}

// OpenFile creates the log directory if needed and opens a rotating log file
// at path. Non-positive limits fall back to 1MB and 3 files.
func OpenFile(path string, maxSizeKB int64, maxFiles int) (*FileSink, error) {
	if maxSizeKB <= 0 {
		maxSizeKB = defaultMaxSizeKB
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	r, err := rotator.New(path, maxSizeKB, true, maxFiles)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileSink{path: path, r: r}, nil
}

// Write implements io.Writer.
func (s *FileSink) Write(p []byte) (int, error) {
	return s.r.Write(p)
}

// Path returns the active log file path.
func (s *FileSink) Path() string {
	return s.path
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	return s.r.Close()
}

// TeeWriter returns an io.Writer that writes to both w1 and w2.
func TeeWriter(w1, w2 io.Writer) io.Writer {
	return io.MultiWriter(w1, w2)
}
