package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends audit entries to a plain-text trail file, one line per
// entry. The parent directory is created on first write.
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the trail file location.
func (s *FileSink) Path() string { return s.path }

// Write appends one entry. Safe for concurrent use.
func (s *FileSink) Write(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating trail dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening trail file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, e.Line()); err != nil {
		return fmt.Errorf("writing trail line: %w", err)
	}
	return nil
}
