// ABOUTME: Destinations for export artifacts and user-facing export notices
// ABOUTME: DirSink writes files atomically; MemorySink keeps them in memory

package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives a finished artifact and returns where it went.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DirSink writes artifacts into a directory, replacing files of the same name.
type DirSink struct {
	Dir string
}

// NewDirSink creates a DirSink for dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Save writes data to Dir/name via a temp file and rename.
func (s *DirSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("setting permissions: %w", err)
	}

	path := filepath.Join(s.Dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}

// MemorySink keeps artifacts in memory.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Save stores a copy of data under name.
func (s *MemorySink) Save(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return "memory:" + name, nil
}

// Get returns the stored artifact.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Len returns the number of stored artifacts.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, message string) { f(ctx, message) }

// LogNotifier reports notices through slog.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. Pass nil logger for default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs message at warn level.
func (n *LogNotifier) Notify(ctx context.Context, message string) {
	n.logger.WarnContext(ctx, "export notice", "message", message)
}
