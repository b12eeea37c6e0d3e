// Package watcher polls directories for finished telemetry logs.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultExtensions are the log suffixes the watcher reports.
var DefaultExtensions = []string{".csv", ".jsonl", ".ndjson", ".csv.gz", ".jsonl.gz", ".ndjson.gz"}

// Service monitors multiple directories for new log files.
type Service struct {
	paths   []string
	exts    []string
	settle  time.Duration
	started time.Time
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewService creates a monitor for paths. Files are reported once they have
// not been modified for settle, so logs still being written are skipped.
// Only files modified after the service started are reported.
func NewService(paths []string, settle time.Duration) *Service {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Warn("Watcher: Directory does not exist", "path", path)
		}
	}

	return &Service{
		paths:   paths,
		exts:    DefaultExtensions,
		settle:  settle,
		started: time.Now(),
		now:     time.Now,
		seen:    make(map[string]time.Time),
	}
}

func (s *Service) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range s.exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// CheckNew returns the settled log files created or rewritten since the
// last check across all monitored paths, oldest first.
func (s *Service) CheckNew() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	type found struct {
		path    string
		modTime time.Time
	}
	var files []found
	now := s.now()

	for _, dir := range s.paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !s.matches(entry.Name()) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			modTime := info.ModTime()
			if !modTime.After(s.started) || now.Sub(modTime) < s.settle {
				continue
			}

			full := filepath.Join(dir, entry.Name())
			if last, ok := s.seen[full]; ok && !modTime.After(last) {
				continue
			}
			s.seen[full] = modTime
			files = append(files, found{full, modTime})
		}
	}

	slices.SortFunc(files, func(a, b found) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
		slog.Info("Watcher: New log detected", "file", f.path)
	}
	return out
}

// Run polls every interval and calls fn for each new file until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration, fn func(ctx context.Context, path string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, path := range s.CheckNew() {
			if ctx.Err() != nil {
				return
			}
			fn(ctx, path)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
