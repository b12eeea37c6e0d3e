package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/HomegrownMarine/sailing-calculations/pkg/config"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
)

// tackLogPath is the path to the per-tack summary log.
var tackLogPath string

// tackLogMu protects concurrent writes to the tack log.
var tackLogMu sync.Mutex

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	// Rotate log files at startup
	rotatePaths(cfg.Server.Path, cfg.Tacks.Path)

	SetTackLogPath(cfg.Tacks.Path)
	EnableTrace = cfg.Trace

	var closers []io.Closer

	// Server Logger (Console + File)
	handler, file, err := setupHandler(cfg.Server.Path, cfg.Server.Level, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	if file != nil {
		closers = append(closers, file)
	}
	slog.SetDefault(slog.New(handler))

	return func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupHandler returns a handler writing to the file at path and, when
// console is not nil, INFO and up to console as well.
func setupHandler(path, levelStr string, console io.Writer) (handler slog.Handler, file *os.File, err error) {
	level := ParseLevel(levelStr)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	// Append mode, truncation handled in Init
	file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(file, opts)

	if console == nil {
		return fileHandler, file, nil
	}

	// Console Handler - only INFO and up
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})

	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler}}, file, nil
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// rotatePaths renames existing log files to .old so each run starts fresh
// while the previous run is kept.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}

		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			_ = os.Remove(oldPath)
			_ = os.Rename(p, oldPath)
		}
	}
}

// SetTackLogPath configures the path for the tack log file.
func SetTackLogPath(path string) {
	tackLogMu.Lock()
	defer tackLogMu.Unlock()
	tackLogPath = path
}

// LogTack appends a one-line summary of t to the tack log file.
func LogTack(t *model.Tack) {
	tackLogMu.Lock()
	defer tackLogMu.Unlock()

	if tackLogPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(tackLogPath), 0o755); err != nil {
		slog.Error("failed to create tack log directory", "error", err)
		return
	}

	f, err := os.OpenFile(tackLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open tack log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(FormatTack(t) + "\n"); err != nil {
		slog.Error("failed to write tack log", "error", err)
	}
}

// FormatTack renders t as "[2006-01-02 15:04:05] [U-P] loss=12.3ft 18s - note; note".
func FormatTack(t *model.Tack) string {
	loss := "n/a"
	if t.Loss != nil {
		loss = fmt.Sprintf("%.1fft", *t.Loss)
	}
	line := fmt.Sprintf("[%s] [%s] loss=%s %s",
		t.Time.UTC().Format("2006-01-02 15:04:05"), t.Board, loss, t.Timing.Duration())

	if len(t.Notes) > 0 {
		line += " - " + strings.Join(t.Notes, "; ")
	}
	return line
}
