package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/config"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	tackLog := filepath.Join(tempDir, "tacks.log")

	// A previous run's log gets rotated
	if err := os.WriteFile(serverLog, []byte("old run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
		Tacks: config.LogSettings{
			Path:  tackLog,
			Level: "INFO",
		},
	}

	prev := slog.Default()
	defer slog.SetDefault(prev)

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()
	defer SetTackLogPath("")

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(serverLog + ".old"); os.IsNotExist(err) {
		t.Error("Previous server log was not rotated")
	}

	slog.Debug("debug line")
	data, err := os.ReadFile(serverLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "debug line") {
		t.Error("Debug line missing from server log")
	}

	loss := 42.0
	LogTack(&model.Tack{
		Time:  time.Date(2014, 6, 1, 12, 0, 0, 0, time.UTC),
		Board: model.BoardUpwindPort,
		Loss:  &loss,
		Timing: model.TimingInstants{
			Start:     time.Date(2014, 6, 1, 11, 59, 55, 0, time.UTC),
			Recovered: time.Date(2014, 6, 1, 12, 0, 25, 0, time.UTC),
		},
	})

	data, err = os.ReadFile(tackLog)
	if err != nil {
		t.Fatalf("Tack log not written: %v", err)
	}
	want := "[2014-06-01 12:00:00] [U-P] loss=42.0ft 30s\n"
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, data)
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	var console bytes.Buffer

	h, file, err := setupHandler(path, "DEBUG", &console)
	if err != nil {
		t.Fatalf("setupHandler failed: %v", err)
	}
	defer file.Close()

	logger := slog.New(h).With("run", "r1")
	logger.Debug("file only")
	logger.Info("both")

	if strings.Contains(console.String(), "file only") {
		t.Error("Console should not receive DEBUG records")
	}
	if !strings.Contains(console.String(), "both") || !strings.Contains(console.String(), "run=r1") {
		t.Errorf("Console missing INFO record with attrs: %q", console.String())
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "file only") {
		t.Error("File should receive DEBUG records")
	}
}

func TestFormatTackNotes(t *testing.T) {
	line := FormatTack(&model.Tack{
		Board: model.BoardUpwindStarboard,
		Notes: []string{"never found recovery", "started tack downspeed"},
	})
	if !strings.Contains(line, "loss=n/a") {
		t.Errorf("Expected undefined loss, got %q", line)
	}
	if !strings.HasSuffix(line, " - never found recovery; started tack downspeed") {
		t.Errorf("Expected notes suffix, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	defer func() { EnableTrace = false }()

	EnableTrace = false
	Trace(logger, "hidden")
	if buf.Len() != 0 {
		t.Errorf("Trace logged while disabled: %q", buf.String())
	}

	EnableTrace = true
	Trace(logger, "shown", "center", 4)
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "center=4") {
		t.Errorf("Trace missing record: %q", buf.String())
	}
}
