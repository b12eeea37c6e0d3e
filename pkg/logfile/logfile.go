// Package logfile loads telemetry logs into time-ordered samples.
package logfile

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
)

// Supported formats.
const (
	FormatAuto  = "auto"
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// ErrUnknownFormat is returned when the format cannot be determined.
var ErrUnknownFormat = errors.New("unknown log format")

// DetectFormat picks a format from the file extension, ignoring a trailing .gz.
func DetectFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(strings.ToLower(path), ".gz")))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Load reads the log at path. format is one of auto, csv or jsonl.
// Files ending in .gz are decompressed.
func Load(path, format string) ([]model.Sample, error) {
	if format == "" || format == FormatAuto {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip log: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	samples, err := Read(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("Loaded log", "path", path, "format", format, "samples", len(samples))
	return samples, nil
}

// Read parses a csv or jsonl stream. The result is stably sorted by time.
func Read(r io.Reader, format string) ([]model.Sample, error) {
	var (
		samples []model.Sample
		err     error
	)
	switch format {
	case FormatCSV:
		samples, err = ReadCSV(r)
	case FormatJSONL:
		samples, err = ReadJSONL(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(samples, func(a, b model.Sample) int {
		return a.T.Compare(b.T)
	})
	return samples, nil
}

// ReadCSV parses a CSV log with a header row. The "t" column is required;
// other columns named after sample fields are read, the rest ignored.
// Blank and NaN cells leave the field absent.
func ReadCSV(r io.Reader) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return []model.Sample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Handle potential UTF-8 BOM at start of file
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\xef\xbb\xbf")
	}

	tIdx := -1
	idxMap := make(map[int]model.Field)
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "t" {
			tIdx = i
			continue
		}
		if f, ok := model.ParseField(h); ok {
			idxMap[i] = f
		}
	}
	if tIdx < 0 {
		return nil, errors.New(`missing "t" column`)
	}

	samples := []model.Sample{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if tIdx >= len(record) || strings.TrimSpace(record[tIdx]) == "" {
			return nil, fmt.Errorf("line %d: missing t", line)
		}
		ts, err := model.ParseTime(strings.TrimSpace(record[tIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid t: %w", line, err)
		}

		s := model.NewSample(ts)
		for i, f := range idxMap {
			if i >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, f, cell)
			}
			if math.IsNaN(v) {
				continue
			}
			s = s.With(f, v)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// ReadJSONL parses one JSON sample object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]model.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	samples := []model.Sample{}
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if line == 1 {
			b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
		}

		var s model.Sample
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl read error: %w", err)
	}
	return samples, nil
}

// WriteJSONL writes samples one per line, in the format ReadJSONL accepts.
func WriteJSONL(w io.Writer, samples []model.Sample) error {
	enc := json.NewEncoder(w)
	for i := range samples {
		if err := enc.Encode(samples[i]); err != nil {
			return err
		}
	}
	return nil
}
