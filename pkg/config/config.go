package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Tacks  LogSettings `yaml:"tacks"`
	Trace  bool        `yaml:"trace"` // per-phase analysis logs at DEBUG
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"` // runs older than this are pruned, 0 keeps all
}

// AnalysisConfig holds the tack analysis heuristics.
type AnalysisConfig struct {
	WindowBefore     Duration `yaml:"window_before"`
	WindowAfter      Duration `yaml:"window_after"`
	MinSpacing       Duration `yaml:"min_spacing"`
	ROTThreshold     float64  `yaml:"rot_threshold"`
	StartLookback    int      `yaml:"start_lookback"`
	DefaultStart     int      `yaml:"default_start"`
	EntryFrom        Duration `yaml:"entry_from"`
	EntryTo          Duration `yaml:"entry_to"`
	EndSearch        int      `yaml:"end_search"`
	RecoveryOffset   int      `yaml:"recovery_offset"`
	RecoveryFallback int      `yaml:"recovery_fallback"`
	RecoverySamples  int      `yaml:"recovery_samples"`
	DownspeedRatio   float64  `yaml:"downspeed_ratio"`
	Workers          int      `yaml:"workers"`
}

// ClassifierConfig holds the maneuver classifier settings.
type ClassifierConfig struct {
	PreStart Duration `yaml:"pre_start"`
}

// InputConfig holds settings for reading telemetry logs.
type InputConfig struct {
	Format string   `yaml:"format"` // "auto", "csv", "jsonl"
	Derive bool     `yaml:"derive"` // compute rot, tws, twa and vmg from raw channels
	Watch  []string `yaml:"watch"`  // directories polled for new logs
	Poll   Duration `yaml:"poll"`   // watch poll interval
	Settle Duration `yaml:"settle"` // a log must be unchanged this long before it is read
}

// OutputConfig holds settings for writing results.
type OutputConfig struct {
	JSON    string `yaml:"json"`    // "-" for stdout
	GeoJSON string `yaml:"geojson"` // empty disables
	Indent  bool   `yaml:"indent"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/tackanalyzer.log",
				Level: "INFO",
			},
			Tacks: LogSettings{
				Path:  "./logs/tacks.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Enabled:   false,
			Path:      "./data/tacks.db",
			Retention: 0,
		},
		Analysis: AnalysisConfig{
			WindowBefore:     Duration(20 * time.Second),
			WindowAfter:      Duration(120 * time.Second),
			MinSpacing:       Duration(45 * time.Second),
			ROTThreshold:     2.5,
			StartLookback:    3,
			DefaultStart:     15,
			EntryFrom:        Duration(6 * time.Second),
			EntryTo:          Duration(2 * time.Second),
			EndSearch:        12,
			RecoveryOffset:   5,
			RecoveryFallback: 30,
			RecoverySamples:  6,
			DownspeedRatio:   0.9,
			Workers:          1,
		},
		Classifier: ClassifierConfig{
			PreStart: Duration(300 * time.Second),
		},
		Input: InputConfig{
			Format: "auto",
			Derive: false,
			Watch:  []string{},
			Poll:   Duration(10 * time.Second),
			Settle: Duration(5 * time.Second),
		},
		Output: OutputConfig{
			JSON:    "-",
			GeoJSON: "",
			Indent:  true,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Input.Format {
	case "auto", "csv", "jsonl":
	default:
		return fmt.Errorf("invalid input format '%s': must be auto, csv or jsonl", c.Input.Format)
	}
	if c.Analysis.DownspeedRatio < 0 || c.Analysis.DownspeedRatio > 1 {
		return fmt.Errorf("invalid downspeed_ratio %v: must be within [0, 1]", c.Analysis.DownspeedRatio)
	}
	if len(c.Input.Watch) > 0 && c.Input.Poll <= 0 {
		return fmt.Errorf("invalid poll interval %v: must be positive when watching", c.Input.Poll.Std())
	}
	if c.DB.Retention < 0 {
		return fmt.Errorf("invalid db retention %v: must not be negative", c.DB.Retention.Std())
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must not be negative", c.Analysis.Workers)
	}
	return nil
}

var windowsEnvVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	if p == "" || p == "-" {
		return p
	}
	p = windowsEnvVar.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

func (c *Config) expandPaths() {
	c.Log.Server.Path = expandPath(c.Log.Server.Path)
	c.Log.Tacks.Path = expandPath(c.Log.Tacks.Path)
	c.DB.Path = expandPath(c.DB.Path)
	for i, w := range c.Input.Watch {
		c.Input.Watch[i] = expandPath(w)
	}
	c.Output.JSON = expandPath(c.Output.JSON)
	c.Output.GeoJSON = expandPath(c.Output.GeoJSON)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Tack Analyzer Configuration
# ---------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reFormat := regexp.MustCompile(`(?m)^(\s+)format:`)
	data = reFormat.ReplaceAll(data, []byte("${1}# Options: auto, csv, jsonl\n${1}format:"))

	reJSON := regexp.MustCompile(`(?m)^(\s+)json:`)
	data = reJSON.ReplaceAll(data, []byte("${1}# Use - for stdout\n${1}json:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
