package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/HomegrownMarine/sailing-calculations/pkg/config"
	"github.com/HomegrownMarine/sailing-calculations/pkg/db"
	"github.com/HomegrownMarine/sailing-calculations/pkg/geo"
	"github.com/HomegrownMarine/sailing-calculations/pkg/logfile"
	"github.com/HomegrownMarine/sailing-calculations/pkg/logging"
	"github.com/HomegrownMarine/sailing-calculations/pkg/maneuver"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
	"github.com/HomegrownMarine/sailing-calculations/pkg/store"
	"github.com/HomegrownMarine/sailing-calculations/pkg/stream"
	"github.com/HomegrownMarine/sailing-calculations/pkg/tack"
	"github.com/HomegrownMarine/sailing-calculations/pkg/tracker"
	"github.com/HomegrownMarine/sailing-calculations/pkg/version"
	"github.com/HomegrownMarine/sailing-calculations/pkg/watcher"
)

const defaultConfigPath = "configs/tackanalyzer.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	jsonOut    = flag.String("o", "", "Override output.json from the config (- for stdout)")
	geojsonOut = flag.String("geojson", "", "Write a GeoJSON layer of the tacks to this file")
	watchDir   = flag.String("watch", "", "Poll this directory for new logs until interrupted")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] LOG...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath: *configPath,
		inputs:     flag.Args(),
		json:       *jsonOut,
		geojson:    *geojsonOut,
	}
	if *watchDir != "" {
		opts.watch = []string{*watchDir}
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line settings that override the config file.
type options struct {
	configPath string
	inputs     []string
	json       string
	geojson    string
	watch      []string
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	appCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.json != "" {
		appCfg.Output.JSON = opts.json
	}
	if opts.geojson != "" {
		appCfg.Output.GeoJSON = opts.geojson
	}
	if len(opts.watch) > 0 {
		appCfg.Input.Watch = opts.watch
	}
	if err := appCfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if len(opts.inputs) == 0 && len(appCfg.Input.Watch) == 0 {
		return errors.New("no logs given and no directory to watch")
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Tack analyzer started", "version", version.Version, "inputs", len(opts.inputs))

	var st store.Store
	if appCfg.DB.Enabled {
		dbConn, s, err := initDB(appCfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		st = s
	}

	tr := tracker.New()
	analyzer := tack.NewAnalyzer(analysisConfig(&appCfg.Analysis), tack.WithTracker(tr))
	classifier := maneuver.NewClassifier(appCfg.Classifier.PreStart.Std())

	if len(opts.inputs) > 0 {
		all := []model.Tack{}
		for _, path := range opts.inputs {
			tacks, err := analyzeFile(ctx, appCfg, path, classifier, analyzer, st)
			if err != nil {
				return err
			}
			all = append(all, tacks...)
		}

		if err := writeJSON(appCfg.Output, all, stdout); err != nil {
			return err
		}
		if appCfg.Output.GeoJSON != "" {
			if err := geo.WriteFeatureCollection(appCfg.Output.GeoJSON, geo.TackFeatures(all)); err != nil {
				return fmt.Errorf("failed to write geojson: %w", err)
			}
		}
	}

	if len(appCfg.Input.Watch) > 0 {
		watch(ctx, appCfg, classifier, analyzer, st)
	}

	for board, s := range tr.Snapshot() {
		slog.Info("Tack statistics", "board", board,
			"candidates", s.Candidates, "rejected", s.Rejected, "skipped", s.Skipped,
			"analyzed", s.Analyzed, "fallbacks", s.Fallbacks)
	}
	return nil
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if retention := appCfg.DB.Retention.Std(); retention > 0 {
		n, err := dbConn.PruneRuns(retention)
		if err != nil {
			slog.Error("Pruning old runs failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned old runs", "count", n, "retention", retention)
		}
	}

	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// analyzeFile runs the whole analysis over one log and, when st is set,
// records it as a run.
func analyzeFile(ctx context.Context, appCfg *config.Config, path string,
	classifier *maneuver.Classifier, analyzer *tack.Analyzer, st store.Store,
) ([]model.Tack, error) {
	samples, err := logfile.Load(path, appCfg.Input.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to load log: %w", err)
	}
	if appCfg.Input.Derive {
		samples = stream.Derived().Run(samples)
	}

	maneuvers := classifier.Classify(samples)
	tacks, err := analyzer.Analyze(ctx, maneuvers, samples)
	if err != nil {
		return nil, fmt.Errorf("analysis of %s interrupted: %w", path, err)
	}

	slog.Info("Analyzed log", "path", path, "samples", len(samples),
		"maneuvers", len(maneuvers), "tacks", len(tacks))
	for i := range tacks {
		logging.LogTack(&tacks[i])
	}

	if st != nil {
		if err := saveRun(ctx, st, &appCfg.Analysis, path, samples, tacks); err != nil {
			return nil, err
		}
	}
	return tacks, nil
}

func saveRun(ctx context.Context, st store.Store, analysis *config.AnalysisConfig, path string,
	samples []model.Sample, tacks []model.Tack,
) error {
	settings, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	run := &store.Run{
		Source:      path,
		SampleCount: len(samples),
		Settings:    string(settings),
	}
	if len(samples) > 0 {
		run.First = samples[0].T
		run.Last = samples[len(samples)-1].T
	}

	if err := st.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := st.SaveTacks(ctx, run.ID, tacks); err != nil {
		return fmt.Errorf("failed to save tacks: %w", err)
	}
	slog.Debug("Saved run", "id", run.ID, "tacks", len(tacks))
	return nil
}

// watch analyzes logs as they appear until ctx is done. Each log's tacks are
// written next to it as <log>.tacks.json.
func watch(ctx context.Context, appCfg *config.Config, classifier *maneuver.Classifier,
	analyzer *tack.Analyzer, st store.Store,
) {
	svc := watcher.NewService(appCfg.Input.Watch, appCfg.Input.Settle.Std())
	slog.Info("Watching for logs", "dirs", appCfg.Input.Watch, "poll", appCfg.Input.Poll.Std())

	svc.Run(ctx, appCfg.Input.Poll.Std(), func(ctx context.Context, path string) {
		tacks, err := analyzeFile(ctx, appCfg, path, classifier, analyzer, st)
		if err != nil {
			slog.Error("Failed to analyze log", "path", path, "error", err)
			return
		}
		out := appCfg.Output
		out.JSON = path + ".tacks.json"
		if err := writeJSON(out, tacks, nil); err != nil {
			slog.Error("Failed to write tacks", "path", out.JSON, "error", err)
		}
	})
}

func writeJSON(out config.OutputConfig, tacks []model.Tack, stdout io.Writer) error {
	if out.JSON == "" {
		return errors.New("no json output configured")
	}

	var data []byte
	var err error
	if out.Indent {
		data, err = json.MarshalIndent(tacks, "", "  ")
	} else {
		data, err = json.Marshal(tacks)
	}
	if err != nil {
		return fmt.Errorf("failed to encode tacks: %w", err)
	}
	data = append(data, '\n')

	if out.JSON == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out.JSON), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	return os.WriteFile(out.JSON, data, 0o644)
}

// analysisConfig maps the file settings onto the analyzer's.
func analysisConfig(a *config.AnalysisConfig) tack.Config {
	return tack.Config{
		WindowBefore:     a.WindowBefore.Std(),
		WindowAfter:      a.WindowAfter.Std(),
		MinSpacing:       a.MinSpacing.Std(),
		ROTThreshold:     a.ROTThreshold,
		StartLookback:    a.StartLookback,
		DefaultStart:     a.DefaultStart,
		EntryFrom:        a.EntryFrom.Std(),
		EntryTo:          a.EntryTo.Std(),
		EndSearch:        a.EndSearch,
		RecoveryOffset:   a.RecoveryOffset,
		RecoveryFallback: a.RecoveryFallback,
		RecoverySamples:  a.RecoverySamples,
		DownspeedRatio:   a.DownspeedRatio,
		Workers:          a.Workers,
	}
}
