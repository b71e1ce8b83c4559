package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"forecast-combiner/internal/cfg"
	"forecast-combiner/internal/combine"
	"forecast-combiner/internal/replay"
	"forecast-combiner/internal/source"
	"forecast-combiner/internal/storage"
	"forecast-combiner/internal/xcsf"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "Recorded series: CSV file, JSON file or bolt data directory")
		dataFormat  = flag.String("format", "auto", "Data format: auto, csv, json, boltdb")
		series      = flag.String("series", "", "Series name (overrides config)")
		strategy    = flag.String("strategy", "", "Strategy: xcsf, average, median (overrides config)")
		experiments = flag.Int("experiments", 0, "Number of experiments (overrides config)")
		from        = flag.Int("from", 0, "First step to load from bolt")
		to          = flag.Int("to", 1<<31-1, "Last step to load from bolt")
		outputPath  = flag.String("output", "replay-results", "Output directory for results")
		saveRun     = flag.Bool("save-run", false, "Store the performance matrix in the bolt database at DATA_PATH")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)
	flag.Parse()

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	zerolog.SetGlobalLevel(config.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *series != "" {
		config.Series = *series
	}
	if *strategy != "" {
		config.Strategy = strings.ToLower(strings.TrimSpace(*strategy))
	}
	if *experiments > 0 {
		config.Experiments = *experiments
	}
	if *inputPath == "" {
		*inputPath = config.DataPath
	}
	if *inputPath == "" {
		log.Fatal().Msg("No input given; use -input or DATA_PATH")
	}

	fmt.Println("=== Replay Configuration ===")
	fmt.Printf("Input: %s (%s)\n", *inputPath, *dataFormat)
	fmt.Printf("Series: %s\n", config.Series)
	fmt.Printf("Strategy: %s\n", config.Strategy)
	fmt.Printf("Forecasts: %d\n", config.NumForecasts)
	fmt.Printf("Experiments: %d\n", config.Experiments)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Println("============================")

	loader := source.NewLoader()
	switch *dataFormat {
	case "csv":
		err = loader.LoadFromCSV(*inputPath, config.Series)
	case "json":
		err = loader.LoadFromJSON(*inputPath, config.Series)
	case "boltdb":
		err = loadFromBolt(loader, *inputPath, config.Series, *from, *to)
	case "auto":
		err = autoLoadData(loader, *inputPath, config.Series, *from, *to)
	default:
		log.Fatal().Str("format", *dataFormat).Msg("Unknown data format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load data")
	}

	s, err := combine.New(config.Strategy, config.XCSF)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := replay.NewEngine(combine.NewModule(s, config.NumForecasts), loader, config.Series, config.Experiments)
	if err := engine.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
	results := engine.GetResults()

	reporter := replay.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}
	reporter.PrintSummary()

	if *saveRun {
		saveRunPerformance(config, results)
	}

	log.Info().
		Str("output", *outputPath).
		Msg("Replay completed successfully")
}

func loadFromBolt(loader *source.Loader, dir, series string, from, to int) error {
	store, err := storage.New(dir)
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}
	defer store.Close()
	return loader.LoadFromBoltDB(store, series, from, to)
}

// autoLoadData picks the loader from the path: a directory is a bolt data
// directory, files are detected by extension.
func autoLoadData(loader *source.Loader, path, series string, from, to int) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return loadFromBolt(loader, path, series, from, to)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loader.LoadFromCSV(path, series)
	case ".json", ".jsonl":
		return loader.LoadFromJSON(path, series)
	default:
		return fmt.Errorf("cannot determine file format for: %s", path)
	}
}

func saveRunPerformance(config cfg.Settings, results *replay.Results) {
	if !config.Persistent() {
		log.Warn().Msg("DATA_PATH not set, run performance not stored")
		return
	}
	store, err := storage.New(config.DataPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open BoltDB")
		return
	}
	defer store.Close()

	runID, err := replay.SavePerformance(store, results)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store run performance")
		return
	}
	if runID == "" {
		log.Info().Str("strategy", results.Strategy).Msg("Strategy has no performance matrix to store")
		return
	}
	fmt.Printf("Run ID: %s (window %d, %d columns)\n", runID, results.Window, len(xcsf.Header))
}
