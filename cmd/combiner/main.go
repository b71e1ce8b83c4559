package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"forecast-combiner/internal/cfg"
	"forecast-combiner/internal/combine"
	"forecast-combiner/internal/metrics"
	"forecast-combiner/internal/server"
	"forecast-combiner/internal/source"
	"forecast-combiner/internal/storage"
	"forecast-combiner/internal/stream"
	"forecast-combiner/internal/xcsf"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	zerolog.SetGlobalLevel(c.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	hub := stream.NewHub(c.StreamEvery,
		stream.WithClientsGauge(mw.StreamClients()),
		stream.WithDroppedCounter(mw.StreamDropped()),
	)

	module, err := initializeModule(c, mw, hub, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create combination strategy")
	}

	opts := []server.Option{server.WithMetrics(m), server.WithHub(hub)}
	if store != nil {
		opts = append(opts, server.WithStore(store, c.Series))
	}
	srv := server.New(module, c.MetricsPort, opts...)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("combiner server failed")
			cancel()
		}
	}()

	var wg sync.WaitGroup
	if c.Polling() {
		startPoller(ctx, &wg, c, srv, store, mw)
	}

	waitForShutdown(ctx, cancel, &wg)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown combiner server")
	}

	if c.SaveOnExit && store != nil {
		savePopulation(c, module, store)
	}
}

// initializeStorage initializes storage if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if !c.Persistent() {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// initializeModule selects the strategy, warm-starting a learner from the
// stored population when configured.
func initializeModule(c cfg.Settings, mw *metrics.MetricsWrapper, hub *stream.Hub, store *storage.Store) (*combine.Module, error) {
	opts := []xcsf.Option{xcsf.WithMetrics(mw), xcsf.WithObserver(hub)}

	if c.WarmStart && store != nil {
		snapshot, err := store.LoadPopulation(c.PopulationName)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Info().Str("population", c.PopulationName).Msg("No stored population, starting empty")
		case err != nil:
			log.Warn().Err(err).Str("population", c.PopulationName).Msg("Stored population unusable, starting empty")
		default:
			opts = append(opts, xcsf.WithPopulation(snapshot))
		}
	}

	strategy, err := combine.New(c.Strategy, c.XCSF, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("strategy", strategy.Name()).
		Int("forecasts", c.NumForecasts).
		Str("series", c.Series).
		Msg("Combination module ready")
	return combine.NewModule(strategy, c.NumForecasts), nil
}

// startPoller pulls forecasts and true values from the remote engine. It
// resumes after the last step recorded in the store.
func startPoller(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, srv *server.Server, store *storage.Store, mw *metrics.MetricsWrapper) {
	client := source.NewClient(c.EngineURL, c.RESTTimeout,
		source.WithRequestCounters(mw.ForecastRequests(), mw.ForecastFailures()),
	)

	step := 0
	if store != nil {
		step = resumeStep(store, c.Series)
	}
	poller := server.NewPoller(srv, client, c.Series, step, c.PollInterval)

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
}

// resumeStep returns the last recorded step if it still waits for its true
// value, otherwise the step after it.
func resumeStep(store *storage.Store, series string) int {
	last, ok, err := store.LastStep(series)
	if err != nil {
		log.Warn().Err(err).Str("series", series).Msg("failed to read last step, starting at 0")
		return 0
	}
	if !ok {
		return 0
	}

	observations, err := store.GetObservations(series, last, last)
	if err == nil && len(observations) == 1 && !observations[0].HasActual() {
		return last
	}
	return last + 1
}

func savePopulation(c cfg.Settings, module *combine.Module, store *storage.Store) {
	x, ok := module.Strategy().(*combine.XCSF)
	if !ok {
		return
	}
	snapshot := x.Driver().PopulationSnapshot()
	if err := store.SavePopulation(c.PopulationName, snapshot); err != nil {
		log.Error().Err(err).Msg("failed to save population")
		return
	}
	log.Info().
		Str("population", c.PopulationName).
		Int("classifiers", len(snapshot.Classifiers)).
		Msg("Population saved")
}

// waitForShutdown blocks until a signal arrives or ctx ends, then waits for
// the background goroutines.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
