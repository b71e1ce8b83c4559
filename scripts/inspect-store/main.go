package main

import (
	"flag"
	"fmt"

	"forecast-combiner/internal/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		series   = flag.String("series", "default", "Series to inspect")
		recent   = flag.Int("recent", 10, "Number of recent steps to print")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	fmt.Println("\nStored populations:")
	names, err := store.Populations()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list populations")
	}
	for _, name := range names {
		snapshot, err := store.LoadPopulation(name)
		if err != nil {
			fmt.Printf("  %s: unreadable (%v)\n", name, err)
			continue
		}
		numerosity := 0
		for _, cl := range snapshot.Classifiers {
			numerosity += cl.Numerosity
		}
		fmt.Printf("  %s: %d classifiers, numerosity %d, input dimension %d\n",
			name, len(snapshot.Classifiers), numerosity, snapshot.InputDim)
	}

	fmt.Println("\nStored runs:")
	runs, err := store.Runs()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	for _, runID := range runs {
		records, err := store.GetPerformance(runID)
		if err != nil || len(records) == 0 {
			continue
		}
		fmt.Printf("  %s: series %s, %d experiments, window %d, %s\n",
			runID, records[0].Series, len(records), records[0].Window,
			records[0].CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("\nSeries %s:\n", *series)
	last, ok, err := store.LastStep(*series)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read last step")
	}
	if !ok {
		fmt.Println("  no observations")
		return
	}

	observations, err := store.GetObservations(*series, max(0, last-*recent+1), last)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read observations")
	}
	fmt.Printf("  last step: %d\n", last)
	for _, o := range observations {
		actual := "pending"
		if o.HasActual() {
			actual = fmt.Sprintf("%.4f", *o.Actual)
		}
		fmt.Printf("  step %d: forecasts %v, actual %s\n", o.Step, o.Forecasts, actual)
	}
}
