package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"forecast-combiner/internal/storage"

	"github.com/rs/zerolog/log"
)

// methods are the forecast columns written for every step.
var methods = []string{"lagged", "smoothed", "biased"}

func main() {
	var (
		output   = flag.String("output", "sample_series.csv", "CSV file to write")
		dataPath = flag.String("data", "", "Also store the series in the bolt data directory")
		series   = flag.String("series", "default", "Series name used in the bolt store")
		steps    = flag.Int("steps", 5000, "Number of steps to generate")
		seed     = flag.Uint64("seed", 1, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating sample series %s...\n", *series)
	fmt.Printf("  Steps: %d\n", *steps)
	fmt.Printf("  Output: %s\n", *output)

	observations := generateSeries(*series, *steps, rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)))

	if err := writeCSV(*output, observations); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	if *dataPath != "" {
		store, err := storage.New(*dataPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage")
		}
		defer store.Close()

		for _, o := range observations {
			if err := store.StoreObservation(o); err != nil {
				log.Fatal().Err(err).Int("step", o.Step).Msg("Failed to store observation")
			}
		}
		fmt.Printf("  Stored in: %s\n", *dataPath)
	}

	fmt.Printf("✓ Generated %d steps with %d forecast methods\n", len(observations), len(methods))
}

// generateSeries simulates a seasonal series with two regimes. The lagged
// forecast is good while the series is calm, the smoothed one while it is
// noisy, so no single method or fixed weighting is best everywhere.
func generateSeries(series string, steps int, rng *rand.Rand) []storage.Observation {
	observations := make([]storage.Observation, 0, steps)
	start := time.Now().Add(-time.Duration(steps) * time.Hour)

	prev, level := 10.0, 10.0
	for i := 0; i < steps; i++ {
		noisy := (i/500)%2 == 1
		sigma := 0.05
		if noisy {
			sigma = 0.6
		}

		actual := 10 + 2*math.Sin(2*math.Pi*float64(i)/24) + rng.NormFloat64()*sigma
		level = 0.7*level + 0.3*prev

		forecasts := []float64{
			prev,
			level,
			actual + 0.4 + rng.NormFloat64()*0.3,
		}
		// the biased method misses some steps
		if rng.Float64() < 0.02 {
			forecasts[2] = math.NaN()
		}

		value := actual
		observations = append(observations, storage.Observation{
			Series:    series,
			Step:      i,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Forecasts: forecasts,
			Actual:    &value,
		})
		prev = actual
	}
	return observations
}

func writeCSV(path string, observations []storage.Observation) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"step"}, methods...)
	header = append(header, "actual")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, o := range observations {
		record := []string{strconv.Itoa(o.Step)}
		for _, f := range o.Forecasts {
			if math.IsNaN(f) {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(f, 'f', 6, 64))
		}
		record = append(record, strconv.FormatFloat(*o.Actual, 'f', 6, 64))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}
