package replay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"forecast-combiner/internal/storage"
	"forecast-combiner/internal/xcsf"
)

// SavePerformance stores the evaluator matrix of every experiment under a
// new run id and returns it. Results without evaluator telemetry store
// nothing and return an empty id.
func SavePerformance(store *storage.Store, results *Results) (string, error) {
	if len(results.Matrices) == 0 {
		return "", nil
	}

	runID := storage.NewRunID()
	now := time.Now()
	for exp, rows := range results.Matrices {
		record := storage.PerformanceRecord{
			RunID:      runID,
			Experiment: exp,
			Series:     results.Series,
			Window:     results.Window,
			Header:     xcsf.Header[1:],
			Rows:       rows,
			CreatedAt:  now,
		}
		if err := store.StorePerformance(record); err != nil {
			return "", fmt.Errorf("failed to store experiment %d: %w", exp, err)
		}
	}

	log.Info().
		Str("run_id", runID).
		Int("experiments", len(results.Matrices)).
		Msg("Performance stored")
	return runID, nil
}
