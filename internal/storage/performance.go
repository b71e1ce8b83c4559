package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// PerformanceRecord is the evaluator matrix of one experiment of a run.
type PerformanceRecord struct {
	RunID      string      `json:"run_id"`
	Experiment int         `json:"experiment"`
	Series     string      `json:"series"`
	Window     int         `json:"window"`
	Header     []string    `json:"header"`
	Rows       [][]float64 `json:"rows"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewRunID returns a fresh identifier grouping the experiments of one run.
func NewRunID() string {
	return uuid.NewString()
}

func performanceKey(runID string, experiment int) []byte {
	return []byte(fmt.Sprintf("%s_%06d", runID, experiment))
}

// StorePerformance stores the matrix of one experiment.
func (s *Store) StorePerformance(record PerformanceRecord) error {
	if _, err := uuid.Parse(record.RunID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", record.RunID, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(performanceBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal performance record: %w", err)
		}

		return b.Put(performanceKey(record.RunID, record.Experiment), data)
	})
}

// GetPerformance returns all experiments of a run ordered by experiment.
func (s *Store) GetPerformance(runID string) ([]PerformanceRecord, error) {
	var records []PerformanceRecord

	prefix := []byte(runID + "_")
	err := s.scanPrefix(performanceBucket, prefix, performanceKey(runID, 0), performanceKey(runID, 999999), func(_, v []byte) error {
		var record PerformanceRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return nil
		}
		records = append(records, record)
		return nil
	})

	return records, err
}

// Runs lists the distinct run ids with stored performance.
func (s *Store) Runs() ([]string, error) {
	var runs []string
	seen := make(map[string]bool)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(performanceBucket)).ForEach(func(_, v []byte) error {
			var record PerformanceRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			if !seen[record.RunID] {
				seen[record.RunID] = true
				runs = append(runs, record.RunID)
			}
			return nil
		})
	})

	return runs, err
}
