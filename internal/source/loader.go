package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"forecast-combiner/internal/storage"
)

// Loader holds a recorded series in step order and serves it one
// observation at a time.
type Loader struct {
	data  []storage.Observation
	index int
}

func NewLoader() *Loader {
	return &Loader{
		data: make([]storage.Observation, 0),
	}
}

// LoadFromBoltDB loads the observations of series with steps in [from, to].
func (l *Loader) LoadFromBoltDB(store *storage.Store, series string, from, to int) error {
	log.Info().
		Str("series", series).
		Int("from", from).
		Int("to", to).
		Msg("Loading observations from BoltDB")

	observations, err := store.GetObservations(series, from, to)
	if err != nil {
		return fmt.Errorf("failed to load observations for %s: %w", series, err)
	}
	l.data = append(l.data, observations...)
	l.finish(series)
	return nil
}

// LoadFromCSV loads a series from a CSV file with a header row. The "step"
// and "actual" columns are required; every other column is one forecast
// method, in header order. Empty or unparsable forecast cells become NaN,
// rows with an unparsable step are skipped.
func (l *Loader) LoadFromCSV(filePath, series string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	stepIdx, actualIdx := -1, -1
	var forecastIdx []int
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "step":
			stepIdx = i
		case "actual":
			actualIdx = i
		default:
			forecastIdx = append(forecastIdx, i)
		}
	}
	if stepIdx < 0 || actualIdx < 0 {
		return fmt.Errorf("CSV header must contain step and actual columns, got %v", header)
	}
	if len(forecastIdx) == 0 {
		return fmt.Errorf("CSV file has no forecast columns")
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if len(record) != len(header) {
			log.Debug().Int("line", line).Msg("Skipping CSV row with wrong column count")
			continue
		}

		step, err := strconv.Atoi(strings.TrimSpace(record[stepIdx]))
		if err != nil {
			continue
		}

		o := storage.Observation{Series: series, Step: step}
		for _, idx := range forecastIdx {
			o.Forecasts = append(o.Forecasts, parseCell(record[idx]))
		}
		if actual := parseCell(record[actualIdx]); !math.IsNaN(actual) {
			o.Actual = &actual
		}
		l.data = append(l.data, o)
	}

	l.finish(series)
	log.Info().
		Str("file", filePath).
		Int("total_points", len(l.data)).
		Msg("CSV data loaded successfully")

	return nil
}

// LoadFromJSON loads a stream of JSON-encoded observations, such as an
// export of the observations bucket. Only records of series are kept.
func (l *Loader) LoadFromJSON(filePath, series string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	for decoder.More() {
		var o storage.Observation
		if err := decoder.Decode(&o); err != nil {
			return fmt.Errorf("failed to decode observation: %w", err)
		}
		if series != "" && o.Series != series {
			continue
		}
		l.data = append(l.data, o)
	}

	l.finish(series)
	log.Info().
		Str("file", filePath).
		Int("total_points", len(l.data)).
		Msg("JSON data loaded successfully")

	return nil
}

func (l *Loader) finish(series string) {
	sort.SliceStable(l.data, func(i, j int) bool {
		return l.data[i].Step < l.data[j].Step
	})
	if len(l.data) == 0 {
		log.Warn().Str("series", series).Msg("No observations loaded")
	}
}

func parseCell(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Reset rewinds the loader to the first observation.
func (l *Loader) Reset() {
	l.index = 0
}

// HasNext returns true if there's more data to process
func (l *Loader) HasNext() bool {
	return l.index < len(l.data)
}

// Next returns the next observation.
func (l *Loader) Next() storage.Observation {
	if l.index >= len(l.data) {
		return storage.Observation{}
	}

	o := l.data[l.index]
	l.index++
	return o
}

// Count returns the total number of observations.
func (l *Loader) Count() int {
	return len(l.data)
}

// Progress returns the current progress as a percentage
func (l *Loader) Progress() float64 {
	if len(l.data) == 0 {
		return 100.0
	}
	return float64(l.index) / float64(len(l.data)) * 100.0
}
