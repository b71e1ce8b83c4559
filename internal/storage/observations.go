package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
)

// stepDigits pads step keys so that byte order matches numeric order.
const stepDigits = 12

// Observation is one step of a recorded series: the forecasts offered to the
// combiner and, once known, the true value.
type Observation struct {
	Series    string    `json:"series"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Forecasts []float64 `json:"forecasts,omitempty"`
	Actual    *float64  `json:"actual,omitempty"`
}

// HasActual reports whether the true value has been recorded.
func (o Observation) HasActual() bool { return o.Actual != nil }

type observationJSON struct {
	Series    string     `json:"series"`
	Step      int        `json:"step"`
	Timestamp time.Time  `json:"timestamp"`
	Forecasts []*float64 `json:"forecasts,omitempty"`
	Actual    *float64   `json:"actual,omitempty"`
}

// MarshalJSON writes missing (non-finite) forecasts as null.
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{
		Series:    o.Series,
		Step:      o.Step,
		Timestamp: o.Timestamp,
		Actual:    o.Actual,
	}
	for _, f := range o.Forecasts {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out.Forecasts = append(out.Forecasts, nil)
			continue
		}
		v := f
		out.Forecasts = append(out.Forecasts, &v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null forecasts as NaN.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var in observationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*o = Observation{
		Series:    in.Series,
		Step:      in.Step,
		Timestamp: in.Timestamp,
		Actual:    in.Actual,
	}
	for _, f := range in.Forecasts {
		if f == nil {
			o.Forecasts = append(o.Forecasts, math.NaN())
			continue
		}
		o.Forecasts = append(o.Forecasts, *f)
	}
	return nil
}

func observationKey(series string, step int) []byte {
	return []byte(fmt.Sprintf("%s_%0*d", series, stepDigits, step))
}

// StoreForecasts records the forecasts for a step, keeping an actual value
// that was stored earlier.
func (s *Store) StoreForecasts(series string, step int, forecasts []float64, ts time.Time) error {
	return s.updateObservation(series, step, func(o *Observation) {
		o.Forecasts = append([]float64(nil), forecasts...)
		o.Timestamp = ts
	})
}

// StoreActual records the true value for a step, keeping any forecasts that
// were stored earlier.
func (s *Store) StoreActual(series string, step int, actual float64, ts time.Time) error {
	return s.updateObservation(series, step, func(o *Observation) {
		o.Actual = &actual
		if o.Timestamp.IsZero() {
			o.Timestamp = ts
		}
	})
}

// StoreObservation writes a complete observation, replacing the stored one.
func (s *Store) StoreObservation(o Observation) error {
	return s.updateObservation(o.Series, o.Step, func(stored *Observation) {
		*stored = o
	})
}

func (s *Store) updateObservation(series string, step int, apply func(*Observation)) error {
	if series == "" {
		return fmt.Errorf("series name cannot be empty")
	}
	if step < 0 {
		return fmt.Errorf("step must not be negative, got %d", step)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		key := observationKey(series, step)

		var o Observation
		if v := b.Get(key); v != nil {
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("unmarshal observation: %w", err)
			}
		}
		apply(&o)
		o.Series, o.Step = series, step

		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal observation: %w", err)
		}
		return b.Put(key, data)
	})
}

// GetObservations returns the observations of a series with steps in
// [from, to], ordered by step. Malformed records are skipped.
func (s *Store) GetObservations(series string, from, to int) ([]Observation, error) {
	var observations []Observation

	prefix := []byte(series + "_")
	err := s.scanPrefix(observationsBucket, prefix, observationKey(series, from), observationKey(series, to), func(_, v []byte) error {
		var o Observation
		if err := json.Unmarshal(v, &o); err != nil {
			return nil
		}
		if o.Series != series {
			return nil
		}
		observations = append(observations, o)
		return nil
	})

	return observations, err
}

// LastStep returns the highest recorded step of a series. The boolean is
// false when the series has no observations.
func (s *Store) LastStep(series string) (int, bool, error) {
	step, found := 0, false

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(observationsBucket)).Cursor()
		prefix := []byte(series + "_")

		// ':' sorts right after the digits, past every step of the series.
		end := append(append([]byte(nil), prefix...), ':')
		k, v := c.Seek(end)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && hasPrefix(k, prefix); k, v = c.Prev() {
			var o Observation
			if err := json.Unmarshal(v, &o); err != nil || o.Series != series {
				continue
			}
			step, found = o.Step, true
			return nil
		}
		return nil
	})

	return step, found, err
}
