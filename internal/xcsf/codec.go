package xcsf

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SnapshotVersion is the current population encoding version.
const SnapshotVersion = 1

var ErrSnapshotVersion = errors.New("unsupported population snapshot version")

// ClassifierRecord is the persisted form of one classifier.
type ClassifierRecord struct {
	Center          []float64   `json:"center"`
	Stretch         []float64   `json:"stretch"`
	Angles          []float64   `json:"angles"`
	Coefficients    [][]float64 `json:"coefficients"`
	Gain            [][]float64 `json:"gain"`
	Fitness         float64     `json:"fitness"`
	Numerosity      int         `json:"numerosity"`
	Experience      int         `json:"experience"`
	SetSizeEstimate float64     `json:"setSizeEstimate"`
	PredictionError float64     `json:"predictionError"`
	Timestamp       int         `json:"timestamp"`
}

// PopulationSnapshot is a versioned, self-describing encoding of a whole
// population.
type PopulationSnapshot struct {
	Version     int                `json:"version"`
	InputDim    int                `json:"inputDim"`
	OutputDim   int                `json:"outputDim"`
	Classifiers []ClassifierRecord `json:"classifiers"`
}

// EncodePopulation copies pop into a snapshot.
func EncodePopulation(pop *Population) PopulationSnapshot {
	s := PopulationSnapshot{Version: SnapshotVersion}
	for _, cl := range pop.items {
		outDim, _ := cl.prediction.coefficients.Dims()
		s.InputDim = len(cl.condition.center)
		s.OutputDim = outDim
		s.Classifiers = append(s.Classifiers, ClassifierRecord{
			Center:          append([]float64(nil), cl.condition.center...),
			Stretch:         append([]float64(nil), cl.condition.stretch...),
			Angles:          append([]float64(nil), cl.condition.angles...),
			Coefficients:    cl.prediction.Coefficients(),
			Gain:            cl.prediction.Gain(),
			Fitness:         cl.fitness,
			Numerosity:      cl.numerosity,
			Experience:      cl.experience,
			SetSizeEstimate: cl.setSizeEstimate,
			PredictionError: cl.predictionError,
			Timestamp:       cl.timestamp,
		})
	}
	return s
}

// Validate checks the snapshot against the parameters it will be loaded
// with.
func (s PopulationSnapshot) Validate(p Params) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	if len(s.Classifiers) == 0 {
		return nil
	}
	if s.InputDim < 1 || s.OutputDim < 1 {
		return fmt.Errorf("invalid snapshot dimensions %dx%d", s.InputDim, s.OutputDim)
	}
	n := s.InputDim
	total := 0
	for i, r := range s.Classifiers {
		if len(r.Center) != n || len(r.Stretch) != n || len(r.Angles) != n*(n-1)/2 {
			return fmt.Errorf("classifier %d: geometry does not match input dimension %d", i, n)
		}
		if len(r.Coefficients) != s.OutputDim {
			return fmt.Errorf("classifier %d: %d coefficient rows, want %d", i, len(r.Coefficients), s.OutputDim)
		}
		for _, row := range r.Coefficients {
			if len(row) != n+1 {
				return fmt.Errorf("classifier %d: coefficient row length %d, want %d", i, len(row), n+1)
			}
		}
		if r.Gain != nil {
			if len(r.Gain) != n+1 {
				return fmt.Errorf("classifier %d: gain has %d rows, want %d", i, len(r.Gain), n+1)
			}
			for _, row := range r.Gain {
				if len(row) != n+1 {
					return fmt.Errorf("classifier %d: gain row length %d, want %d", i, len(row), n+1)
				}
			}
		}
		for _, v := range r.Stretch {
			if v <= 0 {
				return fmt.Errorf("classifier %d: stretch must be positive", i)
			}
		}
		if r.Numerosity < 1 {
			return fmt.Errorf("classifier %d: numerosity %d", i, r.Numerosity)
		}
		if r.Experience < 0 {
			return fmt.Errorf("classifier %d: negative experience", i)
		}
		total += r.Numerosity
	}
	if total > p.MaxPopSize {
		return fmt.Errorf("snapshot holds %d micro-classifiers, capacity is %d", total, p.MaxPopSize)
	}
	return nil
}

// DecodePopulation rebuilds a population from a validated snapshot. A record
// without gain matrix starts with a fresh one.
func DecodePopulation(s PopulationSnapshot, p *Params, rng *Random) (*Population, error) {
	if err := s.Validate(*p); err != nil {
		return nil, err
	}
	pop := NewPopulation(p, rng)
	n := s.InputDim
	for _, r := range s.Classifiers {
		rls := &RLSPrediction{
			coefficients: mat.NewDense(s.OutputDim, n+1, flatten(r.Coefficients)),
			gain:         mat.NewDense(n+1, n+1, nil),
			offset:       p.PredictionOffsetValue,
			lambda:       p.LambdaRLS,
			initScale:    p.RLSInitScaleFactor,
		}
		if r.Gain != nil {
			rls.gain = mat.NewDense(n+1, n+1, flatten(r.Gain))
		} else {
			rls.initGain()
		}
		pop.Add(&Classifier{
			condition:       NewCondition(r.Center, r.Stretch, r.Angles),
			prediction:      rls,
			fitness:         r.Fitness,
			numerosity:      r.Numerosity,
			experience:      r.Experience,
			setSizeEstimate: r.SetSizeEstimate,
			predictionError: r.PredictionError,
			timestamp:       r.Timestamp,
			p:               p,
			offset:          make([]float64, n),
		})
	}
	return pop, nil
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(s PopulationSnapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal population snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot. It checks the
// version only; dimensions are checked by Validate.
func UnmarshalSnapshot(data []byte) (PopulationSnapshot, error) {
	var s PopulationSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal population snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return s, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return s, nil
}

func flatten(rows [][]float64) []float64 {
	var out []float64
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
