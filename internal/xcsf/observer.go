package xcsf

// Observer receives a snapshot after every rewarded iteration. Snapshots are
// deep copies; nothing in them aliases driver state.
type Observer interface {
	StateChanged(s Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) StateChanged(s Snapshot) { f(s) }

// ClassifierView is a read-only copy of one classifier.
type ClassifierView struct {
	Center          []float64   `json:"center"`
	Stretch         []float64   `json:"stretch"`
	Angles          []float64   `json:"angles"`
	Coefficients    [][]float64 `json:"coefficients"`
	Fitness         float64     `json:"fitness"`
	Numerosity      int         `json:"numerosity"`
	Experience      int         `json:"experience"`
	SetSizeEstimate float64     `json:"setSizeEstimate"`
	PredictionError float64     `json:"predictionError"`
	Timestamp       int         `json:"timestamp"`
	Generality      float64     `json:"generality"`
}

// Snapshot is handed to observers.
type Snapshot struct {
	Iteration   int              `json:"iteration"`
	Population  []ClassifierView `json:"population"`
	MatchSet    []ClassifierView `json:"matchSet"`
	Input       []float64        `json:"input"`
	Output      []float64        `json:"output"`
	Performance [][]float64      `json:"performance"`
}

func viewOf(cl *Classifier) ClassifierView {
	return ClassifierView{
		Center:          append([]float64(nil), cl.condition.center...),
		Stretch:         append([]float64(nil), cl.condition.stretch...),
		Angles:          append([]float64(nil), cl.condition.angles...),
		Coefficients:    cl.prediction.Coefficients(),
		Fitness:         cl.fitness,
		Numerosity:      cl.numerosity,
		Experience:      cl.experience,
		SetSizeEstimate: cl.setSizeEstimate,
		PredictionError: cl.predictionError,
		Timestamp:       cl.timestamp,
		Generality:      cl.Generality(),
	}
}

func viewsOf(cls []*Classifier) []ClassifierView {
	out := make([]ClassifierView, len(cls))
	for i, cl := range cls {
		out[i] = viewOf(cl)
	}
	return out
}
