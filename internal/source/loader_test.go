package source

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-combiner/internal/storage"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadFromCSV(t *testing.T) {
	path := writeFile(t, "series.csv", `step,ets,arima,actual
2,1.2,1.3,1.25
0,1.0,1.2,1.1
1,1.1,,1.05
x,9,9,9
3,1.4,1.5,
`)

	l := NewLoader()
	require.NoError(t, l.LoadFromCSV(path, "load"))
	require.Equal(t, 4, l.Count())

	var steps []int
	for l.HasNext() {
		o := l.Next()
		assert.Equal(t, "load", o.Series)
		steps = append(steps, o.Step)

		switch o.Step {
		case 0:
			assert.Equal(t, []float64{1.0, 1.2}, o.Forecasts)
			require.True(t, o.HasActual())
			assert.Equal(t, 1.1, *o.Actual)
		case 1:
			assert.Equal(t, 1.1, o.Forecasts[0])
			assert.True(t, math.IsNaN(o.Forecasts[1]), "empty cell must be NaN")
		case 3:
			assert.False(t, o.HasActual())
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, steps)
	assert.Equal(t, 100.0, l.Progress())

	l.Reset()
	assert.True(t, l.HasNext())
	assert.Equal(t, 0.0, l.Progress())
}

func TestLoader_LoadFromCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing actual column", "step,ets\n0,1\n"},
		{"missing step column", "ets,actual\n1,1\n"},
		{"no forecast columns", "step,actual\n0,1\n"},
		{"empty file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "series.csv", tt.content)
			assert.Error(t, NewLoader().LoadFromCSV(path, "load"))
		})
	}

	assert.Error(t, NewLoader().LoadFromCSV(filepath.Join(t.TempDir(), "missing.csv"), "load"))
}

func TestLoader_LoadFromJSON(t *testing.T) {
	path := writeFile(t, "series.json", `{"series":"load","step":1,"forecasts":[1.1,1.0],"actual":1.05}
{"series":"price","step":0,"forecasts":[5,6]}
{"series":"load","step":0,"forecasts":[1.0,1.2],"actual":1.1}
`)

	l := NewLoader()
	require.NoError(t, l.LoadFromJSON(path, "load"))
	require.Equal(t, 2, l.Count())

	first := l.Next()
	assert.Equal(t, 0, first.Step)
	assert.Equal(t, []float64{1.0, 1.2}, first.Forecasts)
	second := l.Next()
	assert.Equal(t, 1, second.Step)
	assert.Equal(t, 1.05, *second.Actual)

	assert.False(t, l.HasNext())
	assert.Equal(t, storage.Observation{}, l.Next())
}

func TestLoader_LoadFromJSON_Malformed(t *testing.T) {
	path := writeFile(t, "series.json", `{"series":"load","step":0}
{"series":`)
	assert.Error(t, NewLoader().LoadFromJSON(path, "load"))
}

func TestLoader_LoadFromBoltDB(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now()
	for step := 0; step < 5; step++ {
		require.NoError(t, store.StoreForecasts("load", step, []float64{float64(step), float64(step) + 1}, now))
		require.NoError(t, store.StoreActual("load", step, float64(step)+0.5, now))
	}

	l := NewLoader()
	require.NoError(t, l.LoadFromBoltDB(store, "load", 1, 3))
	require.Equal(t, 3, l.Count())

	o := l.Next()
	assert.Equal(t, 1, o.Step)
	assert.Equal(t, []float64{1, 2}, o.Forecasts)
	assert.Equal(t, 1.5, *o.Actual)
}

func TestLoader_Empty(t *testing.T) {
	l := NewLoader()
	assert.False(t, l.HasNext())
	assert.Equal(t, 100.0, l.Progress())
}
