package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast-combiner/internal/combine"
	"forecast-combiner/internal/storage"
	"forecast-combiner/internal/xcsf"
)

// fakeEngine publishes the true value of a step only once it is released.
type fakeEngine struct {
	mu       sync.Mutex
	released map[int]bool
	fail     error
	fetched  []int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{released: make(map[int]bool)}
}

func (f *fakeEngine) release(step int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[step] = true
}

func (f *fakeEngine) Forecasts(_ context.Context, _ string, step int) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.fetched = append(f.fetched, step)
	return []float64{0.4, 0.6}, nil
}

func (f *fakeEngine) Observation(_ context.Context, _ string, step int) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, false, f.fail
	}
	return 0.5, f.released[step], nil
}

func TestPoller_Poll(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s, err := combine.NewXCSF(xcsf.DefaultParams())
	require.NoError(t, err)
	srv := New(combine.NewModule(s, 2), 0, WithStore(store, "load"))
	engine := newFakeEngine()
	p := NewPoller(srv, engine, "load", 5, time.Millisecond)

	ctx := context.Background()
	require.NoError(t, p.Poll(ctx))
	assert.Equal(t, 5, p.Step())
	assert.Equal(t, []int{5}, engine.fetched)

	// the true value is not known yet
	require.NoError(t, p.Poll(ctx))
	assert.Equal(t, 5, p.Step())
	assert.Equal(t, []int{5}, engine.fetched)

	engine.release(5)
	require.NoError(t, p.Poll(ctx))
	assert.Equal(t, 6, p.Step())
	assert.Equal(t, []int{5, 6}, engine.fetched)

	observations, err := store.GetObservations("load", 0, 10)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, 5, observations[0].Step)
	require.True(t, observations[0].HasActual())
	assert.False(t, observations[1].HasActual())
}

func TestPoller_EngineError(t *testing.T) {
	s, err := combine.NewXCSF(xcsf.DefaultParams())
	require.NoError(t, err)
	srv := New(combine.NewModule(s, 2), 0)
	engine := newFakeEngine()
	engine.fail = errors.New("engine down")

	p := NewPoller(srv, engine, "load", 0, time.Millisecond)
	assert.Error(t, p.Poll(context.Background()))
	assert.Equal(t, 0, p.Step())
	assert.Equal(t, 0, s.Driver().Population().Len())
}

func TestPoller_Run(t *testing.T) {
	srv := New(combine.NewModule(combine.Average{}, 2), 0)
	engine := newFakeEngine()
	for step := 0; step < 100; step++ {
		engine.release(step)
	}
	p := NewPoller(srv, engine, "load", 0, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.fetched) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
