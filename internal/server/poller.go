package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine is the remote forecasting engine the poller reads from.
type Engine interface {
	Forecasts(ctx context.Context, series string, step int) ([]float64, error)
	Observation(ctx context.Context, series string, step int) (float64, bool, error)
}

// Poller drives the server from a remote engine: it combines the forecasts
// of one step, waits until the engine knows the true value of that step,
// rewards it and moves on to the next step.
type Poller struct {
	srv      *Server
	engine   Engine
	series   string
	interval time.Duration

	step     int
	awaiting bool
}

// NewPoller starts polling at step.
func NewPoller(srv *Server, engine Engine, series string, step int, interval time.Duration) *Poller {
	return &Poller{
		srv:      srv,
		engine:   engine,
		series:   series,
		interval: interval,
		step:     step,
	}
}

// Step returns the step the poller is working on.
func (p *Poller) Step() int { return p.step }

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	log.Info().
		Str("series", p.series).
		Int("step", p.step).
		Dur("interval", p.interval).
		Msg("Polling forecasting engine")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("step", p.step).Msg("Poller stopped")
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.srv.fail(err, "poll failed")
			}
		}
	}
}

// Poll performs one polling round. A step whose forecasts were combined is
// rewarded before the next step is fetched.
func (p *Poller) Poll(ctx context.Context) error {
	if p.awaiting {
		value, ok, err := p.engine.Observation(ctx, p.series, p.step)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		p.srv.Reward(p.step, value)
		p.step++
		p.awaiting = false
	}

	forecasts, err := p.engine.Forecasts(ctx, p.series, p.step)
	if err != nil {
		return err
	}
	prediction := p.srv.Combine(p.step, forecasts)
	p.awaiting = true

	log.Debug().
		Str("series", p.series).
		Int("step", p.step).
		Float64("prediction", prediction).
		Msg("Combined forecasts")
	return nil
}
