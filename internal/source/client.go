// Package source fetches forecasts and true values for a series, either
// from the remote forecasting engine over HTTP or from recorded files and
// the bolt store for replay.
package source

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"forecast-combiner/internal/metrics"
)

// Client talks to the remote forecasting engine that runs the individual
// forecast methods.
type Client struct {
	base string
	rest *resty.Client

	requests metrics.MetricsCounter
	failures metrics.MetricsCounter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestCounters counts requests and failed requests.
func WithRequestCounters(requests, failures metrics.MetricsCounter) ClientOption {
	return func(c *Client) {
		c.requests = requests
		c.failures = failures
	}
}

func NewClient(base string, timeout time.Duration, opts ...ClientOption) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")

	c := &Client{base: base, rest: r}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// forecastsResp carries one value per forecast method; methods without a
// forecast for the step report null.
type forecastsResp struct {
	Series    string     `json:"series"`
	Step      int        `json:"step"`
	Methods   []string   `json:"methods"`
	Forecasts []*float64 `json:"forecasts"`
}

type actualResp struct {
	Series string   `json:"series"`
	Step   int      `json:"step"`
	Value  *float64 `json:"value"`
}

// Forecasts returns the forecasts of every method for step. Missing
// forecasts are NaN.
func (c *Client) Forecasts(ctx context.Context, series string, step int) ([]float64, error) {
	path := "/api/v1/series/{series}/forecasts"

	var body forecastsResp
	resp, err := c.get(ctx, path, series, step, &body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		c.fail()
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	forecasts := make([]float64, len(body.Forecasts))
	for i, f := range body.Forecasts {
		if f == nil {
			forecasts[i] = math.NaN()
			continue
		}
		forecasts[i] = *f
	}
	return forecasts, nil
}

// Observation returns the true value of step. The boolean is false while the
// value is not yet known to the engine.
func (c *Client) Observation(ctx context.Context, series string, step int) (float64, bool, error) {
	path := "/api/v1/series/{series}/actual"

	var body actualResp
	resp, err := c.get(ctx, path, series, step, &body)
	if err != nil {
		return 0, false, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		if body.Value == nil {
			return 0, false, nil
		}
		return *body.Value, true, nil
	case http.StatusNotFound:
		return 0, false, nil
	default:
		c.fail()
		return 0, false, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
}

func (c *Client) get(ctx context.Context, path, series string, step int, result any) (*resty.Response, error) {
	if c.requests != nil {
		c.requests.Inc()
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("series", series).
		SetQueryParam("step", strconv.Itoa(step)).
		SetResult(result).
		Get(c.base + path)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) fail() {
	if c.failures != nil {
		c.failures.Inc()
	}
}
