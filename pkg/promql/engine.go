/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package promql pkg/promql/engine.go evaluates a subset of PromQL against
// a Queryable.
package promql

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
)

const (
	defaultLookbackDelta = 5 * time.Minute
	defaultTimeout       = 30 * time.Second
	defaultMaxSamples    = 5_000_000
	defaultRetryBackoff  = 100 * time.Millisecond
	defaultMaxPoints     = 11000

	queryTypeInstant = "instant"
	queryTypeRange   = "range"
)

// Options configures an Engine.
type Options struct {
	// LookbackDelta is how far back an instant selector looks for a sample.
	LookbackDelta time.Duration
	Timeout       time.Duration
	// MaxSamples bounds the points a single query may load.
	MaxSamples int
	// MaxRetries is how often a Select failing with ErrStoreUnavailable is
	// retried, with exponential backoff starting at RetryBackoff.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxPoints bounds the steps of a range query.
	MaxPoints int
	Metrics   *metrics.Metrics
}

// Engine evaluates queries.
type Engine struct {
	queryable Queryable
	opts      Options
}

func NewEngine(q Queryable, opts Options) *Engine {
	if opts.LookbackDelta <= 0 {
		opts.LookbackDelta = defaultLookbackDelta
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.MaxSamples <= 0 {
		opts.MaxSamples = defaultMaxSamples
	}

	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}

	if opts.MaxPoints <= 0 {
		opts.MaxPoints = defaultMaxPoints
	}

	return &Engine{queryable: q, opts: opts}
}

// InstantQuery evaluates q at ts.
func (e *Engine) InstantQuery(ctx context.Context, q string, ts time.Time) (Value, error) {
	t := ts.UnixMilli()

	return e.exec(ctx, queryTypeInstant, q, t, t, 0)
}

// RangeQuery evaluates q at every step from start to end inclusive.
func (e *Engine) RangeQuery(ctx context.Context, q string, start, end time.Time, step time.Duration) (Value, error) {
	if step <= 0 {
		return nil, badDataf("zero or negative query resolution step widths are not accepted")
	}

	if end.Before(start) {
		return nil, badDataf("end timestamp must not be before start time")
	}

	if points := end.Sub(start)/step + 1; int(points) > e.opts.MaxPoints {
		return nil, badDataf("exceeded maximum resolution of %d points per timeseries", e.opts.MaxPoints)
	}

	return e.exec(ctx, queryTypeRange, q, start.UnixMilli(), end.UnixMilli(), step.Milliseconds())
}

func (e *Engine) exec(ctx context.Context, queryType, q string, start, end, step int64) (Value, error) {
	begin := time.Now()

	v, err := e.run(ctx, queryType, q, start, end, step)

	e.opts.Metrics.QueryDone(queryType, queryStatus(err), time.Since(begin))

	return v, err
}

func queryStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, ErrQueryTimeout):
		return metrics.StatusTimeout
	default:
		return metrics.StatusError
	}
}

func (e *Engine) run(ctx context.Context, queryType, q string, start, end, step int64) (Value, error) {
	expr, err := ParseExpr(q)
	if err != nil {
		return nil, err
	}

	if queryType == queryTypeRange {
		if t := expr.Type(); t != ValueTypeScalar && t != ValueTypeVector {
			return nil, badDataf("invalid expression type %q for range query, must be scalar or instant vector", typeName(t))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	ev := &evaluator{
		ctx:      ctx,
		lookback: e.opts.LookbackDelta.Milliseconds(),
		data:     make(map[*VectorSelector][]models.Series),
	}

	if err := e.load(ctx, ev, expr, start, end); err != nil {
		return nil, contextError(err)
	}

	if queryType == queryTypeInstant {
		v, err := ev.eval(expr, start)
		if err != nil {
			return nil, contextError(err)
		}

		return finalize(v), nil
	}

	m, err := ev.evalRange(expr, start, end, step)
	if err != nil {
		return nil, contextError(err)
	}

	return m, nil
}

func finalize(v Value) Value {
	switch r := v.(type) {
	case Vector:
		sortVector(r)
	case Matrix:
		sortMatrix(r)
	}

	return v
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrQueryTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrQueryCanceled, err)
	default:
		return err
	}
}

// load fetches every selector's points once for the whole evaluation.
func (e *Engine) load(ctx context.Context, ev *evaluator, expr Expr, start, end int64) error {
	var (
		loaded int
		err    error
	)

	walkSelectors(expr, func(vs *VectorSelector, rng time.Duration) {
		if err != nil {
			return
		}

		window := ev.lookback
		if rng > 0 {
			window = rng.Milliseconds()
		}

		var series []models.Series

		series, err = e.selectWithRetry(ctx, start-window, end, vs)
		if err != nil {
			return
		}

		for i := range series {
			loaded += len(series[i].Points)
		}

		if loaded > e.opts.MaxSamples {
			err = executionErrorf("query processing would load too many samples into memory (limit %d)", e.opts.MaxSamples)
			return
		}

		ev.data[vs] = series
	})

	return err
}

func (e *Engine) selectWithRetry(ctx context.Context, mint, maxt int64, vs *VectorSelector) ([]models.Series, error) {
	backoff := e.opts.RetryBackoff

	for attempt := 0; ; attempt++ {
		series, err := e.queryable.Select(ctx, mint, maxt, vs.Matchers)
		if err == nil {
			return series, nil
		}

		if !errors.Is(err, tsdb.ErrStoreUnavailable) || attempt >= e.opts.MaxRetries {
			return nil, fmt.Errorf("select %s: %w", vs, err)
		}

		log.Printf("Store unavailable selecting %s, retrying in %v (attempt %d/%d)",
			vs, backoff, attempt+1, e.opts.MaxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}
}
