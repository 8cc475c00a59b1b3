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

package promql

import (
	"context"
	"math"
	"sort"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"
)

type evaluator struct {
	ctx      context.Context
	lookback int64
	data     map[*VectorSelector][]models.Series
}

func (ev *evaluator) eval(expr Expr, ts int64) (Value, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}

	switch e := expr.(type) {
	case *NumberLiteral:
		return Scalar{T: ts, V: e.Val}, nil
	case *StringLiteral:
		return nil, badDataf("string literals are not supported as query results")
	case *ParenExpr:
		return ev.eval(e.Expr, ts)
	case *UnaryExpr:
		return ev.evalUnary(e, ts)
	case *VectorSelector:
		return ev.selectInstant(e, ts), nil
	case *MatrixSelector:
		return ev.selectRange(e, ts), nil
	case *Call:
		return ev.evalCall(e, ts)
	case *AggregateExpr:
		return ev.evalAggregate(e, ts)
	case *BinaryExpr:
		return ev.evalBinary(e, ts)
	default:
		return nil, badDataf("unhandled expression of type %T", expr)
	}
}

// evalRange evaluates expr at every step and assembles the series.
func (ev *evaluator) evalRange(expr Expr, start, end, step int64) (Matrix, error) {
	byKey := make(map[string]int)

	var out Matrix

	for ts := start; ts <= end; ts += step {
		v, err := ev.eval(expr, ts)
		if err != nil {
			return nil, err
		}

		var samples Vector

		switch r := v.(type) {
		case Scalar:
			samples = Vector{{Metric: labels.EmptyLabels(), T: r.T, V: r.V}}
		case Vector:
			samples = r
		default:
			return nil, badDataf("invalid result type %s in range evaluation", v.Type())
		}

		for _, s := range samples {
			key := s.Metric.String()

			idx, ok := byKey[key]
			if !ok {
				idx = len(out)
				byKey[key] = idx
				out = append(out, Series{Metric: s.Metric})
			}

			out[idx].Points = append(out[idx].Points, models.Point{T: ts, V: s.V})
		}
	}

	sortMatrix(out)

	return out, nil
}

// selectInstant picks, per series, the newest point in (ts-lookback, ts].
func (ev *evaluator) selectInstant(vs *VectorSelector, ts int64) Vector {
	series := ev.data[vs]
	out := make(Vector, 0, len(series))

	for i := range series {
		points := series[i].Points

		idx := sort.Search(len(points), func(j int) bool { return points[j].T > ts }) - 1
		if idx < 0 || points[idx].T <= ts-ev.lookback {
			continue
		}

		out = append(out, Sample{Metric: series[i].Labels, T: ts, V: points[idx].V, Stamp: points[idx].T})
	}

	return out
}

// selectRange returns, per series, the points in (ts-range, ts].
func (ev *evaluator) selectRange(ms *MatrixSelector, ts int64) Matrix {
	series := ev.data[ms.VectorSelector]
	mint := ts - ms.Range.Milliseconds()
	out := make(Matrix, 0, len(series))

	for i := range series {
		points := series[i].Points

		lo := sort.Search(len(points), func(j int) bool { return points[j].T > mint })
		hi := sort.Search(len(points), func(j int) bool { return points[j].T > ts })

		if lo >= hi {
			continue
		}

		out = append(out, Series{Metric: series[i].Labels, Points: points[lo:hi]})
	}

	return out
}

func (ev *evaluator) evalUnary(e *UnaryExpr, ts int64) (Value, error) {
	v, err := ev.eval(e.Expr, ts)
	if err != nil {
		return nil, err
	}

	switch r := v.(type) {
	case Scalar:
		return Scalar{T: r.T, V: -r.V}, nil
	case Vector:
		out := make(Vector, len(r))
		for i, s := range r {
			out[i] = Sample{Metric: dropMetricName(s.Metric), T: s.T, V: -s.V, Stamp: s.Stamp}
		}

		return out, checkDuplicates(out)
	default:
		return nil, badDataf("unary minus not supported on %s", v.Type())
	}
}

func (ev *evaluator) evalCall(e *Call, ts int64) (Value, error) {
	fn := e.Func

	if fn.rangeFn != nil {
		return ev.evalRangeFunction(e, ts)
	}

	switch fn.Name {
	case "time":
		return Scalar{T: ts, V: float64(ts) / 1000}, nil
	case "vector":
		v, err := ev.eval(e.Args[0], ts)
		if err != nil {
			return nil, err
		}

		s := v.(Scalar)

		return Vector{{Metric: labels.EmptyLabels(), T: ts, V: s.V}}, nil
	case "scalar":
		v, err := ev.eval(e.Args[0], ts)
		if err != nil {
			return nil, err
		}

		vec := v.(Vector)
		if len(vec) != 1 {
			return Scalar{T: ts, V: math.NaN()}, nil
		}

		return Scalar{T: ts, V: vec[0].V}, nil
	}

	// element-wise vector functions
	v, err := ev.eval(e.Args[0], ts)
	if err != nil {
		return nil, err
	}

	vec := v.(Vector)
	out := make(Vector, len(vec))

	for i, s := range vec {
		out[i] = Sample{Metric: dropMetricName(s.Metric), T: ts, V: fn.vectorFn(s.V), Stamp: s.Stamp}
	}

	return out, checkDuplicates(out)
}

func (ev *evaluator) evalRangeFunction(e *Call, ts int64) (Value, error) {
	ms, ok := unwrapParens(e.Args[0]).(*MatrixSelector)
	if !ok {
		return nil, badDataf("expected range vector selector in call to %q", e.Func.Name)
	}

	window := ms.Range.Seconds()
	matrix := ev.selectRange(ms, ts)
	out := make(Vector, 0, len(matrix))

	for _, series := range matrix {
		v, ok := e.Func.rangeFn(series.Points, window)
		if !ok {
			continue
		}

		metric := series.Metric
		if !e.Func.KeepName {
			metric = dropMetricName(metric)
		}

		out = append(out, Sample{Metric: metric, T: ts, V: v})
	}

	return out, checkDuplicates(out)
}

func unwrapParens(expr Expr) Expr {
	for {
		p, ok := expr.(*ParenExpr)
		if !ok {
			return expr
		}

		expr = p.Expr
	}
}

func dropMetricName(l labels.Labels) labels.Labels {
	if !l.Has(labels.MetricName) {
		return l
	}

	return labels.NewBuilder(l).Del(labels.MetricName).Labels()
}

func checkDuplicates(v Vector) error {
	if len(v) < 2 {
		return nil
	}

	seen := make(map[string]struct{}, len(v))

	for _, s := range v {
		key := s.Metric.String()
		if _, ok := seen[key]; ok {
			return executionErrorf("vector cannot contain metrics with the same labelset %s", key)
		}

		seen[key] = struct{}{}
	}

	return nil
}
