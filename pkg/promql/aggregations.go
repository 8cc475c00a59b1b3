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
	"math"
	"sort"

	"github.com/prometheus/prometheus/model/labels"
)

type aggGroup struct {
	metric  labels.Labels
	sum     float64
	count   int
	value   float64 // min or max
	samples Vector  // topk and bottomk
}

func (ev *evaluator) evalAggregate(e *AggregateExpr, ts int64) (Value, error) {
	v, err := ev.eval(e.Expr, ts)
	if err != nil {
		return nil, err
	}

	vec := v.(Vector)

	k := 0

	if e.Param != nil {
		pv, err := ev.eval(e.Param, ts)
		if err != nil {
			return nil, err
		}

		param := pv.(Scalar).V
		if math.IsNaN(param) || math.IsInf(param, 0) {
			return nil, badDataf("parameter value %v is not a valid k for %s", param, e.Op)
		}

		k = int(param)
		if k < 1 {
			return Vector{}, nil
		}
	}

	var order []*aggGroup

	groups := make(map[string]*aggGroup)

	for _, s := range vec {
		metric := groupingLabels(s.Metric, e.Grouping, e.Without)
		key := metric.String()

		g, ok := groups[key]
		if !ok {
			g = &aggGroup{metric: metric, value: s.V}
			groups[key] = g
			order = append(order, g)
		}

		g.add(e.Op, s)
	}

	out := make(Vector, 0, len(order))

	for _, g := range order {
		switch e.Op {
		case "topk", "bottomk":
			out = append(out, g.selectK(k, e.Op == "topk")...)
		default:
			out = append(out, Sample{Metric: g.metric, T: ts, V: g.result(e.Op)})
		}
	}

	return out, nil
}

func groupingLabels(metric labels.Labels, grouping []string, without bool) labels.Labels {
	b := labels.NewBuilder(metric)

	if without {
		b.Del(append([]string{labels.MetricName}, grouping...)...)
	} else {
		b.Keep(grouping...)
	}

	return b.Labels()
}

func (g *aggGroup) add(op string, s Sample) {
	g.count++
	g.sum += s.V

	switch op {
	case "min":
		if math.IsNaN(g.value) || s.V < g.value {
			g.value = s.V
		}
	case "max":
		if math.IsNaN(g.value) || s.V > g.value {
			g.value = s.V
		}
	case "topk", "bottomk":
		g.samples = append(g.samples, s)
	}
}

func (g *aggGroup) result(op string) float64 {
	switch op {
	case "sum":
		return g.sum
	case "count":
		return float64(g.count)
	case "avg":
		return g.sum / float64(g.count)
	default:
		return g.value
	}
}

// selectK returns the k largest (or smallest) samples. NaN sorts last
// either way; ties keep their input order.
func (g *aggGroup) selectK(k int, top bool) Vector {
	samples := g.samples

	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].V, samples[j].V

		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case top:
			return a > b
		default:
			return a < b
		}
	})

	if k < len(samples) {
		samples = samples[:k]
	}

	return samples
}
