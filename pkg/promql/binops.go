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

	"github.com/chrispappas/golang-generics-set/set"
	"github.com/prometheus/prometheus/model/labels"
)

func (ev *evaluator) evalBinary(e *BinaryExpr, ts int64) (Value, error) {
	lv, err := ev.eval(e.LHS, ts)
	if err != nil {
		return nil, err
	}

	rv, err := ev.eval(e.RHS, ts)
	if err != nil {
		return nil, err
	}

	switch l := lv.(type) {
	case Scalar:
		switch r := rv.(type) {
		case Scalar:
			v, keep := elemBinop(e.Op, l.V, r.V)
			if e.Op.isComparison() {
				v = boolValue(keep)
			}

			return Scalar{T: ts, V: v}, nil
		case Vector:
			return vectorScalarBinop(e, r, l.V, true, ts)
		}
	case Vector:
		switch r := rv.(type) {
		case Scalar:
			return vectorScalarBinop(e, l, r.V, false, ts)
		case Vector:
			return vectorBinop(e, l, r, ts)
		}
	}

	return nil, badDataf("invalid operand types %s and %s for %s", lv.Type(), rv.Type(), e.opString())
}

// elemBinop applies op. For comparisons the returned value is lhs and
// keep reports whether the comparison held.
func elemBinop(op tokenType, lhs, rhs float64) (float64, bool) {
	switch op {
	case tokAdd:
		return lhs + rhs, true
	case tokSub:
		return lhs - rhs, true
	case tokMul:
		return lhs * rhs, true
	case tokDiv:
		return lhs / rhs, true
	case tokMod:
		return math.Mod(lhs, rhs), true
	case tokPow:
		return math.Pow(lhs, rhs), true
	case tokEql:
		return lhs, lhs == rhs
	case tokNeq:
		return lhs, lhs != rhs
	case tokGtr:
		return lhs, lhs > rhs
	case tokLss:
		return lhs, lhs < rhs
	case tokGte:
		return lhs, lhs >= rhs
	case tokLte:
		return lhs, lhs <= rhs
	default:
		return math.NaN(), false
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

func shouldDropMetricName(e *BinaryExpr) bool {
	return !e.Op.isComparison() || e.ReturnBool
}

func vectorScalarBinop(e *BinaryExpr, vec Vector, scalar float64, scalarLeft bool, ts int64) (Value, error) {
	out := make(Vector, 0, len(vec))
	dropName := shouldDropMetricName(e)

	for _, s := range vec {
		lhs, rhs := s.V, scalar
		if scalarLeft {
			lhs, rhs = rhs, lhs
		}

		v, keep := elemBinop(e.Op, lhs, rhs)

		if e.Op.isComparison() {
			switch {
			case e.ReturnBool:
				v, keep = boolValue(keep), true
			case scalarLeft:
				// filtering keeps the vector element's value
				v = s.V
			}
		}

		if !keep {
			continue
		}

		metric := s.Metric
		if dropName {
			metric = dropMetricName(metric)
		}

		out = append(out, Sample{Metric: metric, T: ts, V: v, Stamp: s.Stamp})
	}

	if dropName {
		return out, checkDuplicates(out)
	}

	return out, nil
}

// matchingSignature identifies the series a sample pairs with on the other
// side of a vector operation.
func matchingSignature(metric labels.Labels, matching *VectorMatching) string {
	b := labels.NewBuilder(metric)

	switch {
	case matching != nil && matching.On:
		b.Keep(matching.MatchingLabels...)
	case matching != nil:
		b.Del(append([]string{labels.MetricName}, matching.MatchingLabels...)...)
	default:
		b.Del(labels.MetricName)
	}

	return b.Labels().String()
}

func vectorBinop(e *BinaryExpr, lhs, rhs Vector, ts int64) (Value, error) {
	switch e.SetOp {
	case "and":
		return vectorAnd(lhs, rhs, e.Matching), nil
	case "or":
		return vectorOr(lhs, rhs, e.Matching), nil
	case "unless":
		return vectorUnless(lhs, rhs, e.Matching), nil
	}

	return vectorOneToOne(e, lhs, rhs, ts)
}

func signatures(vec Vector, matching *VectorMatching) set.Set[string] {
	sigs := set.FromSlice([]string{})
	for _, s := range vec {
		sigs.Add(matchingSignature(s.Metric, matching))
	}

	return sigs
}

func vectorAnd(lhs, rhs Vector, matching *VectorMatching) Vector {
	right := signatures(rhs, matching)
	out := make(Vector, 0, len(lhs))

	for _, s := range lhs {
		if right.Has(matchingSignature(s.Metric, matching)) {
			out = append(out, s)
		}
	}

	return out
}

func vectorOr(lhs, rhs Vector, matching *VectorMatching) Vector {
	left := signatures(lhs, matching)
	out := make(Vector, 0, len(lhs)+len(rhs))
	out = append(out, lhs...)

	for _, s := range rhs {
		if !left.Has(matchingSignature(s.Metric, matching)) {
			out = append(out, s)
		}
	}

	return out
}

func vectorUnless(lhs, rhs Vector, matching *VectorMatching) Vector {
	right := signatures(rhs, matching)
	out := make(Vector, 0, len(lhs))

	for _, s := range lhs {
		if !right.Has(matchingSignature(s.Metric, matching)) {
			out = append(out, s)
		}
	}

	return out
}

func vectorOneToOne(e *BinaryExpr, lhs, rhs Vector, ts int64) (Value, error) {
	right := make(map[string]Sample, len(rhs))

	for _, s := range rhs {
		sig := matchingSignature(s.Metric, e.Matching)
		if _, dup := right[sig]; dup {
			return nil, executionErrorf("found duplicate series for the match group %s on the right hand-side of the operation: many-to-many matching not allowed", sig)
		}

		right[sig] = s
	}

	out := make(Vector, 0, len(lhs))
	seen := make(map[string]struct{}, len(lhs))

	for _, ls := range lhs {
		rs, ok := right[matchingSignature(ls.Metric, e.Matching)]
		if !ok {
			continue
		}

		v, keep := elemBinop(e.Op, ls.V, rs.V)
		if e.ReturnBool {
			v, keep = boolValue(keep), true
		}

		if !keep {
			continue
		}

		metric := resultMetric(ls.Metric, e)
		key := metric.String()

		if _, dup := seen[key]; dup {
			return nil, executionErrorf("multiple matches for labels %s: many-to-one matching must be explicit", key)
		}

		seen[key] = struct{}{}

		out = append(out, Sample{Metric: metric, T: ts, V: v, Stamp: max(ls.Stamp, rs.Stamp)})
	}

	return out, nil
}

func resultMetric(lhs labels.Labels, e *BinaryExpr) labels.Labels {
	b := labels.NewBuilder(lhs)

	if shouldDropMetricName(e) {
		b.Del(labels.MetricName)
	}

	if e.Matching != nil {
		if e.Matching.On {
			b.Keep(e.Matching.MatchingLabels...)
		} else {
			b.Del(e.Matching.MatchingLabels...)
		}
	}

	return b.Labels()
}
