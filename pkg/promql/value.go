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
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"
)

// ValueType is the type of an expression or result.
type ValueType string

const (
	ValueTypeNone   ValueType = "none"
	ValueTypeScalar ValueType = "scalar"
	ValueTypeVector ValueType = "vector"
	ValueTypeMatrix ValueType = "matrix"
	ValueTypeString ValueType = "string"
)

// Value is a query result.
type Value interface {
	Type() ValueType
}

// Scalar is a single number at a timestamp.
type Scalar struct {
	T int64
	V float64
}

func (Scalar) Type() ValueType { return ValueTypeScalar }

// MarshalJSON renders [<unix seconds>, "<value>"].
func (s Scalar) MarshalJSON() ([]byte, error) {
	return marshalPoint(s.T, s.V)
}

// Sample is one element of an instant vector. T is the evaluation time;
// Stamp is the timestamp of the stored point the value came from, or zero
// when the value was computed from a window or a group.
type Sample struct {
	Metric labels.Labels
	T      int64
	V      float64
	Stamp  int64
}

func (s Sample) MarshalJSON() ([]byte, error) {
	value, err := marshalPoint(s.T, s.V)
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		Metric labels.Labels   `json:"metric"`
		Value  json.RawMessage `json:"value"`
	}{Metric: s.Metric, Value: value})
}

// Vector is an instant vector.
type Vector []Sample

func (Vector) Type() ValueType { return ValueTypeVector }

// Series is one series of a range result.
type Series struct {
	Metric labels.Labels
	Points []models.Point
}

func (s Series) MarshalJSON() ([]byte, error) {
	values := make([]json.RawMessage, 0, len(s.Points))

	for _, p := range s.Points {
		raw, err := marshalPoint(p.T, p.V)
		if err != nil {
			return nil, err
		}

		values = append(values, raw)
	}

	return json.Marshal(struct {
		Metric labels.Labels     `json:"metric"`
		Values []json.RawMessage `json:"values"`
	}{Metric: s.Metric, Values: values})
}

// Matrix is a set of series.
type Matrix []Series

func (Matrix) Type() ValueType { return ValueTypeMatrix }

func marshalPoint(t int64, v float64) ([]byte, error) {
	ts := json.Number(strconv.FormatFloat(float64(t)/1000, 'f', -1, 64))

	return json.Marshal([]interface{}{ts, FormatValue(v)})
}

// FormatValue renders a sample value the way the Prometheus HTTP API does.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

func sortVector(v Vector) {
	sort.SliceStable(v, func(i, j int) bool {
		return labels.Compare(v[i].Metric, v[j].Metric) < 0
	})
}

func sortMatrix(m Matrix) {
	sort.SliceStable(m, func(i, j int) bool {
		return labels.Compare(m[i].Metric, m[j].Metric) < 0
	})
}
