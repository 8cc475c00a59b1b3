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

	"github.com/mfreeman451/meshradar/pkg/models"
)

// Function describes a supported function.
type Function struct {
	Name       string
	ArgTypes   []ValueType
	ReturnType ValueType
	// KeepName functions return series with their metric name intact.
	KeepName bool

	rangeFn  func(points []models.Point, window float64) (float64, bool)
	vectorFn func(v float64) float64
}

var functions = map[string]*Function{
	"rate":            rangeFunction("rate", funcRate, false),
	"increase":        rangeFunction("increase", funcIncrease, false),
	"delta":           rangeFunction("delta", funcDelta, false),
	"count_over_time": rangeFunction("count_over_time", funcCountOverTime, false),
	"avg_over_time":   rangeFunction("avg_over_time", funcAvgOverTime, false),
	"min_over_time":   rangeFunction("min_over_time", funcMinOverTime, false),
	"max_over_time":   rangeFunction("max_over_time", funcMaxOverTime, false),
	"sum_over_time":   rangeFunction("sum_over_time", funcSumOverTime, false),
	"last_over_time":  rangeFunction("last_over_time", funcLastOverTime, true),
	"abs": {
		Name:       "abs",
		ArgTypes:   []ValueType{ValueTypeVector},
		ReturnType: ValueTypeVector,
		vectorFn:   math.Abs,
	},
	"time": {
		Name:       "time",
		ReturnType: ValueTypeScalar,
	},
	"vector": {
		Name:       "vector",
		ArgTypes:   []ValueType{ValueTypeScalar},
		ReturnType: ValueTypeVector,
	},
	"scalar": {
		Name:       "scalar",
		ArgTypes:   []ValueType{ValueTypeVector},
		ReturnType: ValueTypeScalar,
	},
}

func rangeFunction(name string, fn func([]models.Point, float64) (float64, bool), keepName bool) *Function {
	return &Function{
		Name:       name,
		ArgTypes:   []ValueType{ValueTypeMatrix},
		ReturnType: ValueTypeVector,
		KeepName:   keepName,
		rangeFn:    fn,
	}
}

// counterIncrease sums the increases between consecutive points. A drop in
// value is a counter reset, so the new value is counted as if the counter
// had restarted from zero.
func counterIncrease(points []models.Point) float64 {
	var inc float64

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].V, points[i].V
		if cur < prev {
			inc += cur
			continue
		}

		inc += cur - prev
	}

	return inc
}

func funcIncrease(points []models.Point, _ float64) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	return counterIncrease(points), true
}

// funcRate is the per-second increase over the whole window.
func funcRate(points []models.Point, window float64) (float64, bool) {
	if len(points) < 2 || window <= 0 {
		return 0, false
	}

	return counterIncrease(points) / window, true
}

func funcDelta(points []models.Point, _ float64) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	return points[len(points)-1].V - points[0].V, true
}

func funcCountOverTime(points []models.Point, _ float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	return float64(len(points)), true
}

func funcSumOverTime(points []models.Point, _ float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	var sum float64
	for _, p := range points {
		sum += p.V
	}

	return sum, true
}

func funcAvgOverTime(points []models.Point, w float64) (float64, bool) {
	sum, ok := funcSumOverTime(points, w)
	if !ok {
		return 0, false
	}

	return sum / float64(len(points)), true
}

func funcMinOverTime(points []models.Point, _ float64) (float64, bool) {
	return foldPoints(points, func(acc, v float64) bool { return v < acc })
}

func funcMaxOverTime(points []models.Point, _ float64) (float64, bool) {
	return foldPoints(points, func(acc, v float64) bool { return v > acc })
}

func funcLastOverTime(points []models.Point, _ float64) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	return points[len(points)-1].V, true
}

// foldPoints keeps the value for which better reports true. NaN only wins
// when every value is NaN.
func foldPoints(points []models.Point, better func(acc, v float64) bool) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	acc := points[0].V

	for _, p := range points[1:] {
		if math.IsNaN(acc) || better(acc, p.V) {
			acc = p.V
		}
	}

	return acc, true
}
