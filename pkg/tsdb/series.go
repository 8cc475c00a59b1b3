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

package tsdb

import (
	"math"
	"sort"
	"sync"

	"github.com/gammazero/deque"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"
)

type appendOutcome int

const (
	outcomeAppended appendOutcome = iota
	outcomeDuplicate
	outcomeDownsampled
)

// memSeries is one series held in memory. Points are kept ascending by
// timestamp so trimming only ever pops from the front.
type memSeries struct {
	mu      sync.RWMutex
	lbls    labels.Labels
	points  deque.Deque[models.Point]
	removed bool
}

func newMemSeries(lbls labels.Labels) *memSeries {
	return &memSeries{lbls: lbls}
}

func (ms *memSeries) append(p models.Point, resolution int64) (appendOutcome, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.removed {
		return outcomeAppended, errSeriesRemoved
	}

	if ms.points.Len() > 0 {
		last := ms.points.Back()

		switch {
		case p.T == last.T:
			if sameValue(p.V, last.V) {
				return outcomeDuplicate, nil
			}

			return outcomeDuplicate, ErrDuplicateSample
		case p.T < last.T:
			return outcomeAppended, ErrOutOfOrder
		case resolution > 0 && p.T-last.T < resolution:
			return outcomeDownsampled, nil
		}
	}

	ms.points.PushBack(p)

	return outcomeAppended, nil
}

func sameValue(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}

	return a == b
}

// rangeCopy returns a copy of the points with mint <= T <= maxt.
func (ms *memSeries) rangeCopy(mint, maxt int64) []models.Point {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	n := ms.points.Len()
	start := sort.Search(n, func(i int) bool { return ms.points.At(i).T >= mint })

	var out []models.Point

	for i := start; i < n; i++ {
		p := ms.points.At(i)
		if p.T > maxt {
			break
		}

		out = append(out, p)
	}

	return out
}

// truncate drops points older than before and reports how many remain.
// A series left empty is marked removed so a concurrent append retries
// against the index instead of writing into a detached series.
func (ms *memSeries) truncate(before int64) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for ms.points.Len() > 0 && ms.points.Front().T < before {
		ms.points.PopFront()
	}

	if ms.points.Len() == 0 {
		ms.removed = true
	}

	return ms.points.Len()
}
