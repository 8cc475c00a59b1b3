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

// Package tsdb pkg/tsdb/store.go provides the in-memory sample store.
package tsdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
)

// Options configures a Store.
type Options struct {
	// Resolution drops samples closer than this to the last kept sample of
	// the same series. Zero keeps every sample.
	Resolution time.Duration
	Persister  Persister
	Metrics    *metrics.Metrics
}

// Rejection describes one sample the store refused.
type Rejection struct {
	Series    string `json:"series"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// AppendResult summarizes an Append call.
type AppendResult struct {
	Appended    int         `json:"appended"`
	Duplicates  int         `json:"duplicates"`
	Downsampled int         `json:"downsampled"`
	Rejected    []Rejection `json:"rejected,omitempty"`

	// Accepted holds the samples that were stored, in input order.
	Accepted []models.Sample `json:"-"`
}

// Store keeps series in memory. The index lock guards the series map and
// each series guards its own points, so a reader never sees a half-written
// append.
type Store struct {
	mu         sync.RWMutex
	series     map[uint64][]*memSeries
	count      int
	closed     bool
	resolution int64
	persister  Persister
	metrics    *metrics.Metrics
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		series:     make(map[uint64][]*memSeries),
		resolution: opts.Resolution.Milliseconds(),
		persister:  opts.Persister,
		metrics:    opts.Metrics,
	}
}

// Append writes samples. Per-sample failures are reported in the result;
// the returned error is only set when the store cannot accept writes.
func (s *Store) Append(ctx context.Context, samples []models.Sample) (AppendResult, error) {
	res, appended, err := s.append(ctx, samples)
	if err != nil {
		return res, err
	}

	if s.persister != nil && len(appended) > 0 {
		s.persister.Persist(appended)
	}

	return res, nil
}

func (s *Store) append(ctx context.Context, samples []models.Sample) (AppendResult, []models.Sample, error) {
	var res AppendResult

	if err := ctx.Err(); err != nil {
		return res, nil, err
	}

	if s.isClosed() {
		return res, nil, ErrStoreUnavailable
	}

	appended := make([]models.Sample, 0, len(samples))

	for i := range samples {
		sample := &samples[i]

		outcome, err := s.appendOne(sample)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return res, appended, err
			}

			res.Rejected = append(res.Rejected, Rejection{
				Series:    sample.Labels.String(),
				Timestamp: sample.Timestamp,
				Reason:    rejectionReason(err),
				Err:       err,
			})
			s.metrics.SampleRejected(rejectionReason(err))

			continue
		}

		switch outcome {
		case outcomeAppended:
			res.Appended++

			appended = append(appended, *sample)
		case outcomeDuplicate:
			res.Duplicates++
		case outcomeDownsampled:
			res.Downsampled++
		}
	}

	s.metrics.SamplesAppended(res.Appended)

	res.Accepted = appended

	return res, appended, nil
}

func (s *Store) appendOne(sample *models.Sample) (appendOutcome, error) {
	if err := validateLabels(sample.Labels); err != nil {
		return outcomeAppended, err
	}

	p := models.Point{T: sample.Timestamp, V: sample.Value}

	for {
		ms, err := s.getOrCreate(sample.Labels)
		if err != nil {
			return outcomeAppended, err
		}

		outcome, err := ms.append(p, s.resolution)
		if errors.Is(err, errSeriesRemoved) {
			continue
		}

		return outcome, err
	}
}

func validateLabels(lbls labels.Labels) error {
	name := lbls.Get(labels.MetricName)
	if name == "" || !model.MetricNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var err error

	lbls.Range(func(l labels.Label) {
		if err != nil {
			return
		}

		if !model.LabelNameRE.MatchString(l.Name) {
			err = fmt.Errorf("%w: name %q", ErrInvalidLabel, l.Name)
			return
		}

		if l.Value == "" {
			err = fmt.Errorf("%w: empty value for %q", ErrInvalidLabel, l.Name)
		}
	})

	return err
}

func (s *Store) lookup(lbls labels.Labels, hash uint64) *memSeries {
	for _, ms := range s.series[hash] {
		if labels.Equal(ms.lbls, lbls) {
			return ms
		}
	}

	return nil
}

func (s *Store) getOrCreate(lbls labels.Labels) (*memSeries, error) {
	hash := lbls.Hash()

	s.mu.RLock()
	ms := s.lookup(lbls, hash)
	s.mu.RUnlock()

	if ms != nil {
		return ms, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreUnavailable
	}

	if ms = s.lookup(lbls, hash); ms != nil {
		return ms, nil
	}

	ms = newMemSeries(lbls.Copy())
	s.series[hash] = append(s.series[hash], ms)
	s.count++
	s.metrics.SetSeries(s.count)

	return ms, nil
}

// matching returns the series matching every matcher, sorted by labels.
func (s *Store) matching(ctx context.Context, matchers []*labels.Matcher) ([]*memSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreUnavailable
	}

	var out []*memSeries

	for _, bucket := range s.series {
		for _, ms := range bucket {
			if matchesAll(ms.lbls, matchers) {
				out = append(out, ms)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return labels.Compare(out[i].lbls, out[j].lbls) < 0
	})

	return out, nil
}

func matchesAll(lbls labels.Labels, matchers []*labels.Matcher) bool {
	for _, m := range matchers {
		if !m.Matches(lbls.Get(m.Name)) {
			return false
		}
	}

	return true
}

// Select returns copies of the points in [mint, maxt] of every series
// matching all matchers. Series with no points in range are omitted, and
// an unknown metric name yields an empty result.
func (s *Store) Select(ctx context.Context, mint, maxt int64, matchers []*labels.Matcher) ([]models.Series, error) {
	if mint > maxt {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, mint, maxt)
	}

	candidates, err := s.matching(ctx, matchers)
	if err != nil {
		return nil, err
	}

	out := make([]models.Series, 0, len(candidates))

	for _, ms := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points := ms.rangeCopy(mint, maxt)
		if len(points) == 0 {
			continue
		}

		out = append(out, models.Series{Labels: ms.lbls, Points: points})
	}

	return out, nil
}

// Series returns the label sets of the series matching all matchers.
func (s *Store) Series(ctx context.Context, matchers []*labels.Matcher) ([]labels.Labels, error) {
	candidates, err := s.matching(ctx, matchers)
	if err != nil {
		return nil, err
	}

	out := make([]labels.Labels, 0, len(candidates))
	for _, ms := range candidates {
		out = append(out, ms.lbls)
	}

	return out, nil
}

// LabelNames returns every label name in use, sorted.
func (s *Store) LabelNames(ctx context.Context) ([]string, error) {
	candidates, err := s.matching(ctx, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	for _, ms := range candidates {
		ms.lbls.Range(func(l labels.Label) {
			seen[l.Name] = struct{}{}
		})
	}

	return sortedKeys(seen), nil
}

// LabelValues returns the distinct values of the named label, sorted.
func (s *Store) LabelValues(ctx context.Context, name string) ([]string, error) {
	candidates, err := s.matching(ctx, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	for _, ms := range candidates {
		if v := ms.lbls.Get(name); v != "" {
			seen[v] = struct{}{}
		}
	}

	return sortedKeys(seen), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

// SeriesCount returns the number of series held.
func (s *Store) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}

// Truncate drops samples older than before and removes series left empty.
// It returns the number of removed series.
func (s *Store) Truncate(before time.Time) int {
	cutoff := before.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for hash, bucket := range s.series {
		kept := bucket[:0]

		for _, ms := range bucket {
			if ms.truncate(cutoff) > 0 {
				kept = append(kept, ms)
				continue
			}

			removed++
		}

		if len(kept) == 0 {
			delete(s.series, hash)
			continue
		}

		s.series[hash] = kept
	}

	s.count -= removed
	s.metrics.SetSeries(s.count)

	if removed > 0 {
		log.Printf("Retention removed %d empty series", removed)
	}

	return removed
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.closed
}

// Close releases the series. Later reads and writes fail with
// ErrStoreUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.series = make(map[uint64][]*memSeries)
	s.count = 0

	return nil
}
