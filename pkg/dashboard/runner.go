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

package dashboard

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/mfreeman451/meshradar/pkg/transform"
	"github.com/prometheus/prometheus/model/labels"
)

const (
	defaultMaxDataPoints = 300
	minStep              = time.Second
)

//go:generate mockgen -destination=mock_dashboard.go -package=dashboard github.com/mfreeman451/meshradar/pkg/dashboard QueryEngine

// QueryEngine evaluates panel targets.
type QueryEngine interface {
	InstantQuery(ctx context.Context, q string, ts time.Time) (promql.Value, error)
	RangeQuery(ctx context.Context, q string, start, end time.Time, step time.Duration) (promql.Value, error)
}

// TimeRange is the absolute range a panel is evaluated over. Instant
// targets are evaluated at To.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Step picks the range query resolution for the time range.
func (tr TimeRange) Step(maxPoints int) time.Duration {
	if maxPoints <= 0 {
		maxPoints = defaultMaxDataPoints
	}

	step := (tr.To.Sub(tr.From) / time.Duration(maxPoints)).Truncate(time.Second)
	if step < minStep {
		step = minStep
	}

	return step
}

// PanelResult is a panel's transformed tables.
type PanelResult struct {
	PanelID int               `json:"panelId"`
	Title   string            `json:"title"`
	Type    string            `json:"type"`
	Tables  []transform.Table `json:"tables"`
}

// Runner evaluates dashboard panels.
type Runner struct {
	engine        QueryEngine
	maxDataPoints int
}

func NewRunner(engine QueryEngine, maxDataPoints int) *Runner {
	return &Runner{engine: engine, maxDataPoints: maxDataPoints}
}

type targetResult struct {
	tables []transform.Table
	err    error
}

// RunPanel issues every visible target of the panel in parallel, converts
// the results into tables in target order and applies the panel's
// transformations.
func (r *Runner) RunPanel(ctx context.Context, p *Panel, tr TimeRange) (*PanelResult, error) {
	if tr.To.Before(tr.From) {
		return nil, ErrInvalidTimeRange
	}

	results := make([]targetResult, len(p.Targets))

	var wg sync.WaitGroup

	for i := range p.Targets {
		if p.Targets[i].Hide {
			continue
		}

		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			tables, err := r.runTarget(ctx, &p.Targets[i], tr)
			results[i] = targetResult{tables: tables, err: err}
		}(i)
	}

	wg.Wait()

	var tables []transform.Table

	for i, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("panel %d target %s: %w", p.ID, p.Targets[i].RefID, res.err)
		}

		tables = append(tables, res.tables...)
	}

	tables, err := transform.Apply(tables, p.Transformations)
	if err != nil {
		return nil, fmt.Errorf("panel %d: %w", p.ID, err)
	}

	if tables == nil {
		tables = []transform.Table{}
	}

	return &PanelResult{PanelID: p.ID, Title: p.Title, Type: p.Type, Tables: tables}, nil
}

// Run evaluates every panel of the dashboard. A failing panel is logged
// and left out of the result.
func (r *Runner) Run(ctx context.Context, d *Dashboard, tr TimeRange) []*PanelResult {
	out := make([]*PanelResult, 0, len(d.Panels))

	for i := range d.Panels {
		p := &d.Panels[i]
		if len(p.Targets) == 0 {
			continue
		}

		res, err := r.RunPanel(ctx, p, tr)
		if err != nil {
			log.Printf("Dashboard %s: %v", d.UID, err)
			continue
		}

		out = append(out, res)
	}

	return out
}

func (r *Runner) runTarget(ctx context.Context, t *Target, tr TimeRange) ([]transform.Table, error) {
	var tables []transform.Table

	if t.Instant {
		v, err := r.engine.InstantQuery(ctx, t.Expr, tr.To)
		if err != nil {
			return nil, err
		}

		tbl, err := transform.FromValue(t.RefID, v)
		if err != nil {
			return nil, err
		}

		tables = append(tables, tbl)
	}

	if t.IsRange() {
		v, err := r.engine.RangeQuery(ctx, t.Expr, tr.From, tr.To, tr.Step(r.maxDataPoints))
		if err != nil {
			return nil, err
		}

		m, ok := v.(promql.Matrix)
		if !ok {
			return nil, fmt.Errorf("%w: %s", transform.ErrUnsupportedValue, v.Type())
		}

		ranged := transform.FromMatrix(t.RefID, m)
		if t.LegendFormat != "" {
			for i := range ranged {
				ranged[i].Name = formatLegend(t.LegendFormat, m[i].Metric)
			}
		}

		tables = append(tables, ranged...)
	}

	return tables, nil
}

var legendRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// formatLegend expands {{label}} references in a legend template.
func formatLegend(format string, metric labels.Labels) string {
	return legendRe.ReplaceAllStringFunc(format, func(m string) string {
		name := legendRe.FindStringSubmatch(m)[1]
		return metric.Get(name)
	})
}
