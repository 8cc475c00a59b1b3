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

package api

import (
	"context"
	"time"

	"github.com/mfreeman451/meshradar/pkg/collector"
	"github.com/mfreeman451/meshradar/pkg/dashboard"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
	"github.com/prometheus/prometheus/model/labels"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/mfreeman451/meshradar/pkg/api Querier

// Querier evaluates queries.
type Querier interface {
	InstantQuery(ctx context.Context, q string, ts time.Time) (promql.Value, error)
	RangeQuery(ctx context.Context, q string, start, end time.Time, step time.Duration) (promql.Value, error)
}

// SeriesReader answers metadata queries.
type SeriesReader interface {
	Series(ctx context.Context, matchers []*labels.Matcher) ([]labels.Labels, error)
	LabelNames(ctx context.Context) ([]string, error)
	LabelValues(ctx context.Context, name string) ([]string, error)
	SeriesCount() int
}

// MeshService accepts pushed data and exposes the node database.
type MeshService interface {
	Ingest(ctx context.Context, batch []models.Sample) (tsdb.AppendResult, error)
	HandlePackets(packets []models.Packet) (int, error)
	UpdateNodes(nodes []models.NodeInfo, now time.Time) (int, error)
	Nodes(now time.Time) []models.Node
	Node(num uint32) (models.Node, bool)
	Status() collector.ServiceStatus
}

// PanelRunner evaluates dashboard panels.
type PanelRunner interface {
	RunPanel(ctx context.Context, p *dashboard.Panel, tr dashboard.TimeRange) (*dashboard.PanelResult, error)
	Run(ctx context.Context, d *dashboard.Dashboard, tr dashboard.TimeRange) []*dashboard.PanelResult
}

// Subscriber hands out live sample feeds.
type Subscriber interface {
	Subscribe() chan []models.Sample
	Unsubscribe(ch chan []models.Sample)
	SubCount() int
}
