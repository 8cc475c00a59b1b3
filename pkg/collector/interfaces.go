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

// Package collector turns mesh radio packets and node database snapshots
// into samples.
package collector

import (
	"context"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
)

//go:generate mockgen -destination=mock_collector.go -package=collector github.com/mfreeman451/meshradar/pkg/collector Collector,Appender

// Collector produces batches of samples until stopped.
type Collector interface {
	// Start begins emitting samples
	Start(ctx context.Context) error
	// Stop halts emission
	Stop() error
	// GetResults returns a channel of emitted sample batches
	GetResults() <-chan []models.Sample
	GetStatus() Status
}

// Appender is the write side of the metrics store.
type Appender interface {
	Append(ctx context.Context, samples []models.Sample) (tsdb.AppendResult, error)
}

// Publisher receives every batch after it has been appended.
type Publisher interface {
	Publish(batch []models.Sample)
}

// Status describes the last emission of a collector.
type Status struct {
	Available bool      `json:"available"`
	LastEmit  time.Time `json:"last_emit"`
	Nodes     int       `json:"nodes"`
	Samples   int       `json:"samples"`
	Error     string    `json:"error,omitempty"`
}

// Source feeds the node tracker from one gateway until stopped.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Status() SourceStatus
}

// SourceStatus describes the last poll of a node database source.
type SourceStatus struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Available bool      `json:"available"`
	LastPoll  time.Time `json:"last_poll"`
	Nodes     int       `json:"nodes"`
	Error     string    `json:"error,omitempty"`
}
