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

package collector

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/models"
)

// MeshCollector periodically emits samples for every node heard recently
// and the running packet counters.
type MeshCollector struct {
	job        string
	instance   string
	interval   time.Duration
	staleAfter time.Duration
	tracker    *NodeTracker
	handler    *PacketHandler
	dataChan   chan []models.Sample
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	status     Status
}

// NewMeshCollector creates an emitter for the tracker and handler.
func NewMeshCollector(cfg *config.CollectorConfig, tracker *NodeTracker, handler *PacketHandler) (*MeshCollector, error) {
	if cfg.EmitInterval <= 0 {
		return nil, ErrInvalidInterval
	}

	return &MeshCollector{
		job:        cfg.Job,
		instance:   cfg.Instance,
		interval:   time.Duration(cfg.EmitInterval),
		staleAfter: time.Duration(cfg.StaleAfter),
		tracker:    tracker,
		handler:    handler,
		dataChan:   make(chan []models.Sample, 4),
		done:       make(chan struct{}),
	}, nil
}

// Start implements the Collector interface.
func (c *MeshCollector) Start(ctx context.Context) error {
	go c.collect(ctx)

	return nil
}

// Stop implements the Collector interface.
func (c *MeshCollector) Stop() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

// GetResults implements the Collector interface.
func (c *MeshCollector) GetResults() <-chan []models.Sample {
	return c.dataChan
}

// GetStatus returns the status of the last emission.
func (c *MeshCollector) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.status
}

func (c *MeshCollector) collect(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if err := c.send(ctx, c.Emit(time.Now())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case now := <-ticker.C:
			if err := c.send(ctx, c.Emit(now)); err != nil {
				return
			}
		}
	}
}

func (c *MeshCollector) send(ctx context.Context, batch []models.Sample) error {
	if len(batch) == 0 {
		return nil
	}

	select {
	case c.dataChan <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrCollectorStopped
	}
}

// Emit builds the samples for one tick. The timestamp is truncated to the
// emit interval so repeating a tick writes identical samples.
func (c *MeshCollector) Emit(now time.Time) []models.Sample {
	ts := now.Truncate(c.interval)
	nodes := c.tracker.Snapshot(now, c.staleAfter)

	var samples []models.Sample

	for i := range nodes {
		samples = append(samples, c.nodeSamples(&nodes[i], ts)...)
	}

	for _, mc := range c.handler.MessageCounts() {
		samples = append(samples, c.sample(models.MetricMessageCount, ts, mc.Count, models.LabelType, mc.Type))
	}

	c.mu.Lock()
	c.status = Status{Available: true, LastEmit: ts, Nodes: len(nodes), Samples: len(samples)}
	c.mu.Unlock()

	if len(samples) > 0 {
		log.Printf("Emitting %d samples for %d nodes at %s", len(samples), len(nodes), ts.Format(time.RFC3339))
	}

	return samples
}

func (c *MeshCollector) sample(name string, ts time.Time, value float64, lbls ...string) models.Sample {
	lbls = append(lbls, models.LabelJob, c.job, models.LabelInstance, c.instance)

	return models.NewSample(name, ts, value, lbls...)
}

func (c *MeshCollector) nodeSamples(n *models.Node, ts time.Time) []models.Sample {
	num := n.NumLabel()

	info := []string{models.LabelNum, num, models.LabelID, n.DefaultID()}
	if u := n.User; u != nil {
		if u.ID != "" {
			info[3] = u.ID
		}

		info = append(info,
			models.LabelLongName, u.LongName,
			models.LabelShortName, u.ShortName,
			models.LabelHWModel, u.HWModel,
			models.LabelMacAddr, u.MacAddr,
			models.LabelIsLicensed, strconv.FormatBool(u.IsLicensed),
		)
	}

	out := []models.Sample{c.sample(models.MetricNodeInfo, ts, 1, info...)}

	gauge := func(name string, v float64) {
		out = append(out, c.sample(name, ts, v, models.LabelNum, num))
	}

	if p := n.Position; p != nil {
		gauge(models.MetricNodeLatitude, p.Latitude)
		gauge(models.MetricNodeLongitude, p.Longitude)
		gauge(models.MetricNodeAltitude, p.Altitude)
	}

	if n.HopCount != nil {
		gauge(models.MetricNodeHopCount, float64(*n.HopCount))
	}

	if n.HopLimit != nil {
		gauge(models.MetricNodeHopLimit, float64(*n.HopLimit))
	}

	if n.RSSI != nil {
		gauge(models.MetricNodeRSSI, *n.RSSI)
	}

	if n.SNR != nil {
		gauge(models.MetricNodeSNR, *n.SNR)
	}

	return out
}
