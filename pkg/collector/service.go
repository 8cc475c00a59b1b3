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
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
)

// Service owns the node database, its sources and the emitter, and feeds
// emitted batches into the store.
type Service struct {
	tracker   *NodeTracker
	handler   *PacketHandler
	collector Collector
	sources   []Source
	store     Appender
	publisher Publisher

	staleAfter time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// ServiceStatus is the combined status of the emitter and every source.
type ServiceStatus struct {
	Collector Status         `json:"collector"`
	Sources   []SourceStatus `json:"sources"`
	Nodes     int            `json:"nodes"`
}

// NewService wires a tracker, packet handler, emitter and one source per
// configured gateway. publisher may be nil.
func NewService(cfg *config.CollectorConfig, store Appender, publisher Publisher, m *metrics.Metrics) (*Service, error) {
	tracker := NewNodeTracker()
	handler := NewPacketHandler(tracker, m)

	mc, err := NewMeshCollector(cfg, tracker, handler)
	if err != nil {
		return nil, err
	}

	s := newService(tracker, handler, mc, store, publisher)
	s.staleAfter = time.Duration(cfg.StaleAfter)

	for i := range cfg.Sources {
		src, err := newSource(&cfg.Sources[i], tracker, handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", cfg.Sources[i].Name, err)
		}

		s.sources = append(s.sources, src)
	}

	return s, nil
}

func newSource(cfg *config.SourceConfig, tracker *NodeTracker, handler *PacketHandler) (Source, error) {
	switch cfg.Type {
	case "", config.SourceHTTP:
		return NewHTTPSource(cfg, tracker)
	case config.SourceTCP:
		return NewStreamSource(cfg, tracker, handler)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, cfg.Type)
	}
}

func newService(tracker *NodeTracker, handler *PacketHandler, c Collector, store Appender, publisher Publisher) *Service {
	return &Service{
		tracker:   tracker,
		handler:   handler,
		collector: c,
		store:     store,
		publisher: publisher,
	}
}

func (s *Service) Tracker() *NodeTracker { return s.tracker }

func (s *Service) Handler() *PacketHandler { return s.handler }

// Start starts the sources and the emitter and begins draining results.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServiceAlreadyRuns
	}

	ctx, cancel := context.WithCancel(ctx)

	for _, src := range s.sources {
		if err := src.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("failed to start source %s: %w", src.Name(), err)
		}
	}

	if err := s.collector.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start collector: %w", err)
	}

	s.cancel = cancel
	s.running = true

	s.wg.Add(1)

	go s.drain(ctx)

	log.Printf("Collector service started with %d sources", len(s.sources))

	return nil
}

// Stop halts the emitter and sources and waits for the drain loop.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceNotStarted
	}

	s.cancel()

	for _, src := range s.sources {
		if err := src.Stop(); err != nil {
			log.Printf("Error stopping source %s: %v", src.Name(), err)
		}
	}

	if err := s.collector.Stop(); err != nil {
		log.Printf("Error stopping collector: %v", err)
	}

	s.wg.Wait()
	s.running = false

	return nil
}

func (s *Service) drain(ctx context.Context) {
	defer s.wg.Done()

	results := s.collector.GetResults()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-results:
			if !ok {
				return
			}

			s.Ingest(ctx, batch)
		}
	}
}

// Ingest appends a batch to the store and publishes the accepted samples.
func (s *Service) Ingest(ctx context.Context, batch []models.Sample) (tsdb.AppendResult, error) {
	res, err := s.store.Append(ctx, batch)
	if err != nil {
		log.Printf("Failed to append %d samples: %v", len(batch), err)
		return res, err
	}

	if len(res.Rejected) > 0 {
		log.Printf("Store rejected %d of %d samples, first: %v", len(res.Rejected), len(batch), res.Rejected[0].Err)
	}

	if s.publisher != nil && len(res.Accepted) > 0 {
		s.publisher.Publish(res.Accepted)
	}

	return res, nil
}

// HandlePackets feeds pushed packets through the packet handler. It stops
// at the first invalid packet and reports how many were handled.
func (s *Service) HandlePackets(packets []models.Packet) (int, error) {
	for i := range packets {
		if err := s.handler.HandlePacket(&packets[i]); err != nil {
			return i, fmt.Errorf("packet %d: %w", i, err)
		}
	}

	return len(packets), nil
}

// UpdateNodes merges pushed node-database entries into the tracker.
func (s *Service) UpdateNodes(nodes []models.NodeInfo, now time.Time) (int, error) {
	for i := range nodes {
		if nodes[i].Num == 0 {
			return i, fmt.Errorf("node %d: %w", i, ErrInvalidNode)
		}

		s.tracker.Update(nodes[i].Update(now))
	}

	return len(nodes), nil
}

// Nodes returns the nodes that are not stale at now.
func (s *Service) Nodes(now time.Time) []models.Node {
	return s.tracker.Snapshot(now, s.staleAfter)
}

// Node returns a single node, stale or not.
func (s *Service) Node(num uint32) (models.Node, bool) {
	return s.tracker.Get(num)
}

// Status reports the emitter and every source.
func (s *Service) Status() ServiceStatus {
	st := ServiceStatus{
		Collector: s.collector.GetStatus(),
		Sources:   make([]SourceStatus, 0, len(s.sources)),
		Nodes:     s.tracker.Len(),
	}

	for _, src := range s.sources {
		st.Sources = append(st.Sources, src.Status())
	}

	return st
}
