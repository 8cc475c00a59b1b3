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

// Package server pkg/server/server.go wires the store, query engine,
// collector, dashboards and HTTP API into one lifecycle.Service.
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/api"
	"github.com/mfreeman451/meshradar/pkg/broker"
	"github.com/mfreeman451/meshradar/pkg/collector"
	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/dashboard"
	"github.com/mfreeman451/meshradar/pkg/db"
	httpx "github.com/mfreeman451/meshradar/pkg/http"
	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
)

// Server owns every long-running component of meshradar.
type Server struct {
	config     *config.Config
	metrics    *metrics.Metrics
	db         db.Service
	batch      *tsdb.BatchWriter
	store      *tsdb.Store
	engine     *promql.Engine
	broker     *broker.Broker
	mesh       *collector.Service
	dashboards *dashboard.Registry
	api        *api.APIServer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewServer builds the components from a validated config.
func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{
		config:  cfg,
		metrics: metrics.New(),
		broker:  broker.New(),
	}

	storeOpts := tsdb.Options{
		Resolution: time.Duration(cfg.Storage.Resolution),
		Metrics:    s.metrics,
	}

	if cfg.DBPath != "" {
		database, err := db.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToOpenDB, err)
		}

		s.db = database
		s.batch = tsdb.NewBatchWriter(database, tsdb.BatchOptions{Metrics: s.metrics})
		storeOpts.Persister = s.batch
	}

	s.store = tsdb.NewStore(storeOpts)
	s.engine = promql.NewEngine(s.store, promql.Options{
		LookbackDelta: time.Duration(cfg.Storage.LookbackDelta),
		Timeout:       time.Duration(cfg.Query.Timeout),
		MaxSamples:    cfg.Query.MaxSamples,
		MaxRetries:    cfg.Query.MaxRetries,
		RetryBackoff:  time.Duration(cfg.Query.RetryBackoff),
		Metrics:       s.metrics,
	})

	mesh, err := collector.NewService(&cfg.Collector, s.store, s.broker, s.metrics)
	if err != nil {
		_ = s.closeDB()
		return nil, err
	}

	s.mesh = mesh

	if s.dashboards, err = loadDashboards(cfg.Dashboards); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	var auth *httpx.Authenticator
	if cfg.Auth != nil && cfg.Auth.Secret != "" {
		auth = httpx.NewAuthenticator(cfg.Auth.Secret)
	}

	s.api = api.NewAPIServer(api.Options{
		ListenAddr: cfg.ListenAddr,
		MaxConns:   cfg.MaxConns,
		Engine:     s.engine,
		Series:     s.store,
		Mesh:       s.mesh,
		Dashboards: s.dashboards,
		Runner:     dashboard.NewRunner(s.engine, 0),
		Stream:     s.broker,
		Metrics:    s.metrics,
		Auth:       auth,
	})

	return s, nil
}

func loadDashboards(paths []string) (*dashboard.Registry, error) {
	reg := dashboard.NewRegistry()

	bundled, err := dashboard.Bundled()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadDashboard, err)
	}

	if err := reg.Add(bundled); err != nil {
		return nil, err
	}

	for _, path := range paths {
		d, err := dashboard.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", errFailedToLoadDashboard, path, err)
		}

		if err := reg.Add(d); err != nil {
			return nil, fmt.Errorf("%w %s: %w", errFailedToLoadDashboard, path, err)
		}
	}

	return reg, nil
}

// API returns the HTTP server, mostly for its bound address.
func (s *Server) API() *api.APIServer { return s.api }

func (s *Server) Store() *tsdb.Store { return s.store }

func (s *Server) Mesh() *collector.Service { return s.mesh }

// Start restores persisted samples, then starts the background loops, the
// collector and the HTTP API.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errAlreadyStarted
	}

	retention := time.Duration(s.config.Storage.Retention)

	if s.db != nil {
		if _, err := s.store.Restore(ctx, s.db, time.Now().Add(-retention)); err != nil {
			log.Printf("Failed to restore samples: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)

	if s.batch != nil {
		s.batch.Start(ctx)
	}

	s.wg.Add(2)

	go func() {
		defer s.wg.Done()

		s.broker.Start()
	}()

	go func() {
		defer s.wg.Done()

		var cleaner tsdb.Cleaner
		if s.db != nil {
			cleaner = s.db
		}

		s.store.RunRetention(ctx, retention, cleaner)
	}()

	if err := s.mesh.Start(ctx); err != nil {
		cancel()
		s.broker.Stop()
		s.wg.Wait()

		return fmt.Errorf("failed to start collector: %w", err)
	}

	if err := s.api.Start(ctx); err != nil {
		cancel()

		_ = s.mesh.Stop()

		s.broker.Stop()
		s.wg.Wait()

		return fmt.Errorf("failed to start API server: %w", err)
	}

	s.cancel = cancel
	s.running = true

	return nil
}

// Stop shuts the API down first so no new writes arrive, then the
// collector, and flushes pending samples to disk last.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.api.Stop(ctx); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}

	if err := s.mesh.Stop(); err != nil {
		log.Printf("Error stopping collector: %v", err)
	}

	s.broker.Stop()
	s.cancel()
	s.wg.Wait()

	if s.batch != nil {
		s.batch.Stop()
	}

	s.running = false

	if err := s.store.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}

	return s.closeDB()
}

func (s *Server) closeDB() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
