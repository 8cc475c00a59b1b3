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

// Package api serves the HTTP query surface: the Prometheus-compatible
// /api/v1 endpoints, push ingestion, node and dashboard views, and the
// live sample stream.
package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mfreeman451/meshradar/pkg/dashboard"
	httpx "github.com/mfreeman451/meshradar/pkg/http"
	"github.com/mfreeman451/meshradar/pkg/metrics"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

const (
	defaultMaxConns   = 256
	defaultWriteRate  = 50
	defaultWriteBurst = 100
	maxBodyBytes      = 8 << 20
	slowRequest       = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Options configures an APIServer. Any of the backends may be nil, in
// which case the routes depending on it are not registered.
type Options struct {
	ListenAddr string
	MaxConns   int
	Engine     Querier
	Series     SeriesReader
	Mesh       MeshService
	Dashboards *dashboard.Registry
	Runner     PanelRunner
	Stream     Subscriber
	Metrics    *metrics.Metrics
	Auth       *httpx.Authenticator
	// WriteRate bounds push requests per second across all clients.
	WriteRate  rate.Limit
	WriteBurst int
}

type APIServer struct {
	opts    Options
	router  *mux.Router
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
	closed   bool
	streams  sync.WaitGroup
}

func NewAPIServer(opts Options) *APIServer {
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}

	if opts.WriteRate <= 0 {
		opts.WriteRate = defaultWriteRate
	}

	if opts.WriteBurst <= 0 {
		opts.WriteBurst = defaultWriteBurst
	}

	s := &APIServer{
		opts:    opts,
		router:  mux.NewRouter(),
		limiter: rate.NewLimiter(opts.WriteRate, opts.WriteBurst),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.LoggingMiddleware(slowRequest))

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	if s.opts.Engine != nil {
		v1.HandleFunc("/query", s.query).Methods("GET", "POST")
		v1.HandleFunc("/query_range", s.queryRange).Methods("GET", "POST")
	}

	if s.opts.Series != nil {
		v1.HandleFunc("/series", s.series).Methods("GET", "POST")
		v1.HandleFunc("/labels", s.labelNames).Methods("GET", "POST")
		v1.HandleFunc("/label/{name}/values", s.labelValues).Methods("GET")
		s.router.HandleFunc("/api/status", s.getStatus).Methods("GET")
	}

	if s.opts.Mesh != nil {
		v1.Handle("/write", s.push(s.write)).Methods("POST")
		v1.Handle("/packets", s.push(s.packets)).Methods("POST")
		v1.Handle("/nodes", s.push(s.pushNodes)).Methods("POST")

		s.router.HandleFunc("/api/nodes", s.getNodes).Methods("GET")
		s.router.HandleFunc("/api/nodes/{num}", s.getNode).Methods("GET")
	}

	if s.opts.Stream != nil {
		v1.HandleFunc("/stream", s.stream).Methods("GET")
	}

	if s.opts.Dashboards != nil && s.opts.Runner != nil {
		s.router.HandleFunc("/api/dashboards", s.listDashboards).Methods("GET")
		s.router.HandleFunc("/api/dashboards/{uid}", s.getDashboard).Methods("GET")
		s.router.HandleFunc("/api/dashboards/{uid}/panels", s.runDashboard).Methods("GET")
		s.router.HandleFunc("/api/dashboards/{uid}/panels/{id:[0-9]+}", s.runPanel).Methods("GET")
	}

	s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods("GET")
}

// push guards an ingestion handler with the bearer check and the shared
// write limiter.
func (s *APIServer) push(h http.HandlerFunc) http.Handler {
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			respondError(w, ErrRateLimited)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		h(w, r)
	})

	return httpx.RequireAuth(s.opts.Auth, limited)
}

// Handler returns the routed handler. CORS wraps the router so preflight
// requests are answered before method matching.
func (s *APIServer) Handler() http.Handler {
	return httpx.CommonMiddleware(s.router)
}

// Start binds the listen address and serves in the background.
func (s *APIServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return ErrAlreadyStarted
	}

	l, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return err
	}

	s.listener = netutil.LimitListener(l, s.opts.MaxConns)
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Printf("Starting HTTP server on %s", l.Addr())

	go func(srv *http.Server, l net.Listener) {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}(s.srv, s.listener)

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *APIServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop closes live streams and shuts the HTTP server down.
func (s *APIServer) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}

	srv := s.srv
	s.mu.Unlock()

	s.streams.Wait()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
