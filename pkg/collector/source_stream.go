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
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/models"
)

const (
	defaultStreamPort   = "4403"
	defaultDialTimeout  = 10 * time.Second
	defaultHeartbeat    = 5 * time.Minute
	minReconnectBackoff = time.Second
	maxReconnectBackoff = time.Minute
)

// StreamSource holds a connection to a radio's TCP stream API. It asks for
// the radio's node database on connect and then feeds every received
// packet to the packet handler, reconnecting with backoff when the
// connection drops.
type StreamSource struct {
	name        string
	addr        string
	dialTimeout time.Duration
	heartbeat   time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	tracker     *NodeTracker
	handler     *PacketHandler
	now         func() time.Time
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	status      SourceStatus
	stopOnce    sync.Once
}

// NewStreamSource validates the source configuration. An address without
// a port gets the radio's default API port.
func NewStreamSource(cfg *config.SourceConfig, tracker *NodeTracker, handler *PacketHandler) (*StreamSource, error) {
	if cfg.Address == "" {
		return nil, ErrSourceAddress
	}

	addr := cfg.Address
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultStreamPort)
	}

	timeout := time.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	return &StreamSource{
		name:        cfg.Name,
		addr:        addr,
		dialTimeout: timeout,
		heartbeat:   defaultHeartbeat,
		minBackoff:  minReconnectBackoff,
		maxBackoff:  maxReconnectBackoff,
		tracker:     tracker,
		handler:     handler,
		now:         time.Now,
		status:      SourceStatus{Name: cfg.Name, URL: "tcp://" + addr},
	}, nil
}

func (s *StreamSource) Name() string { return s.name }

// Start connects in the background and returns immediately.
func (s *StreamSource) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)

	go s.run(ctx)

	return nil
}

// Stop closes the connection and waits for the reader to exit.
func (s *StreamSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})

	s.wg.Wait()

	return nil
}

func (s *StreamSource) run(ctx context.Context) {
	defer s.wg.Done()

	backoff := s.minBackoff

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}

		if connected {
			backoff = s.minBackoff
		}

		s.setError(err)
		log.Printf("Source %s: connection to %s lost, reconnecting in %v: %v", s.name, s.addr, backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, s.maxBackoff)
	}
}

// session runs one connection until it fails. connected reports whether
// the dial succeeded.
func (s *StreamSource) session(ctx context.Context) (connected bool, err error) {
	d := net.Dialer{Timeout: s.dialTimeout}

	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer conn.Close()

	// unblock the reader on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	configID := uint32(s.now().UnixNano()) | 1

	if err := writeFrame(conn, encodeWantConfig(configID)); err != nil {
		return true, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	log.Printf("Source %s: connected to %s", s.name, s.addr)
	s.setConnected()

	done := make(chan struct{})
	defer close(done)

	go s.keepAlive(conn, done)

	r := bufio.NewReader(conn)

	for {
		payload, err := readFrame(r)
		if err != nil {
			return true, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}

		s.handleFrame(payload, configID)
	}
}

// keepAlive sends heartbeats so the radio does not drop an idle client.
func (s *StreamSource) keepAlive(conn net.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := writeFrame(conn, encodeHeartbeat()); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *StreamSource) handleFrame(payload []byte, configID uint32) {
	msg, err := decodeFromRadio(payload)
	if err != nil {
		log.Printf("Source %s: skipping frame: %v", s.name, err)
		return
	}

	switch {
	case msg.Packet != nil:
		if err := s.handler.HandlePacket(msg.Packet); err != nil && !errors.Is(err, ErrInvalidPacket) {
			log.Printf("Source %s: failed to handle packet: %v", s.name, err)
		}
	case msg.Node != nil && msg.Node.Num != 0:
		s.tracker.Update(msg.Node.Update(s.now()))
		s.nodeSeen()
	case msg.MyNodeNum != 0:
		log.Printf("Source %s: gateway radio is %s", s.name, (&models.Node{Num: msg.MyNodeNum}).DefaultID())
	case msg.ConfigCompleteID == configID:
		log.Printf("Source %s: node database loaded with %d nodes", s.name, s.Status().Nodes)
	}

	s.mu.Lock()
	s.status.LastPoll = s.now()
	s.mu.Unlock()
}

func (s *StreamSource) setConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Available = true
	s.status.LastPoll = s.now()
	s.status.Nodes = 0
	s.status.Error = ""
}

func (s *StreamSource) nodeSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Nodes++
}

func (s *StreamSource) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Available = false

	if err != nil {
		s.status.Error = err.Error()
	}
}

// Status reports whether the radio is connected and how many node
// database entries it sent.
func (s *StreamSource) Status() SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}
