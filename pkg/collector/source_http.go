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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/models"
	"golang.org/x/time/rate"
)

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxResponseBytes    = 8 << 20
)

// HTTPSource polls a gateway's JSON node database and merges every entry
// into the tracker.
type HTTPSource struct {
	name     string
	url      string
	retries  int
	backoff  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	tracker  *NodeTracker
	now      func() time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	status   SourceStatus
	stopOnce sync.Once
}

// NewHTTPSource validates the source configuration.
func NewHTTPSource(cfg *config.SourceConfig, tracker *NodeTracker) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, ErrSourceURLRequired
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSourceURL, cfg.URL)
	}

	interval := time.Duration(cfg.Interval)
	if interval <= 0 {
		interval = time.Minute
	}

	return &HTTPSource{
		name:    cfg.Name,
		url:     cfg.URL,
		retries: cfg.Retries,
		backoff: defaultRetryBackoff,
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout)},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		tracker: tracker,
		now:     time.Now,
		status:  SourceStatus{Name: cfg.Name, URL: cfg.URL},
	}, nil
}

func (s *HTTPSource) Name() string { return s.name }

// Start polls immediately and then once per interval until stopped.
func (s *HTTPSource) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)

	go s.run(ctx)

	return nil
}

// Stop halts polling and waits for an in-flight poll to return.
func (s *HTTPSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})

	s.wg.Wait()

	return nil
}

func (s *HTTPSource) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		n, err := s.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Printf("Source %s: poll failed: %v", s.name, err)

			continue
		}

		log.Printf("Source %s: merged %d nodes", s.name, n)
	}
}

// Poll fetches the node database once, retrying transient failures with
// exponential backoff, and returns the number of nodes merged.
func (s *HTTPSource) Poll(ctx context.Context) (int, error) {
	var (
		nodes []models.NodeInfo
		err   error
	)

	backoff := s.backoff

	for attempt := 0; ; attempt++ {
		nodes, err = s.fetch(ctx)
		if err == nil || !errors.Is(err, ErrSourceUnavailable) || attempt >= s.retries {
			break
		}

		log.Printf("Source %s: attempt %d failed, retrying in %v: %v", s.name, attempt+1, backoff, err)

		select {
		case <-ctx.Done():
			s.setStatus(0, ctx.Err())
			return 0, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if err != nil {
		s.setStatus(0, err)
		return 0, err
	}

	now := s.now()
	for i := range nodes {
		if nodes[i].Num == 0 {
			continue
		}

		s.tracker.Update(nodes[i].Update(now))
	}

	s.setStatus(len(nodes), nil)

	return len(nodes), nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]models.NodeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrSourceStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return decodeNodes(body)
}

// decodeNodes accepts a JSON array of node entries or an object keyed by
// node id, optionally wrapped in {"nodes": ...}.
func decodeNodes(data []byte) ([]models.NodeInfo, error) {
	var list []models.NodeInfo
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Nodes json.RawMessage `json:"nodes"`
	}

	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Nodes) > 0 {
		data = wrapped.Nodes

		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
	}

	var byID map[string]models.NodeInfo
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeNodes, err)
	}

	list = make([]models.NodeInfo, 0, len(byID))
	for _, n := range byID {
		list = append(list, n)
	}

	return list, nil
}

func (s *HTTPSource) setStatus(nodes int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastPoll = s.now()
	s.status.Available = err == nil
	s.status.Nodes = nodes
	s.status.Error = ""

	if err != nil {
		s.status.Error = err.Error()
	}
}

// Status returns the outcome of the last poll.
func (s *HTTPSource) Status() SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}
