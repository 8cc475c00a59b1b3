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
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/prometheus/prometheus/model/labels"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamMessage is one batch of live samples sent to a stream client.
type StreamMessage struct {
	Samples []models.Sample `json:"samples"`
}

func filterSamples(batch []models.Sample, matchers []*labels.Matcher) []models.Sample {
	if len(matchers) == 0 {
		return batch
	}

	out := make([]models.Sample, 0, len(batch))

	for i := range batch {
		if matchAll(batch[i].Labels, matchers) {
			out = append(out, batch[i])
		}
	}

	return out
}

func matchAll(lbls labels.Labels, matchers []*labels.Matcher) bool {
	for _, m := range matchers {
		if !m.Matches(lbls.Get(m.Name)) {
			return false
		}
	}

	return true
}

// beginStream registers a stream unless the server is stopping.
func (s *APIServer) beginStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.streams.Add(1)

	return true
}

func (s *APIServer) stream(w http.ResponseWriter, r *http.Request) {
	var matchers []*labels.Matcher

	if sel := r.FormValue("match"); sel != "" {
		m, err := parseSelector(sel)
		if err != nil {
			respondError(w, err)
			return
		}

		matchers = m
	}

	if !s.beginStream() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := s.opts.Stream.Subscribe()
	defer s.opts.Stream.Unsubscribe(ch)

	gone := make(chan struct{})

	go readPump(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), time.Now().Add(writeWait))

			return
		case <-gone:
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}

			samples := filterSamples(batch, matchers)
			if len(samples) == 0 {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteJSON(StreamMessage{Samples: samples}); err != nil {
				log.Printf("Stream write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames until the client goes away.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
