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
	"sort"
	"sync"
	"time"

	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/models"
)

// PacketHandler counts received packets by type and refreshes the
// sender's node record.
type PacketHandler struct {
	tracker *NodeTracker
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	counts map[string]float64
}

func NewPacketHandler(tracker *NodeTracker, m *metrics.Metrics) *PacketHandler {
	return &PacketHandler{
		tracker: tracker,
		metrics: m,
		now:     time.Now,
		counts:  make(map[string]float64),
	}
}

// HandlePacket records one received packet.
func (h *PacketHandler) HandlePacket(p *models.Packet) error {
	if p == nil || p.From == 0 {
		return ErrInvalidPacket
	}

	portType := p.Type()

	h.mu.Lock()
	h.counts[portType]++
	h.mu.Unlock()

	h.metrics.PacketReceived(portType)

	u := models.NodeUpdate{
		Num:      p.From,
		RSSI:     p.RxRSSI,
		SNR:      p.RxSNR,
		HopLimit: p.HopLimit,
		Heard:    h.now(),
	}

	if p.RxTime > 0 {
		u.Heard = time.Unix(p.RxTime, 0)
	}

	if hops, ok := p.HopsAway(); ok {
		u.HopCount = &hops
	}

	if p.Decoded != nil {
		switch p.Decoded.PortNum {
		case models.PortPosition:
			if pos, ok := p.Decoded.Position.Position(); ok {
				u.Position = &pos
			}
		case models.PortNodeInfo:
			u.User = p.Decoded.User
		}
	}

	h.tracker.Update(u)

	return nil
}

// MessageCount is the running total of one packet type.
type MessageCount struct {
	Type  string
	Count float64
}

// MessageCounts returns the per-type totals sorted by type.
func (h *PacketHandler) MessageCounts() []MessageCount {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]MessageCount, 0, len(h.counts))
	for t, c := range h.counts {
		out = append(out, MessageCount{Type: t, Count: c})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })

	return out
}
