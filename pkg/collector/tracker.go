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

	"github.com/mfreeman451/meshradar/pkg/models"
)

// NodeTracker is the in-memory node database, keyed by node number.
type NodeTracker struct {
	mu    sync.RWMutex
	nodes map[uint32]*models.Node
}

func NewNodeTracker() *NodeTracker {
	return &NodeTracker{nodes: make(map[uint32]*models.Node)}
}

func ptr[T any](v *T) *T {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

// Update merges a partial update. Only fields set in u overwrite the record
// and last heard never moves backwards.
func (t *NodeTracker) Update(u models.NodeUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[u.Num]
	if !ok {
		n = &models.Node{Num: u.Num}
		t.nodes[u.Num] = n
	}

	if u.User != nil {
		n.User = ptr(u.User)
	}

	if u.Position != nil {
		n.Position = ptr(u.Position)
	}

	if u.HopCount != nil {
		n.HopCount = ptr(u.HopCount)
	}

	if u.HopLimit != nil {
		n.HopLimit = ptr(u.HopLimit)
	}

	if u.RSSI != nil {
		n.RSSI = ptr(u.RSSI)
	}

	if u.SNR != nil {
		n.SNR = ptr(u.SNR)
	}

	if u.Heard.After(n.LastHeard) {
		n.LastHeard = u.Heard
	}
}

func copyNode(n *models.Node) models.Node {
	return models.Node{
		Num:       n.Num,
		User:      ptr(n.User),
		Position:  ptr(n.Position),
		HopCount:  ptr(n.HopCount),
		HopLimit:  ptr(n.HopLimit),
		RSSI:      ptr(n.RSSI),
		SNR:       ptr(n.SNR),
		LastHeard: n.LastHeard,
	}
}

// Get returns a copy of one node record.
func (t *NodeTracker) Get(num uint32) (models.Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[num]
	if !ok {
		return models.Node{}, false
	}

	return copyNode(n), true
}

// Snapshot returns copies of the nodes heard within staleAfter of now,
// sorted by number. A non-positive staleAfter returns every node.
func (t *NodeTracker) Snapshot(now time.Time, staleAfter time.Duration) []models.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Node, 0, len(t.nodes))

	for _, n := range t.nodes {
		if staleAfter > 0 && now.Sub(n.LastHeard) > staleAfter {
			continue
		}

		out = append(out, copyNode(n))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })

	return out
}

func (t *NodeTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.nodes)
}
