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

// Package broker fans appended sample batches out to live subscribers.
package broker

import (
	"sync/atomic"

	"github.com/mfreeman451/meshradar/pkg/models"
)

const subscriberBuffer = 256

// Broker delivers every published batch to all subscribers. A subscriber
// whose buffer is full misses the batch rather than blocking ingestion.
type Broker struct {
	subCount  atomic.Int64
	dropCount atomic.Uint64

	stopCh    chan struct{}
	publishCh chan []models.Sample
	subCh     chan chan []models.Sample
	unsubCh   chan chan []models.Sample
}

func New() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan []models.Sample, 16),
		subCh:     make(chan chan []models.Sample),
		unsubCh:   make(chan chan []models.Sample),
	}
}

// Start runs the fan-out loop until Stop is called.
func (b *Broker) Start() {
	subs := make(map[chan []models.Sample]struct{})

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}

			return
		case ch := <-b.subCh:
			subs[ch] = struct{}{}
			b.subCount.Store(int64(len(subs)))
		case ch := <-b.unsubCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

			b.subCount.Store(int64(len(subs)))
		case batch := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- batch:
				default:
					b.dropCount.Add(1)
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber. The channel is closed on
// Unsubscribe or Stop.
func (b *Broker) Subscribe() chan []models.Sample {
	ch := make(chan []models.Sample, subscriberBuffer)

	select {
	case b.subCh <- ch:
	case <-b.stopCh:
		close(ch)
	}

	return ch
}

func (b *Broker) Unsubscribe(ch chan []models.Sample) {
	select {
	case b.unsubCh <- ch:
	case <-b.stopCh:
	}
}

// Publish implements collector.Publisher.
func (b *Broker) Publish(batch []models.Sample) {
	select {
	case b.publishCh <- batch:
	case <-b.stopCh:
	}
}

func (b *Broker) SubCount() int {
	return int(b.subCount.Load())
}

func (b *Broker) DropCount() uint64 {
	return b.dropCount.Load()
}
