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

package tsdb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfreeman451/meshradar/pkg/metrics"
	"github.com/mfreeman451/meshradar/pkg/models"
)

//go:generate mockgen -destination=mock_persist.go -package=tsdb github.com/mfreeman451/meshradar/pkg/tsdb SampleWriter,SampleLoader

const (
	defaultFlushInterval = time.Second
	defaultBatchSize     = 500
	defaultQueueSize     = 10000
)

// Persister receives every sample the store accepted. Persist must not block.
type Persister interface {
	Persist(samples []models.Sample)
}

// SampleWriter durably stores a batch of samples.
type SampleWriter interface {
	StoreSamples(ctx context.Context, samples []models.Sample) error
}

// SampleLoader reads back persisted samples, ascending per series.
type SampleLoader interface {
	LoadSamples(ctx context.Context, since time.Time) ([]models.Sample, error)
}

// BatchOptions tunes a BatchWriter.
type BatchOptions struct {
	FlushInterval time.Duration
	BatchSize     int
	QueueSize     int
	Metrics       *metrics.Metrics
}

// BatchWriter is a write-behind Persister. Samples are queued and written
// in batches when the batch fills or the flush ticker fires.
type BatchWriter struct {
	writer        SampleWriter
	queue         chan models.Sample
	flushInterval time.Duration
	batchSize     int
	metrics       *metrics.Metrics
	dropped       uint64
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func NewBatchWriter(writer SampleWriter, opts BatchOptions) *BatchWriter {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &BatchWriter{
		writer:        writer,
		queue:         make(chan models.Sample, opts.QueueSize),
		flushInterval: opts.FlushInterval,
		batchSize:     opts.BatchSize,
		metrics:       opts.Metrics,
		done:          make(chan struct{}),
	}
}

// Persist queues samples without blocking. When the queue is full the
// sample is dropped and counted.
func (b *BatchWriter) Persist(samples []models.Sample) {
	for i := range samples {
		select {
		case b.queue <- samples[i]:
		default:
			if n := atomic.AddUint64(&b.dropped, 1); n%1000 == 1 {
				log.Printf("Persist queue full, %d samples dropped so far", n)
			}
		}
	}
}

// Dropped returns the number of samples lost to a full queue.
func (b *BatchWriter) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Start runs the writer loop until ctx is done or Stop is called.
func (b *BatchWriter) Start(ctx context.Context) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		b.run(ctx)
	}()
}

func (b *BatchWriter) run(ctx context.Context) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	batch := make([]models.Sample, 0, b.batchSize)

	for {
		select {
		case <-ctx.Done():
			b.drain(&batch)
			b.flush(context.Background(), batch)

			return
		case <-b.done:
			b.drain(&batch)
			b.flush(context.Background(), batch)

			return
		case sample := <-b.queue:
			batch = append(batch, sample)

			if len(batch) >= b.batchSize {
				b.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			b.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (b *BatchWriter) drain(batch *[]models.Sample) {
	for {
		select {
		case sample := <-b.queue:
			*batch = append(*batch, sample)
		default:
			return
		}
	}
}

func (b *BatchWriter) flush(ctx context.Context, batch []models.Sample) {
	if len(batch) == 0 {
		return
	}

	if err := b.writer.StoreSamples(ctx, batch); err != nil {
		b.metrics.PersistFailed()
		log.Printf("Failed to persist %d samples: %v", len(batch), err)
	}
}

// Stop flushes queued samples and waits for the writer loop to exit.
func (b *BatchWriter) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})

	b.wg.Wait()
}

// Restore replays persisted samples newer than since into the store
// without forwarding them to the persister again.
func (s *Store) Restore(ctx context.Context, loader SampleLoader, since time.Time) (AppendResult, error) {
	samples, err := loader.LoadSamples(ctx, since)
	if err != nil {
		return AppendResult{}, fmt.Errorf("restore: %w", err)
	}

	res, _, err := s.append(ctx, samples)
	if err != nil {
		return res, fmt.Errorf("restore: %w", err)
	}

	log.Printf("Restored %d samples into %d series", res.Appended, s.SeriesCount())

	return res, nil
}
