package tsdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type capturePersister struct {
	samples []models.Sample
}

func (c *capturePersister) Persist(samples []models.Sample) {
	c.samples = append(c.samples, samples...)
}

func TestAppendForwardsOnlyAcceptedSamples(t *testing.T) {
	p := &capturePersister{}
	s := NewStore(Options{Persister: p})

	_, err := s.Append(context.Background(), []models.Sample{
		models.NewSample("node_snr", at(0), 1, "num", "1"),
		models.NewSample("node_snr", at(0), 1, "num", "1"),
		models.NewSample("node_snr", at(10), 2, "num", "1"),
	})
	require.NoError(t, err)
	assert.Len(t, p.samples, 2)
}

func TestBatchWriterFlushesOnStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := NewMockSampleWriter(ctrl)

	var stored []models.Sample

	writer.EXPECT().StoreSamples(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, samples []models.Sample) error {
			stored = append(stored, samples...)
			return nil
		}).MinTimes(1)

	bw := NewBatchWriter(writer, BatchOptions{FlushInterval: time.Hour, BatchSize: 100})
	bw.Start(context.Background())

	bw.Persist([]models.Sample{
		models.NewSample("node_snr", at(0), 1, "num", "1"),
		models.NewSample("node_snr", at(10), 2, "num", "1"),
		models.NewSample("node_snr", at(20), 3, "num", "1"),
	})

	bw.Stop()

	assert.Len(t, stored, 3)
	assert.Zero(t, bw.Dropped())
}

func TestBatchWriterFlushesFullBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := NewMockSampleWriter(ctrl)
	flushed := make(chan int, 4)

	writer.EXPECT().StoreSamples(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, samples []models.Sample) error {
			flushed <- len(samples)
			return nil
		}).AnyTimes()

	bw := NewBatchWriter(writer, BatchOptions{FlushInterval: time.Hour, BatchSize: 2})
	bw.Start(context.Background())

	defer bw.Stop()

	bw.Persist([]models.Sample{
		models.NewSample("node_snr", at(0), 1, "num", "1"),
		models.NewSample("node_snr", at(10), 2, "num", "1"),
	})

	select {
	case n := <-flushed:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not flushed")
	}
}

func TestBatchWriterDropsWhenQueueFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bw := NewBatchWriter(NewMockSampleWriter(ctrl), BatchOptions{QueueSize: 1})

	bw.Persist([]models.Sample{
		models.NewSample("node_snr", at(0), 1, "num", "1"),
		models.NewSample("node_snr", at(10), 2, "num", "1"),
	})

	assert.Equal(t, uint64(1), bw.Dropped())
}

func TestRestore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	loader := NewMockSampleLoader(ctrl)
	since := at(0)

	loader.EXPECT().LoadSamples(gomock.Any(), since).Return([]models.Sample{
		models.NewSample("node_snr", at(10), 1, "num", "1"),
		models.NewSample("node_snr", at(20), 2, "num", "1"),
	}, nil)

	p := &capturePersister{}
	s := NewStore(Options{Persister: p})

	res, err := s.Restore(context.Background(), loader, since)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Appended)
	assert.Empty(t, p.samples)
	assert.Equal(t, 1, s.SeriesCount())
}

func TestRestoreLoaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	loader := NewMockSampleLoader(ctrl)
	loader.EXPECT().LoadSamples(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk gone"))

	_, err := NewStore(Options{}).Restore(context.Background(), loader, at(0))
	assert.Error(t, err)
}
