package broker

import (
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan []models.Sample) []models.Sample {
	t.Helper()

	select {
	case batch := <-ch:
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("no batch received")
	}

	return nil
}

func TestBrokerFanOut(t *testing.T) {
	b := New()
	go b.Start()
	defer b.Stop()

	a := b.Subscribe()
	c := b.Subscribe()

	assert.Eventually(t, func() bool { return b.SubCount() == 2 }, time.Second, time.Millisecond)

	batch := []models.Sample{models.NewSample("node_snr", time.Unix(0, 0), 1, "num", "1")}
	b.Publish(batch)

	assert.Equal(t, batch, receive(t, a))
	assert.Equal(t, batch, receive(t, c))

	b.Unsubscribe(a)

	_, open := <-a
	assert.False(t, open)
	assert.Eventually(t, func() bool { return b.SubCount() == 1 }, time.Second, time.Millisecond)
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := New()
	go b.Start()
	defer b.Stop()

	ch := b.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(nil)
	}

	assert.Eventually(t, func() bool { return b.DropCount() == 10 }, time.Second, time.Millisecond)
	require.Len(t, ch, subscriberBuffer)
}

func TestBrokerStopClosesSubscribers(t *testing.T) {
	b := New()
	go b.Start()

	ch := b.Subscribe()
	b.Stop()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber not closed")
	}

	b.Publish(nil)
	b.Unsubscribe(ch)
}
