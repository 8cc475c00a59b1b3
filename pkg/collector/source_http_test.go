package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeDB = `{
	"!00000001": {"num": 1, "user": {"id": "!00000001", "longName": "Alpha", "shortName": "ALF", "hwModel": "TBEAM"},
		"position": {"latitude": 52.5, "longitude": 13.4, "altitude": 30}, "snr": 7.5, "lastHeard": 1740830400, "hopsAway": 0},
	"!00000002": {"num": 2, "user": {"id": "!00000002", "longName": "Bravo"}, "hopsAway": 2}
}`

func newTestSource(t *testing.T, url string, retries int) (*HTTPSource, *NodeTracker) {
	t.Helper()

	tracker := NewNodeTracker()

	src, err := NewHTTPSource(&config.SourceConfig{
		Name:     "gw",
		URL:      url,
		Interval: config.Duration(time.Hour),
		Timeout:  config.Duration(time.Second),
		Retries:  retries,
	}, tracker)
	require.NoError(t, err)

	src.backoff = time.Millisecond

	return src, tracker
}

func TestPollMergesNodeDatabase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nodeDB))
	}))
	defer srv.Close()

	src, tracker := newTestSource(t, srv.URL, 0)

	n, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	alpha, ok := tracker.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Alpha", alpha.User.LongName)
	assert.InDelta(t, 13.4, alpha.Position.Longitude, 0)
	assert.Equal(t, uint32(0), *alpha.HopCount)
	assert.Equal(t, time.Unix(1740830400, 0), alpha.LastHeard)

	bravo, ok := tracker.Get(2)
	require.True(t, ok)
	assert.Nil(t, bravo.Position)

	st := src.Status()
	assert.True(t, st.Available)
	assert.Equal(t, 2, st.Nodes)
}

func TestPollRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(`[{"num": 5}]`))
	}))
	defer srv.Close()

	src, tracker := newTestSource(t, srv.URL, 3)

	n, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 1, tracker.Len())
}

func TestPollGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, _ := newTestSource(t, srv.URL, 2)

	_, err := src.Poll(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(3), hits.Load())
	assert.False(t, src.Status().Available)
	assert.NotEmpty(t, src.Status().Error)
}

func TestPollDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, _ := newTestSource(t, srv.URL, 3)

	_, err := src.Poll(context.Background())
	require.ErrorIs(t, err, ErrSourceStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPollRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"not a node database"`))
	}))
	defer srv.Close()

	src, _ := newTestSource(t, srv.URL, 3)

	_, err := src.Poll(context.Background())
	require.ErrorIs(t, err, ErrDecodeNodes)
}

func TestDecodeNodesWrapped(t *testing.T) {
	nodes, err := decodeNodes([]byte(`{"nodes": [{"num": 1}, {"num": 2}]}`))
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = decodeNodes([]byte(`{"nodes": {"!1": {"num": 1}}}`))
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestNewHTTPSourceValidation(t *testing.T) {
	_, err := NewHTTPSource(&config.SourceConfig{}, NewNodeTracker())
	require.ErrorIs(t, err, ErrSourceURLRequired)

	_, err = NewHTTPSource(&config.SourceConfig{URL: "ftp://gw/nodes"}, NewNodeTracker())
	require.ErrorIs(t, err, ErrInvalidSourceURL)
}

func TestSourceStartPollsImmediately(t *testing.T) {
	polled := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"num": 5}]`))

		select {
		case polled <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	src, _ := newTestSource(t, srv.URL, 0)

	require.NoError(t, src.Start(context.Background()))

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not poll")
	}

	require.NoError(t, src.Stop())
}
