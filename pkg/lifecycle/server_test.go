package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	startErr error
	stopErr  error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeService) Start(context.Context) error {
	f.started.Store(true)
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped.Store(true)
	return f.stopErr
}

func TestRunServerStopsOnCancel(t *testing.T) {
	svc := &fakeService{}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{GRPCAddr: "127.0.0.1:0", ServiceName: "meshradar", Service: svc})
	}()

	require.Eventually(t, svc.started.Load, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("RunServer did not return")
	}

	assert.True(t, svc.stopped.Load())
}

func TestRunServerStopsOnGRPCError(t *testing.T) {
	svc := &fakeService{stopErr: errors.New("flush failed")}

	err := RunServer(context.Background(), &ServerOptions{
		GRPCAddr:    "127.0.0.1:-1",
		ServiceName: "meshradar",
		Service:     svc,
	})
	require.ErrorContains(t, err, "service error")
	assert.True(t, svc.stopped.Load())
}

func TestRunServerStartError(t *testing.T) {
	svc := &fakeService{startErr: errors.New("bind failed")}

	err := RunServer(context.Background(), &ServerOptions{ServiceName: "meshradar", Service: svc})
	require.ErrorContains(t, err, "bind failed")
	assert.False(t, svc.stopped.Load())
}
