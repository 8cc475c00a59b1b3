package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]models.Sample
}

func (p *recordingPublisher) Publish(batch []models.Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches = append(p.batches, batch)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.batches)
}

func TestServiceDrainsResultsIntoStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mc := NewMockCollector(ctrl)
	app := NewMockAppender(ctrl)
	pub := &recordingPublisher{}

	results := make(chan []models.Sample, 1)
	batch := []models.Sample{models.NewSample(models.MetricNodeSNR, t0, 4, models.LabelNum, "1")}
	appended := make(chan struct{})

	mc.EXPECT().Start(gomock.Any()).Return(nil)
	mc.EXPECT().GetResults().Return((<-chan []models.Sample)(results))
	mc.EXPECT().Stop().Return(nil)
	app.EXPECT().Append(gomock.Any(), batch).DoAndReturn(
		func(context.Context, []models.Sample) (tsdb.AppendResult, error) {
			close(appended)
			return tsdb.AppendResult{Appended: 1, Accepted: batch}, nil
		})

	tracker := NewNodeTracker()
	s := newService(tracker, NewPacketHandler(tracker, nil), mc, app, pub)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrServiceAlreadyRuns)

	results <- batch

	select {
	case <-appended:
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not appended")
	}

	require.NoError(t, s.Stop())
	assert.Equal(t, 1, pub.count())
	require.ErrorIs(t, s.Stop(), ErrServiceNotStarted)
}

func TestServiceIngestSkipsPublishWhenNothingAppended(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	app := NewMockAppender(ctrl)
	pub := &recordingPublisher{}

	app.EXPECT().Append(gomock.Any(), gomock.Any()).Return(tsdb.AppendResult{Duplicates: 1}, nil)
	app.EXPECT().Append(gomock.Any(), gomock.Any()).Return(tsdb.AppendResult{}, tsdb.ErrStoreUnavailable)

	tracker := NewNodeTracker()
	s := newService(tracker, NewPacketHandler(tracker, nil), nil, app, pub)

	s.Ingest(context.Background(), []models.Sample{{}})
	s.Ingest(context.Background(), []models.Sample{{}})

	assert.Zero(t, pub.count())
}

func TestServiceIngestPublishesOnlyAccepted(t *testing.T) {
	pub := &recordingPublisher{}
	tracker := NewNodeTracker()
	s := newService(tracker, NewPacketHandler(tracker, nil), nil, tsdb.NewStore(tsdb.Options{}), pub)

	kept := models.NewSample(models.MetricNodeSNR, t0, 4, models.LabelNum, "1")

	res, err := s.Ingest(context.Background(), []models.Sample{
		kept,
		models.NewSample(models.MetricNodeSNR, t0, 4, models.LabelNum, "1"),
		models.NewSample(models.MetricNodeSNR, t0.Add(-time.Minute), 2, models.LabelNum, "1"),
		models.NewSample("1bad", t0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 1, res.Duplicates)
	assert.Len(t, res.Rejected, 2)

	require.Equal(t, 1, pub.count())
	assert.Equal(t, []models.Sample{kept}, pub.batches[0])
}

func TestNewServiceEndToEnd(t *testing.T) {
	store := tsdb.NewStore(tsdb.Options{})

	s, err := NewService(testConfig(), store, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Handler().HandlePacket(&models.Packet{From: 1, RxSNR: f64(3), RxTime: time.Now().Unix()}))

	mc, ok := s.collector.(*MeshCollector)
	require.True(t, ok)

	s.Ingest(context.Background(), mc.Emit(time.Now()))

	assert.Equal(t, 3, store.SeriesCount())

	st := s.Status()
	assert.Equal(t, 1, st.Nodes)
	assert.Empty(t, st.Sources)
}

func TestNewServiceRejectsBadSource(t *testing.T) {
	cfg := testConfig()
	cfg.Sources = append(cfg.Sources, config.SourceConfig{Name: "gw"})

	_, err := NewService(cfg, tsdb.NewStore(tsdb.Options{}), nil, nil)
	require.ErrorIs(t, err, ErrSourceURLRequired)
}

func TestNewServiceBuildsSourcePerType(t *testing.T) {
	cfg := testConfig()
	cfg.Sources = []config.SourceConfig{
		{Name: "db", Type: config.SourceHTTP, URL: "http://radio.local/json/nodes"},
		{Name: "radio", Type: config.SourceTCP, Address: "radio.local"},
	}

	s, err := NewService(cfg, tsdb.NewStore(tsdb.Options{}), nil, nil)
	require.NoError(t, err)
	require.Len(t, s.sources, 2)

	assert.IsType(t, &HTTPSource{}, s.sources[0])
	assert.IsType(t, &StreamSource{}, s.sources[1])
	assert.Equal(t, "tcp://radio.local:4403", s.Status().Sources[1].URL)

	cfg.Sources = []config.SourceConfig{{Name: "ble", Type: "ble", Address: "any"}}

	_, err = NewService(cfg, tsdb.NewStore(tsdb.Options{}), nil, nil)
	require.ErrorIs(t, err, ErrUnknownSourceType)
}

func TestServicePushIngestion(t *testing.T) {
	s, err := NewService(testConfig(), tsdb.NewStore(tsdb.Options{}), nil, nil)
	require.NoError(t, err)

	n, err := s.HandlePackets([]models.Packet{{From: 7, RxSNR: f64(1)}, {From: 0}})
	require.ErrorIs(t, err, ErrInvalidPacket)
	assert.Equal(t, 1, n)

	now := time.Now()

	n, err = s.UpdateNodes([]models.NodeInfo{
		{Num: 8, User: &models.User{LongName: "Eight"}, LastHeard: now.Unix()},
		{Num: 9, LastHeard: now.Add(-48 * time.Hour).Unix()},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.UpdateNodes([]models.NodeInfo{{}}, now)
	require.ErrorIs(t, err, ErrInvalidNode)

	nums := make([]uint32, 0)
	for _, node := range s.Nodes(now) {
		nums = append(nums, node.Num)
	}

	assert.Equal(t, []uint32{7, 8}, nums)

	node, ok := s.Node(9)
	require.True(t, ok)
	assert.Equal(t, uint32(9), node.Num)
}
