package promql

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, samples ...models.Sample) *Engine {
	t.Helper()

	store := tsdb.NewStore(tsdb.Options{})

	res, err := store.Append(context.Background(), samples)
	require.NoError(t, err)
	require.Empty(t, res.Rejected)

	return NewEngine(store, Options{})
}

func meshSamples() []models.Sample {
	return []models.Sample{
		models.NewSample("node_info", t0, 1, "num", "1", "long_name", "Alpha"),
		models.NewSample("node_info", t0, 1, "num", "2", "long_name", "Bravo"),
		models.NewSample("node_info", t0, 1, "num", "3", "long_name", "Charlie"),
		models.NewSample("node_snr", t0, 5, "num", "1"),
		models.NewSample("node_snr", t0, -3, "num", "2"),
		models.NewSample("node_snr", t0, 9.5, "num", "3"),
		models.NewSample("node_rssi", t0, -90, "num", "1"),
		models.NewSample("node_rssi", t0, -100, "num", "2"),
		models.NewSample("node_rssi", t0, -80, "num", "3"),
		models.NewSample("node_hop_count", t0, 0, "num", "1"),
		models.NewSample("node_hop_count", t0, 1, "num", "2"),
		models.NewSample("node_hop_count", t0, 0, "num", "3"),
		models.NewSample("node_latitude", t0, 52.52, "num", "1"),
	}
}

func instantVector(t *testing.T, e *Engine, q string, ts time.Time) Vector {
	t.Helper()

	v, err := e.InstantQuery(context.Background(), q, ts)
	require.NoError(t, err)

	vec, ok := v.(Vector)
	require.True(t, ok, "expected vector, got %T", v)

	return vec
}

func instantScalar(t *testing.T, e *Engine, q string) float64 {
	t.Helper()

	v, err := e.InstantQuery(context.Background(), q, t0)
	require.NoError(t, err)

	s, ok := v.(Scalar)
	require.True(t, ok, "expected scalar, got %T", v)

	return s.V
}

func nums(vec Vector) []string {
	out := make([]string, len(vec))
	for i, s := range vec {
		out[i] = s.Metric.Get("num")
	}

	return out
}

func TestScalarArithmetic(t *testing.T) {
	e := newTestEngine(t)

	tests := map[string]float64{
		`1 + 2 * 3`:   7,
		`(1 + 2) * 3`: 9,
		`2 ^ 3 ^ 2`:   512,
		`-2 ^ 2`:      -4,
		`10 % 4`:      2,
		`7 / 2`:       3.5,
		`2 > bool 1`:  1,
		`2 == bool 1`: 0,
	}

	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			assert.InDelta(t, want, instantScalar(t, e, q), 1e-9)
		})
	}
}

func TestTimeFunction(t *testing.T) {
	e := newTestEngine(t)

	assert.InDelta(t, float64(t0.Unix()), instantScalar(t, e, `time()`), 0)
}

func TestInstantSampleKeepsPointTime(t *testing.T) {
	e := newTestEngine(t,
		models.NewSample("node_snr", t0.Add(-time.Minute), 5, "num", "1"),
		models.NewSample("node_rssi", t0.Add(-2*time.Minute), -90, "num", "1"),
	)
	at := t0.Add(30 * time.Second)

	vec := instantVector(t, e, `node_snr`, at)
	require.Len(t, vec, 1)
	assert.Equal(t, at.UnixMilli(), vec[0].T)
	assert.Equal(t, t0.Add(-time.Minute).UnixMilli(), vec[0].Stamp)

	vec = instantVector(t, e, `abs(node_snr) * 2`, at)
	require.Len(t, vec, 1)
	assert.Equal(t, t0.Add(-time.Minute).UnixMilli(), vec[0].Stamp)

	vec = instantVector(t, e, `node_snr + on(num) node_rssi`, at)
	require.Len(t, vec, 1)
	assert.Equal(t, t0.Add(-time.Minute).UnixMilli(), vec[0].Stamp)
}

func TestInstantSelectorLookback(t *testing.T) {
	e := newTestEngine(t, models.NewSample("node_snr", t0, 5, "num", "1"))

	vec := instantVector(t, e, `node_snr`, t0.Add(4*time.Minute))
	require.Len(t, vec, 1)
	assert.InDelta(t, 5, vec[0].V, 0)
	assert.Equal(t, "node_snr", vec[0].Metric.Get(labels.MetricName))
	assert.Equal(t, t0.Add(4*time.Minute).UnixMilli(), vec[0].T)

	assert.Empty(t, instantVector(t, e, `node_snr`, t0.Add(5*time.Minute)))
	assert.Empty(t, instantVector(t, e, `node_snr`, t0.Add(-time.Second)))
}

func TestUnknownMetricIsEmpty(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	assert.Empty(t, instantVector(t, e, `node_does_not_exist`, t0))
	assert.Empty(t, instantVector(t, e, `sum(node_does_not_exist)`, t0))
}

func TestCountOfCountByNum(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	vec := instantVector(t, e, `count(count by (num) (node_info))`, t0)
	require.Len(t, vec, 1)
	assert.InDelta(t, 3, vec[0].V, 0)
	assert.True(t, vec[0].Metric.IsEmpty())
}

func TestCountWithFilter(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	vec := instantVector(t, e, `count(node_hop_count == 0)`, t0)
	require.Len(t, vec, 1)
	assert.InDelta(t, 2, vec[0].V, 0)

	vec = instantVector(t, e, `count(node_latitude)`, t0)
	require.Len(t, vec, 1)
	assert.InDelta(t, 1, vec[0].V, 0)
}

func TestAggregations(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	tests := map[string]float64{
		`sum(node_snr)`: 11.5,
		`avg(node_snr)`: 11.5 / 3,
		`min(node_snr)`: -3,
		`max(node_snr)`: 9.5,
	}

	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			vec := instantVector(t, e, q, t0)
			require.Len(t, vec, 1)
			assert.InDelta(t, want, vec[0].V, 1e-9)
		})
	}
}

func TestAggregationGrouping(t *testing.T) {
	e := newTestEngine(t,
		models.NewSample("message_count_total", t0, 4, "type", "TEXT_MESSAGE_APP", "instance", "a"),
		models.NewSample("message_count_total", t0, 6, "type", "TEXT_MESSAGE_APP", "instance", "b"),
		models.NewSample("message_count_total", t0, 3, "type", "POSITION_APP", "instance", "a"),
	)

	vec := instantVector(t, e, `sum by (type) (message_count_total)`, t0)
	require.Len(t, vec, 2)
	assert.Equal(t, "POSITION_APP", vec[0].Metric.Get("type"))
	assert.InDelta(t, 3, vec[0].V, 0)
	assert.Equal(t, "TEXT_MESSAGE_APP", vec[1].Metric.Get("type"))
	assert.InDelta(t, 10, vec[1].V, 0)

	vec = instantVector(t, e, `sum without (type) (message_count_total)`, t0)
	require.Len(t, vec, 2)
	assert.Equal(t, "a", vec[0].Metric.Get("instance"))
	assert.InDelta(t, 7, vec[0].V, 0)
	assert.False(t, vec[0].Metric.Has(labels.MetricName))
}

func TestTopkBottomk(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	vec := instantVector(t, e, `topk(2, node_snr)`, t0)
	assert.Equal(t, []string{"1", "3"}, nums(vec))
	assert.Equal(t, "node_snr", vec[0].Metric.Get(labels.MetricName))

	vec = instantVector(t, e, `bottomk(1, node_snr)`, t0)
	assert.Equal(t, []string{"2"}, nums(vec))

	assert.Empty(t, instantVector(t, e, `topk(0, node_snr)`, t0))
}

func counterSamples(values ...float64) []models.Sample {
	out := make([]models.Sample, len(values))
	for i, v := range values {
		out[i] = models.NewSample("message_count_total", t0.Add(time.Duration(i*15)*time.Second), v, "type", "TEXT_MESSAGE_APP")
	}

	return out
}

func TestRateMonotonicCounter(t *testing.T) {
	e := newTestEngine(t, counterSamples(0, 10, 20, 30, 40)...)
	at := t0.Add(time.Minute)

	// window (t0, t0+60s] holds 10, 20, 30, 40
	vec := instantVector(t, e, `rate(message_count_total[1m])`, at)
	require.Len(t, vec, 1)
	assert.InDelta(t, (40.0-10.0)/60.0, vec[0].V, 1e-9)
	assert.False(t, vec[0].Metric.Has(labels.MetricName))
	assert.Equal(t, "TEXT_MESSAGE_APP", vec[0].Metric.Get("type"))

	vec = instantVector(t, e, `increase(message_count_total[1m])`, at)
	require.Len(t, vec, 1)
	assert.InDelta(t, 30, vec[0].V, 1e-9)
}

func TestRateCounterReset(t *testing.T) {
	e := newTestEngine(t, counterSamples(0, 10, 20, 5, 15)...)
	at := t0.Add(time.Minute)

	// 10 -> 20 (+10), reset to 5 (+5), 5 -> 15 (+10)
	vec := instantVector(t, e, `rate(message_count_total[1m])`, at)
	require.Len(t, vec, 1)
	assert.InDelta(t, 25.0/60.0, vec[0].V, 1e-9)
	assert.GreaterOrEqual(t, vec[0].V, 0.0)

	vec = instantVector(t, e, `delta(message_count_total[1m])`, at)
	require.Len(t, vec, 1)
	assert.InDelta(t, 5, vec[0].V, 1e-9)
}

func TestRateNeedsTwoSamples(t *testing.T) {
	e := newTestEngine(t, counterSamples(7)...)

	assert.Empty(t, instantVector(t, e, `rate(message_count_total[1m])`, t0))
}

func TestSumByTypeRate(t *testing.T) {
	samples := counterSamples(0, 10, 20, 30, 40)
	for i := 0; i < 5; i++ {
		samples = append(samples, models.NewSample("message_count_total",
			t0.Add(time.Duration(i*15)*time.Second), float64(i*3), "type", "POSITION_APP"))
	}

	e := newTestEngine(t, samples...)

	vec := instantVector(t, e, `sum by(type) (rate(message_count_total[1h]))`, t0.Add(time.Minute))
	require.Len(t, vec, 2)
	assert.Equal(t, "POSITION_APP", vec[0].Metric.Get("type"))
	assert.InDelta(t, 12.0/3600.0, vec[0].V, 1e-12)
	assert.InDelta(t, 40.0/3600.0, vec[1].V, 1e-12)
}

func TestOverTimeFunctions(t *testing.T) {
	e := newTestEngine(t, counterSamples(4, 8, 2, 6)...)
	at := t0.Add(45 * time.Second)

	tests := map[string]float64{
		`count_over_time(message_count_total[1m])`: 4,
		`sum_over_time(message_count_total[1m])`:   20,
		`avg_over_time(message_count_total[1m])`:   5,
		`min_over_time(message_count_total[1m])`:   2,
		`max_over_time(message_count_total[1m])`:   8,
		`last_over_time(message_count_total[1m])`:  6,
	}

	for q, want := range tests {
		t.Run(q, func(t *testing.T) {
			vec := instantVector(t, e, q, at)
			require.Len(t, vec, 1)
			assert.InDelta(t, want, vec[0].V, 1e-9)
		})
	}
}

func TestVectorScalarOperations(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	vec := instantVector(t, e, `node_snr > 0`, t0)
	assert.Equal(t, []string{"1", "3"}, nums(vec))
	assert.Equal(t, "node_snr", vec[0].Metric.Get(labels.MetricName))

	vec = instantVector(t, e, `node_snr > bool 0`, t0)
	require.Len(t, vec, 3)
	assert.InDelta(t, 0, vec[1].V, 0)
	assert.InDelta(t, 1, vec[2].V, 0)
	assert.False(t, vec[0].Metric.Has(labels.MetricName))

	vec = instantVector(t, e, `0 < node_snr`, t0)
	require.Len(t, vec, 2)
	assert.InDelta(t, 5, vec[0].V, 0)

	vec = instantVector(t, e, `node_snr * 2`, t0)
	require.Len(t, vec, 3)
	assert.InDelta(t, 10, vec[0].V, 0)

	vec = instantVector(t, e, `abs(-node_snr)`, t0)
	require.Len(t, vec, 3)
	assert.InDelta(t, 3, vec[1].V, 0)
}

func TestVectorVectorOperations(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	vec := instantVector(t, e, `node_snr - node_rssi`, t0)
	require.Len(t, vec, 3)
	assert.InDelta(t, 95, vec[0].V, 0)
	assert.False(t, vec[0].Metric.Has(labels.MetricName))

	vec = instantVector(t, e, `node_snr - on(num) node_rssi`, t0)
	require.Len(t, vec, 3)

	vec = instantVector(t, e, `node_snr > node_hop_count`, t0)
	assert.Equal(t, []string{"1", "3"}, nums(vec))

	vec = instantVector(t, e, `node_snr and node_latitude`, t0)
	assert.Equal(t, []string{"1"}, nums(vec))

	vec = instantVector(t, e, `node_snr unless node_latitude`, t0)
	assert.Equal(t, []string{"2", "3"}, nums(vec))

	vec = instantVector(t, e, `node_latitude or node_snr`, t0)
	require.Len(t, vec, 3)
	assert.Equal(t, "node_latitude", vec[0].Metric.Get(labels.MetricName))
}

func TestManyToManyIsError(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	_, err := e.InstantQuery(context.Background(), `node_snr + on() node_rssi`, t0)
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
}

func TestScalarAndVectorFunctions(t *testing.T) {
	e := newTestEngine(t, meshSamples()...)

	assert.InDelta(t, 9.5, instantScalar(t, e, `scalar(max(node_snr))`), 0)

	vec := instantVector(t, e, `vector(3)`, t0)
	require.Len(t, vec, 1)
	assert.InDelta(t, 3, vec[0].V, 0)
}

func TestInstantMatrixSelector(t *testing.T) {
	e := newTestEngine(t, counterSamples(0, 10, 20)...)

	v, err := e.InstantQuery(context.Background(), `message_count_total[1m]`, t0.Add(30*time.Second))
	require.NoError(t, err)

	m, ok := v.(Matrix)
	require.True(t, ok)
	require.Len(t, m, 1)
	assert.Len(t, m[0].Points, 3)
}

func TestRangeQuery(t *testing.T) {
	e := newTestEngine(t, counterSamples(0, 10, 20, 30, 40)...)

	v, err := e.RangeQuery(context.Background(), `message_count_total`, t0, t0.Add(time.Minute), 15*time.Second)
	require.NoError(t, err)

	m, ok := v.(Matrix)
	require.True(t, ok)
	require.Len(t, m, 1)
	require.Len(t, m[0].Points, 5)
	assert.InDelta(t, 40, m[0].Points[4].V, 0)

	v, err = e.RangeQuery(context.Background(), `1 + 1`, t0, t0.Add(time.Minute), 30*time.Second)
	require.NoError(t, err)

	m = v.(Matrix)
	require.Len(t, m, 1)
	assert.True(t, m[0].Metric.IsEmpty())
	assert.Len(t, m[0].Points, 3)
}

func TestRangeQueryValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RangeQuery(ctx, `node_info`, t0, t0.Add(time.Minute), 0)
	assert.True(t, IsQueryError(err))

	_, err = e.RangeQuery(ctx, `node_info`, t0, t0.Add(-time.Minute), time.Second)
	assert.True(t, IsQueryError(err))

	_, err = e.RangeQuery(ctx, `node_info[5m]`, t0, t0.Add(time.Minute), time.Second)
	assert.True(t, IsQueryError(err))

	_, err = e.RangeQuery(ctx, `node_info`, t0, t0.Add(24*time.Hour), time.Second)
	assert.True(t, IsQueryError(err))
}

func TestParseErrorSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := NewMockQueryable(ctrl)
	e := NewEngine(q, Options{})

	_, err := e.InstantQuery(context.Background(), `sum(`, t0)
	require.Error(t, err)
	assert.True(t, IsQueryError(err))
}

func TestStoreUnavailableIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := NewMockQueryable(ctrl)
	series := []models.Series{{
		Labels: labels.FromStrings(labels.MetricName, "node_snr", "num", "1"),
		Points: []models.Point{{T: t0.UnixMilli(), V: 4}},
	}}

	gomock.InOrder(
		q.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, tsdb.ErrStoreUnavailable).Times(2),
		q.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(series, nil),
	)

	e := NewEngine(q, Options{MaxRetries: 3, RetryBackoff: time.Millisecond})

	vec := instantVector(t, e, `node_snr`, t0)
	require.Len(t, vec, 1)
	assert.InDelta(t, 4, vec[0].V, 0)
}

func TestStoreUnavailableGivesUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := NewMockQueryable(ctrl)
	q.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, tsdb.ErrStoreUnavailable).Times(2)

	e := NewEngine(q, Options{MaxRetries: 1, RetryBackoff: time.Millisecond})

	_, err := e.InstantQuery(context.Background(), `node_snr`, t0)
	require.ErrorIs(t, err, tsdb.ErrStoreUnavailable)
	assert.False(t, IsQueryError(err))
}

func TestOtherStoreErrorsAreNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := NewMockQueryable(ctrl)
	q.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom")).Times(1)

	e := NewEngine(q, Options{MaxRetries: 3, RetryBackoff: time.Millisecond})

	_, err := e.InstantQuery(context.Background(), `node_snr`, t0)
	require.Error(t, err)
}

func TestQueryTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	q := NewMockQueryable(ctrl)
	q.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _, _ int64, _ []*labels.Matcher) ([]models.Series, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	e := NewEngine(q, Options{Timeout: 10 * time.Millisecond})

	_, err := e.InstantQuery(context.Background(), `node_snr`, t0)
	require.ErrorIs(t, err, ErrQueryTimeout)
}

func TestMaxSamples(t *testing.T) {
	store := tsdb.NewStore(tsdb.Options{})

	_, err := store.Append(context.Background(), counterSamples(1, 2, 3, 4, 5))
	require.NoError(t, err)

	e := NewEngine(store, Options{MaxSamples: 3})

	_, err = e.InstantQuery(context.Background(), `count_over_time(message_count_total[5m])`, t0.Add(time.Minute))
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ErrorExecution, qe.Kind)
}

func TestVectorJSON(t *testing.T) {
	v := Vector{{Metric: labels.FromStrings("num", "1"), T: 1500, V: 2.5}}

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"metric":{"num":"1"},"value":[1.5,"2.5"]}]`, string(raw))

	raw, err = json.Marshal(Scalar{T: 1000, V: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,"1"]`, string(raw))
}
