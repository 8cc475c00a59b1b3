package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mfreeman451/meshradar/pkg/models"
	"github.com/mfreeman451/meshradar/pkg/promql"
	"github.com/mfreeman451/meshradar/pkg/transform"
	"github.com/mfreeman451/meshradar/pkg/tsdb"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func meshRunner(t *testing.T) *Runner {
	t.Helper()

	store := tsdb.NewStore(tsdb.Options{})

	res, err := store.Append(context.Background(), []models.Sample{
		models.NewSample("node_info", t0, 1, "num", "1", "long_name", "Alpha", "short_name", "ALF"),
		models.NewSample("node_info", t0, 1, "num", "2", "long_name", "Bravo", "short_name", "BRV"),
		models.NewSample("node_info", t0, 1, "num", "3", "long_name", "Charlie", "short_name", "CHL"),
		models.NewSample("node_latitude", t0, 52.5, "num", "1"),
		models.NewSample("node_longitude", t0, 13.4, "num", "1"),
		models.NewSample("node_latitude", t0, 48.1, "num", "3"),
		models.NewSample("node_longitude", t0, 11.5, "num", "3"),
		models.NewSample("node_hop_count", t0, 0, "num", "1"),
		models.NewSample("node_hop_count", t0, 2, "num", "2"),
		models.NewSample("node_hop_count", t0, 1, "num", "3"),
		models.NewSample("node_snr", t0, 5, "num", "1"),
		models.NewSample("node_snr", t0, -3, "num", "2"),
		models.NewSample("node_snr", t0, 9.5, "num", "3"),
		models.NewSample("message_count_total", t0, 12, "type", "TEXT_MESSAGE_APP"),
		models.NewSample("message_count_total", t0, 30, "type", "POSITION_APP"),
	})
	require.NoError(t, err)
	require.Empty(t, res.Rejected)

	return NewRunner(promql.NewEngine(store, promql.Options{}), 0)
}

func bundledPanel(t *testing.T, title string) *Panel {
	t.Helper()

	d, err := Bundled()
	require.NoError(t, err)

	for i := range d.Panels {
		if d.Panels[i].Title == title {
			return &d.Panels[i]
		}
	}

	t.Fatalf("panel %q not found", title)

	return nil
}

func instantRange() TimeRange {
	return TimeRange{From: t0.Add(-time.Hour), To: t0.Add(time.Minute)}
}

func singleValue(t *testing.T, res *PanelResult) any {
	t.Helper()

	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 1)

	return res.Tables[0].Rows[0]["Value #A"]
}

func TestBundledDashboard(t *testing.T) {
	d, err := Bundled()
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, d.SchemaVersion)
	assert.Equal(t, FormatVersion, d.Version)
	assert.NotEmpty(t, d.UID)

	titles := make(map[string]bool)
	for _, p := range d.Panels {
		titles[p.Title] = true
	}

	for _, want := range []string{
		"Radios", "Spotted radios", "Spotted radios with location", "Strongest signal",
		"Radio map", "Messages", "Message rate by type", "Direct radios",
	} {
		assert.True(t, titles[want], want)
	}
}

func TestBundledRoundTripKeepsOpaqueFields(t *testing.T) {
	d, err := Bundled()
	require.NoError(t, err)

	p, ok := d.Panel(7)
	require.True(t, ok)
	require.NotEmpty(t, p.FieldConfig)

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	again, err := Parse(raw)
	require.NoError(t, err)

	p2, ok := again.Panel(7)
	require.True(t, ok)
	assert.JSONEq(t, string(p.FieldConfig), string(p2.FieldConfig))
	require.Len(t, p2.Transformations, len(p.Transformations))

	for i := range p.Transformations {
		assert.Equal(t, p.Transformations[i].ID, p2.Transformations[i].ID)
		assert.JSONEq(t, string(p.Transformations[i].Options), string(p2.Transformations[i].Options))
	}
}

func TestSpottedRadios(t *testing.T) {
	r := meshRunner(t)
	ctx := context.Background()

	res, err := r.RunPanel(ctx, bundledPanel(t, "Spotted radios"), instantRange())
	require.NoError(t, err)
	assert.Equal(t, 3.0, singleValue(t, res))

	res, err = r.RunPanel(ctx, bundledPanel(t, "Spotted radios with location"), instantRange())
	require.NoError(t, err)
	assert.Equal(t, 2.0, singleValue(t, res))

	res, err = r.RunPanel(ctx, bundledPanel(t, "Direct radios"), instantRange())
	require.NoError(t, err)
	assert.Equal(t, 1.0, singleValue(t, res))

	res, err = r.RunPanel(ctx, bundledPanel(t, "Messages"), instantRange())
	require.NoError(t, err)
	assert.Equal(t, 42.0, singleValue(t, res))
}

func TestRadiosOuterJoinNullFillsLocation(t *testing.T) {
	res, err := meshRunner(t).RunPanel(context.Background(), bundledPanel(t, "Radios"), instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)

	tbl := res.Tables[0]
	assert.Equal(t, []string{"num", "Name", "Short name"}, tbl.Fields[:3])
	assert.Equal(t, []any{"Alpha", "Bravo", "Charlie"}, tbl.Column("Name"))

	bravo := tbl.Rows[1]
	assert.Equal(t, "2", bravo["num"])
	assert.Equal(t, 2.0, bravo["Hops"])

	for _, f := range []string{"lat", "lon", "Altitude", "RSSI"} {
		v, ok := bravo[f]
		assert.True(t, ok, f)
		assert.Nil(t, v, f)
	}

	assert.Equal(t, 52.5, tbl.Rows[0]["lat"])
	assert.NotContains(t, tbl.Fields, "Time 1")
	assert.NotContains(t, tbl.Fields, "__name__ 1")
}

func TestRadiosShowsNewestNameAfterRename(t *testing.T) {
	store := tsdb.NewStore(tsdb.Options{})
	_, err := store.Append(context.Background(), []models.Sample{
		models.NewSample("node_info", t0.Add(-2*time.Minute), 1, "num", "1", "long_name", "Zulu", "short_name", "ZLU"),
		models.NewSample("node_info", t0, 1, "num", "1", "long_name", "Alpha", "short_name", "ALF"),
		models.NewSample("node_hop_count", t0, 0, "num", "1"),
	})
	require.NoError(t, err)

	r := NewRunner(promql.NewEngine(store, promql.Options{}), 0)

	res, err := r.RunPanel(context.Background(), bundledPanel(t, "Radios"), instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 1)

	row := res.Tables[0].Rows[0]
	assert.Equal(t, "Alpha", row["Name"])
	assert.Equal(t, "ALF", row["Short name"])
}

func TestRadiosWithOnlyNodeInfoHidesSeriesLabels(t *testing.T) {
	store := tsdb.NewStore(tsdb.Options{})
	_, err := store.Append(context.Background(), []models.Sample{
		models.NewSample("node_info", t0, 1, "num", "1", "long_name", "Alpha", "job", "meshtastic", "instance", "gw"),
	})
	require.NoError(t, err)

	r := NewRunner(promql.NewEngine(store, promql.Options{}), 0)

	res, err := r.RunPanel(context.Background(), bundledPanel(t, "Radios"), instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)

	tbl := res.Tables[0]
	for _, f := range []string{"Time", "__name__", "job", "instance"} {
		assert.NotContains(t, tbl.Fields, f)
	}

	assert.Equal(t, []any{"Alpha"}, tbl.Column("Name"))
}

func TestStrongestSignalInnerJoin(t *testing.T) {
	res, err := meshRunner(t).RunPanel(context.Background(), bundledPanel(t, "Strongest signal"), instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)

	tbl := res.Tables[0]
	assert.Equal(t, []string{"Name", "Short name", "SNR", "num"}, tbl.Fields)
	assert.Equal(t, []any{"Charlie", "Alpha", "Bravo"}, tbl.Column("Name"))
	assert.Equal(t, []any{9.5, 5.0, -3.0}, tbl.Column("SNR"))
}

func TestRadioMapExcludesNodesWithoutFix(t *testing.T) {
	res, err := meshRunner(t).RunPanel(context.Background(), bundledPanel(t, "Radio map"), instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)

	assert.Equal(t, []any{"1", "3"}, res.Tables[0].Column("num"))
	assert.Equal(t, []any{13.4, 11.5}, res.Tables[0].Column("lon"))
}

func TestHopCountNodeInfoInnerJoin(t *testing.T) {
	store := tsdb.NewStore(tsdb.Options{})
	_, err := store.Append(context.Background(), []models.Sample{
		models.NewSample("node_hop_count", t0, 2, "num", "1"),
		models.NewSample("node_info", t0, 1, "num", "1", "long_name", "Alpha"),
	})
	require.NoError(t, err)

	var p Panel

	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 1, "title": "hops", "type": "table",
		"targets": [
			{"refId": "A", "expr": "node_hop_count", "instant": true},
			{"refId": "B", "expr": "node_info", "instant": true}
		],
		"transformations": [
			{"id": "joinByField", "options": {"byField": "num", "mode": "inner"}},
			{"id": "organize", "options": {
				"excludeByName": {"Time 1": true, "Time 2": true, "__name__ 1": true, "__name__ 2": true, "Value #B": true},
				"renameByName": {"Value #A": "hop_count"}
			}}
		]
	}`), &p))

	r := NewRunner(promql.NewEngine(store, promql.Options{}), 0)

	res, err := r.RunPanel(context.Background(), &p, instantRange())
	require.NoError(t, err)
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0].Rows, 1)
	assert.Equal(t, transform.Row{"num": "1", "hop_count": 2.0, "long_name": "Alpha"}, res.Tables[0].Rows[0])
}

func TestRangeTargetUsesLegend(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := NewMockQueryEngine(ctrl)
	tr := TimeRange{From: t0, To: t0.Add(6 * time.Hour)}

	engine.EXPECT().RangeQuery(gomock.Any(), "sum by(type) (rate(message_count_total[1h]))", tr.From, tr.To, 72*time.Second).
		Return(promql.Matrix{
			{Metric: labels.FromStrings("type", "POSITION_APP"), Points: []models.Point{{T: 1, V: 0.5}}},
			{Metric: labels.FromStrings("type", "TEXT_MESSAGE_APP"), Points: []models.Point{{T: 1, V: 0.25}}},
		}, nil)

	res, err := NewRunner(engine, 0).RunPanel(context.Background(), bundledPanel(t, "Message rate by type"), tr)
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, "POSITION_APP", res.Tables[0].Name)
	assert.Equal(t, "TEXT_MESSAGE_APP", res.Tables[1].Name)
}

func TestRunPanelPropagatesQueryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := NewMockQueryEngine(ctrl)
	boom := errors.New("store down")

	engine.EXPECT().InstantQuery(gomock.Any(), "topk(10, node_snr)", gomock.Any()).Return(nil, boom)
	engine.EXPECT().InstantQuery(gomock.Any(), "node_info", gomock.Any()).Return(promql.Vector{}, nil)

	_, err := NewRunner(engine, 0).RunPanel(context.Background(), bundledPanel(t, "Strongest signal"), instantRange())
	require.ErrorIs(t, err, boom)
}

func TestRunPanelInvalidRange(t *testing.T) {
	r := NewRunner(nil, 0)

	_, err := r.RunPanel(context.Background(), &Panel{ID: 1}, TimeRange{From: t0, To: t0.Add(-time.Second)})
	require.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestRunDashboard(t *testing.T) {
	d, err := Bundled()
	require.NoError(t, err)

	results := meshRunner(t).Run(context.Background(), d, instantRange())
	assert.Len(t, results, len(d.Panels))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"schema", `{"uid":"x","schemaVersion":37,"version":4,"panels":[]}`, ErrSchemaVersion},
		{"version", `{"uid":"x","schemaVersion":38,"version":3,"panels":[]}`, ErrFormatVersion},
		{"uid", `{"schemaVersion":38,"version":4,"panels":[]}`, ErrUIDRequired},
		{"panel id", `{"uid":"x","schemaVersion":38,"panels":[{"id":0}]}`, ErrInvalidPanelID},
		{"duplicate panel", `{"uid":"x","schemaVersion":38,"panels":[{"id":1},{"id":1}]}`, ErrDuplicatePanelID},
		{"duplicate ref", `{"uid":"x","schemaVersion":38,"panels":[{"id":1,"targets":[{"refId":"A","expr":"a"},{"refId":"A","expr":"b"}]}]}`, ErrDuplicateRefID},
		{"empty expr", `{"uid":"x","schemaVersion":38,"panels":[{"id":1,"targets":[{"refId":"A"}]}]}`, ErrEmptyExpr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDefaults(t *testing.T) {
	d, err := Parse([]byte(`{"uid":"x","schemaVersion":38,"panels":[{"id":1,"targets":[{"expr":"a"},{"expr":"b"}]}]}`))
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, d.Version)
	assert.Equal(t, "A", d.Panels[0].Targets[0].RefID)
	assert.Equal(t, "B", d.Panels[0].Targets[1].RefID)
	assert.True(t, d.Panels[0].Targets[0].IsRange())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"uid":"x","title":"X","schemaVersion":38,"version":4,"panels":[]}`), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "X", d.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	d, err := Bundled()
	require.NoError(t, err)

	require.NoError(t, reg.Add(d))
	require.ErrorIs(t, reg.Add(d), ErrDuplicateUID)
	require.NoError(t, reg.Add(&Dashboard{UID: "a"}))

	got, ok := reg.Get(d.UID)
	require.True(t, ok)
	assert.Same(t, d, got)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].UID)
}

func TestTimeRangeStep(t *testing.T) {
	assert.Equal(t, 72*time.Second, TimeRange{From: t0, To: t0.Add(6 * time.Hour)}.Step(0))
	assert.Equal(t, time.Second, TimeRange{From: t0, To: t0.Add(time.Minute)}.Step(0))
	assert.Equal(t, time.Minute, TimeRange{From: t0, To: t0.Add(time.Hour)}.Step(60))
}

func TestFormatLegend(t *testing.T) {
	l := labels.FromStrings("type", "TEXT_MESSAGE_APP", "num", "7")

	assert.Equal(t, "TEXT_MESSAGE_APP / 7", formatLegend("{{type}} / {{ num }}", l))
	assert.Equal(t, "x ", formatLegend("x {{missing}}", l))
}
