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

// Package models pkg/models/metrics.go
package models

import (
	"time"

	"github.com/prometheus/prometheus/model/labels"
)

// Metric names emitted by the mesh collector.
const (
	MetricNodeInfo      = "node_info"
	MetricNodeLatitude  = "node_latitude"
	MetricNodeLongitude = "node_longitude"
	MetricNodeAltitude  = "node_altitude"
	MetricNodeHopCount  = "node_hop_count"
	MetricNodeHopLimit  = "node_hop_limit"
	MetricNodeRSSI      = "node_rssi"
	MetricNodeSNR       = "node_snr"
	MetricMessageCount  = "message_count_total"
)

// Label names shared across the node series. LabelNum is the join key.
const (
	LabelNum        = "num"
	LabelJob        = "job"
	LabelInstance   = "instance"
	LabelType       = "type"
	LabelID         = "id"
	LabelLongName   = "long_name"
	LabelShortName  = "short_name"
	LabelHWModel    = "hw_model"
	LabelMacAddr    = "macaddr"
	LabelIsLicensed = "is_licensed"
)

// Sample is a single immutable observation of one series.
type Sample struct {
	Labels    labels.Labels `json:"labels"`
	Timestamp int64         `json:"timestamp"` // milliseconds since epoch
	Value     float64       `json:"value"`
}

// Name returns the metric name of the sample.
func (s *Sample) Name() string {
	return s.Labels.Get(labels.MetricName)
}

// Time returns the sample timestamp as a time.Time.
func (s *Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Point is a timestamp/value pair inside a series.
type Point struct {
	T int64   `json:"t"`
	V float64 `json:"v"`
}

// Series is every sample sharing one label set, ascending by timestamp.
type Series struct {
	Labels labels.Labels `json:"labels"`
	Points []Point       `json:"points"`
}

// NewSample builds a sample for name with the given label pairs. Pairs
// with an empty value are left out.
func NewSample(name string, ts time.Time, value float64, lbls ...string) Sample {
	b := labels.NewBuilder(labels.EmptyLabels())
	for i := 0; i+1 < len(lbls); i += 2 {
		b.Set(lbls[i], lbls[i+1])
	}

	b.Set(labels.MetricName, name)

	return Sample{
		Labels:    b.Labels(),
		Timestamp: ts.UnixMilli(),
		Value:     value,
	}
}
