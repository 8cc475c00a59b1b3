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

// Package metrics pkg/metrics/metrics.go exposes meshradar's own operational
// metrics. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meshradar"

// Query status label values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

type Metrics struct {
	registry *prometheus.Registry

	samplesAppended prometheus.Counter
	samplesRejected *prometheus.CounterVec
	series          prometheus.Gauge
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	packetsReceived *prometheus.CounterVec
	persistErrors   prometheus.Counter
}

// New creates the metric set on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samplesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_appended_total",
			Help:      "Total samples accepted by the store.",
		}),
		samplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Samples rejected by the store, by reason.",
		}, []string{"reason"}),
		series: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series",
			Help:      "Number of series held in memory.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Evaluated queries by type and outcome.",
		}, []string{"type", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query evaluation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"type"}),
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Mesh packets handled by the collector, by port type.",
		}, []string{"type"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed write-behind batches.",
		}),
	}

	m.registry.MustRegister(
		m.samplesAppended,
		m.samplesRejected,
		m.series,
		m.queries,
		m.queryDuration,
		m.packetsReceived,
		m.persistErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SamplesAppended(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.samplesAppended.Add(float64(n))
}

func (m *Metrics) SampleRejected(reason string) {
	if m == nil {
		return
	}

	m.samplesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSeries(n int) {
	if m == nil {
		return
	}

	m.series.Set(float64(n))
}

// QueryDone records one evaluated query.
func (m *Metrics) QueryDone(queryType, status string, d time.Duration) {
	if m == nil {
		return
	}

	m.queries.WithLabelValues(queryType, status).Inc()
	m.queryDuration.WithLabelValues(queryType).Observe(d.Seconds())
}

func (m *Metrics) PacketReceived(portType string) {
	if m == nil {
		return
	}

	m.packetsReceived.WithLabelValues(portType).Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}

	m.persistErrors.Inc()
}
