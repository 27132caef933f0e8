package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tuneinsight/gemini-rlwe/matvec"
)

const metricsNamespace = "gemini"

type metrics struct {
	registry *prometheus.Registry
	phase    *prometheus.HistogramVec
	tiles    *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

func newMetrics() *metrics {

	m := &metrics{
		registry: prometheus.NewRegistry(),
		phase: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of each phase of the triple generation per party.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"phase", "party"},
		),
		tiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tiles_total",
				Help:      "Number of tiles of the matrices processed by the matrix-vector protocol.",
			},
			[]string{"status"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Number of triple generations.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(m.phase, m.tiles, m.runs)

	return m
}

func (m *metrics) observe(phase, party string, start time.Time) {
	m.phase.WithLabelValues(phase, party).Observe(time.Since(start).Seconds())
}

func (m *metrics) addStats(s matvec.Stats) {
	m.tiles.WithLabelValues("processed").Add(float64(s.Tiles))
	m.tiles.WithLabelValues("skipped").Add(float64(s.SkippedTiles))
}

func (m *metrics) run(err error) {
	if err != nil {
		m.runs.WithLabelValues("failed").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
}

// WriteToFile writes the gathered metrics to path in the Prometheus text format.
func (m *metrics) WriteToFile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "cannot write metrics to %s", path)
}
