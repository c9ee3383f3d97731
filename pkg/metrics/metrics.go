// Package metrics instruments the simulation hotspots. Rupture generation is
// the dominant cost of the hazard phase, so it is tracked separately from
// occurrence sampling and GMF computation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels for StageDuration.
const (
	StageGeneratingRuptures = "generating_ruptures"
	StageSamplingRuptures   = "sampling_ruptures"
	StageComputingGMFs      = "computing_gmfs"
	StageSavingRuptures     = "saving_ruptures"
	StageSavingGMFs         = "saving_gmfs"
	StageAssociatingAssets  = "associating_assets"
)

// Simulation holds the engine's Prometheus collectors.
type Simulation struct {
	StageDuration   *prometheus.HistogramVec
	RupturesSampled prometheus.Counter
	RupturesKept    prometheus.Counter
	GMFsComputed    prometheus.Counter
	TasksDispatched prometheus.Counter
}

// NewSimulation creates and registers the simulation collectors.
// Pass prometheus.DefaultRegisterer in production; tests use a private
// prometheus.NewRegistry() to avoid duplicate registration.
func NewSimulation(reg prometheus.Registerer) *Simulation {
	m := &Simulation{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tremor",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per simulation stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		RupturesSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tremor",
			Name:      "ruptures_sampled_total",
			Help:      "Occurrence samples drawn, including zero-count draws.",
		}),
		RupturesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tremor",
			Name:      "ruptures_kept_total",
			Help:      "Occurrence samples with count >= 1 recorded by collectors.",
		}),
		GMFsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tremor",
			Name:      "gmf_ruptures_total",
			Help:      "Ruptures for which ground motion fields were computed.",
		}),
		TasksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tremor",
			Name:      "tasks_dispatched_total",
			Help:      "Batch tasks handed to the work distributor.",
		}),
	}
	reg.MustRegister(m.StageDuration, m.RupturesSampled, m.RupturesKept,
		m.GMFsComputed, m.TasksDispatched)
	return m
}

// Time starts a stage timer; the returned function observes the elapsed
// duration when called.
func (m *Simulation) Time(stage string) func() {
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
