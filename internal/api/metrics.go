package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/run"
)

// Metrics counts what the poll loop observes.
type Metrics struct {
	RunsTotal *prometheus.CounterVec
	PollTicks prometheus.Counter
	LogLines  prometheus.Counter
}

// NewMetrics registers the counters plus a gauge probing whether a run
// is currently executing.
func NewMetrics(reg prometheus.Registerer, active func() float64) *Metrics {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "stabiom",
			Name:      "run_active",
			Help:      "1 while a run is executing",
		},
		active,
	)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stabiom",
				Name:      "runs_total",
				Help:      "Finished runs by terminal state",
			},
			[]string{"state"},
		),
		PollTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stabiom",
				Name:      "poll_ticks_total",
				Help:      "Poll cycles executed",
			},
		),
		LogLines: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stabiom",
				Name:      "log_lines_total",
				Help:      "Log lines aggregated across all runs",
			},
		),
	}
}

// Hooks adapts the metrics to the controller's poll loop callbacks.
func (m *Metrics) Hooks() run.Hooks {
	return run.Hooks{
		Tick: func() { m.PollTicks.Inc() },
		Lines: func(n int) {
			m.LogLines.Add(float64(n))
		},
		Finished: func(s model.RunState) {
			m.RunsTotal.WithLabelValues(string(s)).Inc()
		},
	}
}
