package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	PassesTotal       *prometheus.CounterVec // result=ok|error
	ReclamationsTotal *prometheus.CounterVec // scope=loco|consist, result=ok|fail|dry_run
	ActionsTotal      *prometheus.CounterVec // action=dispatch|release, result=ok|fail
	PassDuration      prometheus.Histogram
	TrackedSlots      prometheus.Gauge
	ObservedSlots     prometheus.Gauge
	RecyclerRunning   prometheus.Gauge

	reg *prometheus.Registry
}

// New builds the metric set on its own registry so tests and multiple
// engines never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotrecycler_passes_total",
				Help: "Total reclamation passes by result",
			},
			[]string{"result"},
		),
		ReclamationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotrecycler_reclamations_total",
				Help: "Slots acted on by scope and result",
			},
			[]string{"scope", "result"},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slotrecycler_actions_total",
				Help: "Bus actions attempted by action and result",
			},
			[]string{"action", "result"},
		),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotrecycler_pass_duration_seconds",
			Help:    "Wall time of one reclamation pass",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		TrackedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotrecycler_tracked_slots",
			Help: "Slots with an assigned address seen in the last pass",
		}),
		ObservedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotrecycler_observed_slots",
			Help: "Slot records reported by the bus in the last pass",
		}),
		RecyclerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotrecycler_running",
			Help: "1 while the periodic schedule is active",
		}),
		reg: prometheus.NewRegistry(),
	}

	m.reg.MustRegister(
		m.PassesTotal,
		m.ReclamationsTotal,
		m.ActionsTotal,
		m.PassDuration,
		m.TrackedSlots,
		m.ObservedSlots,
		m.RecyclerRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.RecyclerRunning.Set(1)
	} else {
		m.RecyclerRunning.Set(0)
	}
}
