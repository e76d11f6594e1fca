package vxsip

import "github.com/prometheus/client_golang/prometheus"

// dialogMetrics exposes registry counters. Collectors register against the
// registerer handed to WithMetrics; a nil registerer falls back to
// prometheus.DefaultRegisterer.
type dialogMetrics struct {
	seeded    prometheus.Counter
	completed prometheus.Counter
	destroyed prometheus.Counter
	released  prometheus.Counter
}

func newDialogMetrics(reg *Registry, pr prometheus.Registerer) *dialogMetrics {
	if pr == nil {
		pr = prometheus.DefaultRegisterer
	}
	m := &dialogMetrics{
		seeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vxsip_dialogs_seeded_total",
			Help: "Partial dialogs seeded from INVITE/SUBSCRIBE requests.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vxsip_dialogs_completed_total",
			Help: "Dialogs that reached EARLY or CONFIRMED.",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vxsip_dialogs_destroyed_total",
			Help: "Dialogs destroyed by rejection, timeout or termination.",
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vxsip_dialogs_released_total",
			Help: "Dialog objects whose last reference was dropped.",
		}),
	}
	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vxsip_dialogs_active",
		Help: "Dialogs currently indexed, partial and full tables combined.",
	}, func() float64 {
		return float64(reg.full.count() + reg.partial.count())
	})
	pr.MustRegister(m.seeded, m.completed, m.destroyed, m.released, active)
	return m
}
