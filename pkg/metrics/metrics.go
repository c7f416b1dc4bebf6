// Package metrics exports counters for decoded frames and hardware actions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/ardctl/pkg/bossa"
	"github.com/robotalks/ardctl/pkg/dispatch"
)

// Collector records daemon activity.
type Collector struct {
	Registry *prometheus.Registry

	frames  *prometheus.CounterVec
	actions *prometheus.CounterVec
	busy    prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ardctl",
				Subsystem: "bossa",
				Name:      "frames_total",
				Help:      "Authenticated frames decoded from the bitstream.",
			},
			[]string{"command"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ardctl",
				Subsystem: "dispatch",
				Name:      "actions_total",
				Help:      "Hardware actions by phase and source.",
			},
			[]string{"action", "phase", "source"},
		),
		busy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ardctl",
				Subsystem: "dispatch",
				Name:      "sequence_in_flight",
				Help:      "1 while an erase sequence is running.",
			},
		),
	}
	c.Registry.MustRegister(c.frames, c.actions, c.busy)
	return c
}

// ObserveFrame counts a decoded frame.
func (c *Collector) ObserveFrame(f bossa.Frame) {
	c.frames.WithLabelValues(strconv.Itoa(int(f.Command))).Inc()
}

// Observe implements dispatch.Observer.
func (c *Collector) Observe(ev dispatch.Event) {
	c.actions.WithLabelValues(string(ev.Action), string(ev.Phase), string(ev.Source)).Inc()
	if ev.Action != dispatch.ActionErase {
		return
	}
	switch ev.Phase {
	case dispatch.PhaseStarted:
		c.busy.Set(1)
	case dispatch.PhaseCompleted:
		c.busy.Set(0)
	}
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
