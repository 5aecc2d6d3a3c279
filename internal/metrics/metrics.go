// Package metrics exposes attitude service counters and gauges for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple services never
// collide on the global default registerer.
type Metrics struct {
	reg *prometheus.Registry

	ticks        prometheus.Counter
	sourceErrors prometheus.Counter
	skipped      prometheus.Counter
	roll         prometheus.Gauge
	pitch        prometheus.Gauge
	yaw          prometheus.Gauge
	normError    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imufusion_ticks_total",
			Help: "Samples fed to the attitude filter.",
		}),
		sourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imufusion_source_errors_total",
			Help: "Sample source read failures.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imufusion_skipped_corrections_total",
			Help: "Ticks whose accelerometer sample was the zero vector, leaving the tick gyro-only.",
		}),
		roll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imufusion_roll_degrees",
			Help: "Current roll estimate.",
		}),
		pitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imufusion_pitch_degrees",
			Help: "Current pitch estimate.",
		}),
		yaw: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imufusion_yaw_degrees",
			Help: "Current yaw estimate.",
		}),
		normError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imufusion_quaternion_norm_error",
			Help: "Absolute deviation of |q|^2 from 1 after the last update.",
		}),
	}
	m.reg.MustRegister(m.ticks, m.sourceErrors, m.skipped, m.roll, m.pitch, m.yaw, m.normError)
	return m
}

// Tick records one filter update.
func (m *Metrics) Tick(roll, pitch, yaw, normError float64, skipped bool) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	if skipped {
		m.skipped.Inc()
	}
	m.roll.Set(roll)
	m.pitch.Set(pitch)
	m.yaw.Set(yaw)
	m.normError.Set(normError)
}

func (m *Metrics) SourceError() {
	if m == nil {
		return
	}
	m.sourceErrors.Inc()
}

// Registry is exposed for tests and for callers adding their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
