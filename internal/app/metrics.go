package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus collectors of the monitor loop.
type Metrics struct {
	registry *prometheus.Registry

	tiltAngle      prometheus.Gauge
	filteredG      prometheus.Gauge
	postureState   prometheus.Gauge
	transitions    *prometheus.CounterVec
	cycles         prometheus.Counter
	detectAttempts prometheus.Counter
	readErrors     prometheus.Counter
}

// NewMetrics creates the collectors in a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tiltAngle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_tilt_angle_degrees",
			Help: "Filtered tilt angle of the vertical axis.",
		}),
		filteredG: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_filtered_g",
			Help: "Moving average of the normalized vertical axis.",
		}),
		postureState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_state",
			Help: "Current posture, 0 lying, 1 sitting.",
		}),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posture_transitions_total",
				Help: "Posture changes by target state.",
			},
			[]string{"to"},
		),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_cycles_total",
			Help: "Completed sampling cycles.",
		}),
		detectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_detect_attempts_total",
			Help: "Accelerometer identity checks at startup.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_read_errors_total",
			Help: "Bus errors while reading samples.",
		}),
	}
	m.registry.MustRegister(m.tiltAngle, m.filteredG, m.postureState, m.transitions, m.cycles, m.detectAttempts, m.readErrors)
	return m
}

func (m *Metrics) observe(r Reading, changed bool) {
	m.cycles.Inc()
	m.tiltAngle.Set(r.Angle)
	m.filteredG.Set(r.Mean)
	m.postureState.Set(float64(r.State))
	if changed {
		m.transitions.With(prometheus.Labels{"to": r.State.String()}).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
