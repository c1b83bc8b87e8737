// Package metrics provides Prometheus metrics for the charger gateway.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics for the service.
type Registry struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	ReadingsTotal prometheus.Counter
	ReadErrors    *prometheus.CounterVec

	// Discovery metrics
	DiscoveriesTotal    *prometheus.CounterVec
	DiscoveryDuration   prometheus.Histogram
	ChargersDiscovered  prometheus.Gauge
	ReportedDeviceCount prometheus.Gauge

	// Derived values
	InstantPower *prometheus.GaugeVec

	// MQTT metrics
	MQTTMessagesPublished prometheus.Counter
	MQTTMessagesFailed    prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	return &Registry{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "polling",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by outcome",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "charger",
			Subsystem: "polling",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ReadingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "polling",
			Name:      "readings_total",
			Help:      "Total number of decoded register readings",
		}),
		ReadErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "polling",
			Name:      "read_errors_total",
			Help:      "Register read failures by register key and slave",
		}, []string{"register", "slave"}),

		DiscoveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Total number of discovery passes by outcome",
		}, []string{"status"}),
		DiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "charger",
			Subsystem: "discovery",
			Name:      "duration_seconds",
			Help:      "Device identification exchange duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ChargersDiscovered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "charger",
			Subsystem: "discovery",
			Name:      "chargers",
			Help:      "Number of charger sub-devices in the active device list",
		}),
		ReportedDeviceCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "charger",
			Subsystem: "discovery",
			Name:      "reported_devices",
			Help:      "Sub-device count the gateway reports in its root identification object",
		}),

		InstantPower: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "charger",
			Subsystem: "power",
			Name:      "instant_kw",
			Help:      "Derived instantaneous charging power in kW",
		}, []string{"slave"}),

		MQTTMessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "mqtt",
			Name:      "messages_published_total",
			Help:      "Total number of MQTT messages published",
		}),
		MQTTMessagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "charger",
			Subsystem: "mqtt",
			Name:      "messages_failed_total",
			Help:      "Total number of failed MQTT publishes",
		}),
	}
}

// RecordCycleSuccess records a completed poll cycle.
func (r *Registry) RecordCycleSuccess(duration float64, readings int) {
	r.CyclesTotal.WithLabelValues("success").Inc()
	r.CycleDuration.Observe(duration)
	r.ReadingsTotal.Add(float64(readings))
}

// RecordCycleError records a failed poll cycle.
func (r *Registry) RecordCycleError() {
	r.CyclesTotal.WithLabelValues("error").Inc()
}

// RecordReadError records an isolated per-register read failure.
func (r *Registry) RecordReadError(registerKey string, slaveID int) {
	r.ReadErrors.WithLabelValues(registerKey, strconv.Itoa(slaveID)).Inc()
}

// RecordDiscovery records a discovery pass.
func (r *Registry) RecordDiscovery(success bool, duration float64) {
	status := "success"
	if !success {
		status = "error"
	}
	r.DiscoveriesTotal.WithLabelValues(status).Inc()
	r.DiscoveryDuration.Observe(duration)
}

// UpdateDeviceCounts updates the discovery gauges.
func (r *Registry) UpdateDeviceCounts(chargers, reported int) {
	r.ChargersDiscovered.Set(float64(chargers))
	r.ReportedDeviceCount.Set(float64(reported))
}

// SetInstantPower updates the derived power gauge for one charger.
func (r *Registry) SetInstantPower(slaveID int, kw float64) {
	r.InstantPower.WithLabelValues(strconv.Itoa(slaveID)).Set(kw)
}

// RecordMQTTPublish records an MQTT publish attempt.
func (r *Registry) RecordMQTTPublish(success bool) {
	if success {
		r.MQTTMessagesPublished.Inc()
	} else {
		r.MQTTMessagesFailed.Inc()
	}
}
