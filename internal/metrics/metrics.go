package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
// All helper methods accept a nil receiver.
type Metrics struct {
	Updates    *prometheus.CounterVec
	Findings   *prometheus.CounterVec
	Sanctions  *prometheus.CounterVec
	QueueDepth prometheus.Gauge
	SendDelay  prometheus.Histogram
	Errors     *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Total platform updates handled by kind.",
			}, []string{"kind"}),
			Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scam_findings_total",
				Help:      "Total scam findings by scam type.",
			}, []string{"type"}),
			Sanctions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sanctions_total",
				Help:      "Sanctions by outcome.",
			}, []string{"outcome"}),
			QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sanction_queue_depth",
				Help:      "Sanctions waiting for the responder.",
			}),
			SendDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sanction_delay_seconds",
				Help:      "Randomised wait applied before each reply.",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 60, 120},
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.Updates,
			metricsInstance.Findings,
			metricsInstance.Sanctions,
			metricsInstance.QueueDepth,
			metricsInstance.SendDelay,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}

// Update counts a handled update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
}

// Finding counts a scam finding.
func (m *Metrics) Finding(scamType string) {
	if m == nil {
		return
	}
	m.Findings.WithLabelValues(scamType).Inc()
}

// Sanction counts a sanction outcome such as enqueued, dropped or sent.
func (m *Metrics) Sanction(outcome string) {
	if m == nil {
		return
	}
	m.Sanctions.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveDelay records a reply delay.
func (m *Metrics) ObserveDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.SendDelay.Observe(d.Seconds())
}

// Error counts an error for component.
func (m *Metrics) Error(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}
