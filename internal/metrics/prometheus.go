package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperjump/capcluster/internal/models"
)

// PrometheusRecorder implements Recorder backed by Prometheus.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	capacity   *prometheus.GaugeVec
	occupancy  *prometheus.GaugeVec
	items      *prometheus.GaugeVec
	quality    *prometheus.GaugeVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheus creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). namespace defaults to "capcluster".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "capcluster"
	}

	p := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session operations by family, operation and outcome.",
		}, []string{"family", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operation_duration_seconds",
			Help:      "Latency of session operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		}, []string{"family", "op"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "capacity",
			Help:      "Maximum number of members per cluster.",
		}, []string{"family", "cluster"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "occupancy",
			Help:      "Current number of members per cluster.",
		}, []string{"family", "cluster"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "items",
			Help:      "Items currently assigned in the session.",
		}, []string{"family"}),
		quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "quality_score",
			Help:      "Last computed quality score by metric (dunn_index, silhouette_coefficient, nmi, ari, ami).",
		}, []string{"family", "metric"}),
	}

	for _, c := range []prometheus.Collector{p.operations, p.latency, p.capacity, p.occupancy, p.items, p.quality} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveOperation counts the operation and records its latency.
func (p *PrometheusRecorder) ObserveOperation(family, op string, err error, elapsed time.Duration) {
	p.operations.WithLabelValues(family, op, Outcome(err)).Inc()
	p.latency.WithLabelValues(family, op).Observe(elapsed.Seconds())
}

// SetOccupancy publishes per-cluster capacity and occupancy.
func (p *PrometheusRecorder) SetOccupancy(family string, capacities, counts []int) {
	p.capacity.DeletePartialMatch(prometheus.Labels{"family": family})
	p.occupancy.DeletePartialMatch(prometheus.Labels{"family": family})

	total := 0
	for i := range capacities {
		idx := strconv.Itoa(i)
		p.capacity.WithLabelValues(family, idx).Set(float64(capacities[i]))
		if i < len(counts) {
			p.occupancy.WithLabelValues(family, idx).Set(float64(counts[i]))
			total += counts[i]
		}
	}
	p.items.WithLabelValues(family).Set(float64(total))
}

// SetQuality publishes the available scores and drops unavailable ones.
func (p *PrometheusRecorder) SetQuality(family string, snap *models.MetricsSnapshot) {
	p.quality.DeletePartialMatch(prometheus.Labels{"family": family})
	if snap == nil {
		return
	}
	if snap.DunnIndex != nil {
		p.quality.WithLabelValues(family, models.MetricDunn).Set(*snap.DunnIndex)
	}
	if snap.Silhouette != nil {
		p.quality.WithLabelValues(family, models.MetricSilhouette).Set(*snap.Silhouette)
	}
	if ext := snap.External; ext != nil {
		p.quality.WithLabelValues(family, "nmi").Set(ext.NMI)
		p.quality.WithLabelValues(family, "ari").Set(ext.ARI)
		p.quality.WithLabelValues(family, "ami").Set(ext.AMI)
	}
}

// ForgetSession removes the gauges of a family. Counters are kept.
func (p *PrometheusRecorder) ForgetSession(family string) {
	labels := prometheus.Labels{"family": family}
	p.capacity.DeletePartialMatch(labels)
	p.occupancy.DeletePartialMatch(labels)
	p.items.DeletePartialMatch(labels)
	p.quality.DeletePartialMatch(labels)
}
