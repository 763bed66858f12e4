package metric

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "kvstore"

// Operation results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Compaction triggers.
const (
	TriggerManual   = "manual"
	TriggerInterval = "interval"
	TriggerWALSize  = "wal_size"
)

// Registry holds all store metrics.
type Registry struct {
	registry *prometheus.Registry

	// Operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Storage metrics
	Keys          prometheus.Gauge
	WALBytes      prometheus.Gauge
	WALRecords    prometheus.Gauge
	SnapshotBytes prometheus.Gauge

	// Compaction metrics
	Compactions       *prometheus.CounterVec
	SnapshotFallbacks prometheus.Counter
}

// NewRegistry creates a registry with all store metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by name and result.",
		}, []string{"op", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"op"}),
		Keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys",
			Help:      "Number of keys in the store.",
		}),
		WALBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wal_bytes",
			Help:      "Size of the write-ahead log in bytes.",
		}),
		WALRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wal_records",
			Help:      "Records in the write-ahead log since the last compaction.",
		}),
		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of the snapshot file in bytes.",
		}),
		Compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Compactions by trigger and result.",
		}, []string{"trigger", "result"}),
		SnapshotFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fallbacks_total",
			Help:      "Startups that discarded a corrupt snapshot.",
		}),
	}

	reg.MustRegister(
		r.Operations,
		r.OperationDuration,
		r.Keys,
		r.WALBytes,
		r.WALRecords,
		r.SnapshotBytes,
		r.Compactions,
		r.SnapshotFallbacks,
		collectors.NewGoCollector(),
	)
	return r
}

// Gatherer returns the underlying Prometheus gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Gather collects the store metric families, skipping Go runtime metrics.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	mfs, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := mfs[:0]
	for _, mf := range mfs {
		if strings.HasPrefix(mf.GetName(), namespace+"_") {
			out = append(out, mf)
		}
	}
	return out, nil
}

// ObserveOperation records one operation and its latency.
func (r *Registry) ObserveOperation(op, result string, elapsed time.Duration) {
	r.Operations.WithLabelValues(op, result).Inc()
	r.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetStorage updates the storage gauges.
func (r *Registry) SetStorage(keys int, walBytes int64, walRecords int) {
	r.Keys.Set(float64(keys))
	r.WALBytes.Set(float64(walBytes))
	r.WALRecords.Set(float64(walRecords))
}

// RecordCompaction counts one compaction attempt.
func (r *Registry) RecordCompaction(trigger string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.Compactions.WithLabelValues(trigger, result).Inc()
}

// Sample is one flattened metric value.
type Sample struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value" yaml:"value"`
}

// Samples flattens the store metrics into name, labels and value, sorted by
// name. Histograms report their observation count.
func (r *Registry) Samples() ([]Sample, error) {
	mfs, err := r.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Labels: make(map[string]string, len(m.GetLabel()))}
			for _, lp := range m.GetLabel() {
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Name += "_count"
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Value returns the current value of the named metric whose labels include
// all given label pairs (name1, value1, name2, value2, ...). Values of every
// matching series are summed. Missing metrics read as zero.
func (r *Registry) Value(name string, labelPairs ...string) float64 {
	samples, err := r.Samples()
	if err != nil {
		return 0
	}
	var total float64
	for _, s := range samples {
		if s.Name != name || !hasLabels(s.Labels, labelPairs) {
			continue
		}
		total += s.Value
	}
	return total
}

func hasLabels(labels map[string]string, pairs []string) bool {
	for i := 0; i+1 < len(pairs); i += 2 {
		if labels[pairs[i]] != pairs[i+1] {
			return false
		}
	}
	return true
}
