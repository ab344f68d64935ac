package prommetrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-bdpay/core"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets covers millisecond timings from 5ms to about 10s.
var DefaultDurationBuckets = prometheus.ExponentialBuckets(5, 2, 12)

// Recorder implements core.MetricsRecorder on prometheus vectors. Metric
// names are sanitized ("bdpay.webhook.total" becomes "bdpay_webhook_total")
// and tag keys become label names. A metric keeps the label set of its
// first observation; observations with other tag keys are dropped.
type Recorder struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*vecEntry[*prometheus.CounterVec]
	histograms map[string]*vecEntry[*prometheus.HistogramVec]
}

type vecEntry[V any] struct {
	vec    V
	labels []string
}

type Option func(*Recorder)

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// New returns a recorder registering on registerer, or on the default
// registry when registerer is nil.
func New(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		registerer: registerer,
		buckets:    DefaultDurationBuckets,
		counters:   map[string]*vecEntry[*prometheus.CounterVec]{},
		histograms: map[string]*vecEntry[*prometheus.HistogramVec]{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metric := sanitize(name)
	if metric == "" {
		return
	}
	labels := labelNames(tags)

	r.mu.Lock()
	entry, ok := r.counters[metric]
	if !ok {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "bdpay counter " + name,
		}, labels)
		entry = &vecEntry[*prometheus.CounterVec]{vec: registerCollector(r.registerer, vec), labels: labels}
		r.counters[metric] = entry
	}
	r.mu.Unlock()

	if !sameLabels(entry.labels, labels) {
		return
	}
	entry.vec.With(labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metric := sanitize(name)
	if metric == "" {
		return
	}
	labels := labelNames(tags)

	r.mu.Lock()
	entry, ok := r.histograms[metric]
	if !ok {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "bdpay histogram " + name,
			Buckets: r.buckets,
		}, labels)
		entry = &vecEntry[*prometheus.HistogramVec]{vec: registerCollector(r.registerer, vec), labels: labels}
		r.histograms[metric] = entry
	}
	r.mu.Unlock()

	if !sameLabels(entry.labels, labels) {
		return
	}
	entry.vec.With(labelValues(tags)).Observe(value)
}

// registerCollector registers vec, reusing an identical collector that is
// already registered.
func registerCollector[V prometheus.Collector](registerer prometheus.Registerer, vec V) V {
	if err := registerer.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(V); ok {
				return existing
			}
		}
	}
	return vec
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		if label := sanitize(key); label != "" {
			names = append(names, label)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags))
	for key, value := range tags {
		if label := sanitize(key); label != "" {
			labels[label] = value
		}
	}
	return labels
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
