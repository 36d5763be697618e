// Package metrics exports coordinator events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements mustache.Observer on top of Prometheus metrics.
type Collector struct {
	cacheLookups *prometheus.CounterVec
	fetches      prometheus.Counter
	renders      *prometheus.CounterVec
	renderTime   prometheus.Histogram
}

// NewCollector creates the collector's metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stache",
			Name:      "cache_lookups_total",
			Help:      "Named template lookups against the token cache, by result.",
		}, []string{"result"}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stache",
			Name:      "template_fetches_total",
			Help:      "Templates read through the resolver.",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stache",
			Name:      "renders_total",
			Help:      "Completed render calls, by outcome.",
		}, []string{"outcome"}),
		renderTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stache",
			Name:      "render_duration_seconds",
			Help:      "Time spent in render calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	for _, collector := range []prometheus.Collector{c.cacheLookups, c.fetches, c.renders, c.renderTime} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) CacheHit(string) {
	c.cacheLookups.WithLabelValues("hit").Inc()
}

func (c *Collector) CacheMiss(string) {
	c.cacheLookups.WithLabelValues("miss").Inc()
}

func (c *Collector) TemplateFetched(string) {
	c.fetches.Inc()
}

func (c *Collector) RenderFinished(elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.renders.WithLabelValues(outcome).Inc()
	c.renderTime.Observe(elapsed.Seconds())
}
