// Package metrics exposes the gateway's prometheus collectors: gate
// decisions, cache hit/miss counts, and rate-limit rejections, per
// SPEC_FULL.md's domain-stack entry for observability. The teacher's
// own go.mod pulls in prometheus/client_golang transitively (via its
// pool's metrics tracker); this package promotes it to a direct,
// purposeful dependency instead of leaving it unreachable.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every counter/gauge the gateway records, plus the
// registry they were registered against. A nil *Collector is safe to
// call methods on (they become no-ops), so wiring metrics is optional
// per spec §6's `metrics.enabled` flag.
type Collector struct {
	registry        *prometheus.Registry
	gateDecisions   *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	rateLimitReject *prometheus.CounterVec
	authAttempts    *prometheus.CounterVec
}

// New builds a fresh registry (plus the default Go/process
// collectors) and registers the gateway's own collectors against it.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "davgateway",
			Subsystem: "edge",
			Name:      "gate_decisions_total",
			Help:      "Security gate decisions by action (spec §4.1).",
		}, []string{"action"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "davgateway",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "davgateway",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
		rateLimitReject: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "davgateway",
			Subsystem: "edge",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter; the scope label is always \"request\" (ip, user and global limits are not told apart).",
		}, []string{"scope"}),
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "davgateway",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by outcome (spec §4.2 failure taxonomy, or \"success\").",
		}, []string{"outcome"}),
	}
}

// RecordGateDecision implements edge.Metrics.
func (c *Collector) RecordGateDecision(action string) {
	if c == nil {
		return
	}
	c.gateDecisions.WithLabelValues(action).Inc()
	if action == "RATE_LIMIT" {
		c.rateLimitReject.WithLabelValues("request").Inc()
	}
}

// RecordCacheHit counts one hit on the named cache.
func (c *Collector) RecordCacheHit(cache string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts one miss on the named cache.
func (c *Collector) RecordCacheMiss(cache string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordAuthAttempt records one authentication outcome ("success" or
// a auth.FailureKind string).
func (c *Collector) RecordAuthAttempt(outcome string) {
	if c == nil {
		return
	}
	c.authAttempts.WithLabelValues(outcome).Inc()
}

// Handler serves the collector's registry in the prometheus text
// exposition format, for mounting at /metrics. Returns nil for a nil
// Collector; callers should only mount it when non-nil.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
