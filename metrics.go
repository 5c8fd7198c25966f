package combridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the bridge's observability surface (spec SPEC_FULL §4
// AMBIENT). It is purely ambient: no operation's correctness depends on
// these counters, following OPA's storage/disk/metrics.go pattern of a
// small struct of named prometheus instruments registered against their
// own registry.
type Metrics struct {
	Registry *prometheus.Registry

	EOCacheSize          prometheus.Gauge
	EOCachePublishes     prometheus.Counter
	EOCacheCollected     prometheus.Counter
	MOWCreates           prometheus.Counter
	MOWReactivations     prometheus.Counter
	RefCacheEdges        prometheus.Counter
	GCMajorCollections   prometheus.Counter
	GCTrackingSeconds    prometheus.Histogram
}

// NewMetrics builds a Metrics bound to a fresh, private registry. Callers
// that want these instruments on their process-wide registry can
// reg.MustRegister the exported fields themselves, or scrape m.Registry
// directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EOCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "combridge_eocache_size",
			Help: "Current number of EOCs held in the external-object cache.",
		}),
		EOCachePublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_eocache_publishes_total",
			Help: "Total EOCs published to the external-object cache.",
		}),
		EOCacheCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_eocache_collected_total",
			Help: "Total EOCs marked collected by the GC.",
		}),
		MOWCreates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_mow_creates_total",
			Help: "Total managed-object wrappers created.",
		}),
		MOWReactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_mow_reactivations_total",
			Help: "Total managed-object wrapper reactivations.",
		}),
		RefCacheEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_refcache_edges_total",
			Help: "Total dependent edges recorded into the reference-path cache.",
		}),
		GCMajorCollections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "combridge_gc_major_collections_total",
			Help: "Total major collections that triggered reference tracking.",
		}),
		GCTrackingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "combridge_gc_tracking_seconds",
			Help:    "Wall-clock duration of each reference-tracking window.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	reg.MustRegister(
		m.EOCacheSize, m.EOCachePublishes, m.EOCacheCollected,
		m.MOWCreates, m.MOWReactivations, m.RefCacheEdges,
		m.GCMajorCollections, m.GCTrackingSeconds,
	)
	return m
}
