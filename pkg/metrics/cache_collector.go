package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheCounts is a point-in-time reading of an in-process cache.
type CacheCounts struct {
	Hits    int64
	Misses  int64
	Entries int
}

// CacheCollector exports the counters of named in-process caches, read on
// every scrape from a snapshot function.
type CacheCollector struct {
	snapshot func() map[string]CacheCounts
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	entries  *prometheus.Desc
}

// NewCacheCollector returns a collector reporting, per cache name, the
// values snapshot returns.
func NewCacheCollector(namespace string, snapshot func() map[string]CacheCounts) *CacheCollector {
	labels := []string{"cache"}
	return &CacheCollector{
		snapshot: snapshot,
		hits:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "hits_total"), "Cache lookups answered from memory.", labels, nil),
		misses:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "misses_total"), "Cache lookups that had to build the value.", labels, nil),
		entries:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "entries"), "Entries currently held.", labels, nil),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.entries
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, counts := range c.snapshot() {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(counts.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(counts.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(counts.Entries), name)
	}
}
