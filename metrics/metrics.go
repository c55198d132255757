// Package metrics is the StatsSink seam spec §7 leaves open ("an
// implementation MAY expose operation counters and latencies; this spec
// does not mandate a format"). It is grounded on nothing in the teacher
// repo directly — btree.go has no instrumentation at all — but on the
// wider pack's use of github.com/prometheus/client_golang, which the
// teacher already pulls in transitively through pebble. A tree opened
// without btree.WithStats pays nothing: every call site nil-checks the
// sink.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// StatsSink receives point-in-time counters from a running tree. Btree
// calls IncOp/ObserveLatencySeconds/SetPageCount/SetCacheResident after
// every Add/Remove/Find/Mem/Iter, and IncSplit/IncMerge from the Add/
// Remove page-management paths directly; a nil StatsSink is valid and
// simply means "don't record".
type StatsSink interface {
	IncOp(op string)
	ObserveLatencySeconds(op string, seconds float64)
	SetPageCount(n int)
	SetCacheResident(n int)
	IncSplit(kind string)
	IncMerge(kind string, partial bool)
}

// Prometheus is a StatsSink backed by client_golang collectors. Every
// series it records carries the one tree label given to NewPrometheus, so
// several trees report to one registry by each using its own sink under a
// distinct tree name.
type Prometheus struct {
	tree string

	ops       *prometheus.CounterVec
	latencies *prometheus.HistogramVec
	pageCount *prometheus.GaugeVec
	cacheSize *prometheus.GaugeVec
	splits    *prometheus.CounterVec
	merges    *prometheus.CounterVec
}

// NewPrometheus constructs and registers the collector set under reg. tree
// labels every series so several trees can share one registry.
func NewPrometheus(reg prometheus.Registerer, tree string) *Prometheus {
	p := &Prometheus{
		tree: tree,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btreekv",
			Name:      "ops_total",
			Help:      "Count of tree operations by kind.",
		}, []string{"tree", "op"}),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "btreekv",
			Name:      "op_latency_seconds",
			Help:      "Per-operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tree", "op"}),
		pageCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "btreekv",
			Name:      "pages",
			Help:      "Total allocated pages, including freelist members.",
		}, []string{"tree"}),
		cacheSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "btreekv",
			Name:      "cache_resident_pages",
			Help:      "Pages currently resident in the page cache.",
		}, []string{"tree"}),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btreekv",
			Name:      "splits_total",
			Help:      "Page splits by kind (leaf/node).",
		}, []string{"tree", "kind"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btreekv",
			Name:      "merges_total",
			Help:      "Page merges by kind and outcome.",
		}, []string{"tree", "kind", "outcome"}),
	}
	reg.MustRegister(p.ops, p.latencies, p.pageCount, p.cacheSize, p.splits, p.merges)
	return p
}

func (p *Prometheus) IncOp(op string) {
	p.ops.WithLabelValues(p.tree, op).Inc()
}

func (p *Prometheus) ObserveLatencySeconds(op string, seconds float64) {
	p.latencies.WithLabelValues(p.tree, op).Observe(seconds)
}

func (p *Prometheus) SetPageCount(n int) {
	p.pageCount.WithLabelValues(p.tree).Set(float64(n))
}

func (p *Prometheus) SetCacheResident(n int) {
	p.cacheSize.WithLabelValues(p.tree).Set(float64(n))
}

func (p *Prometheus) IncSplit(kind string) {
	p.splits.WithLabelValues(p.tree, kind).Inc()
}

func (p *Prometheus) IncMerge(kind string, partial bool) {
	outcome := "total"
	if partial {
		outcome = "partial"
	}
	p.merges.WithLabelValues(p.tree, kind, outcome).Inc()
}
