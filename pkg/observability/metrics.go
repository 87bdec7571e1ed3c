package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the voting worker.
const (
	PairsExecuted  = "pairs.executed"
	PairsSkipped   = "pairs.skipped"
	PairsFailed    = "pairs.failed"
	PairsPreviewed = "pairs.previewed"
	PairsInFlight  = "pairs.inflight"
	PairDuration   = "pair.duration_ms"
	AnalysisCalls  = "analysis.calls"
	SocialFailures = "social.failures"
	CyclesRun      = "cycles.run"
	CyclesFailed   = "cycles.failed"
	CyclesBusy     = "cycles.busy"
	CycleDuration  = "cycle.duration_ms"
)

type Counter struct {
	value int64
}

func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

func (c *Counter) Add(n int64) {
	atomic.AddInt64(&c.value, n)
}

func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Gauge tracks a current value and the highest value it has reached.
type Gauge struct {
	value int64
	peak  int64
}

func (g *Gauge) Set(v int64) {
	atomic.StoreInt64(&g.value, v)
	g.raisePeak(v)
}

func (g *Gauge) Inc() {
	g.raisePeak(atomic.AddInt64(&g.value, 1))
}

func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

func (g *Gauge) Peak() int64 {
	return atomic.LoadInt64(&g.peak)
}

func (g *Gauge) raisePeak(v int64) {
	for {
		cur := atomic.LoadInt64(&g.peak)
		if v <= cur || atomic.CompareAndSwapInt64(&g.peak, cur, v) {
			return
		}
	}
}

// Histogram keeps a bounded window of recent samples plus running totals.
type Histogram struct {
	mu     sync.Mutex
	values []float64
	sum    float64
	count  int64
}

const histogramWindow = 1024

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == histogramWindow {
		h.values = h.values[1:]
	}
	h.values = append(h.values, v)
	h.sum += v
	h.count++
}

func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(float64(time.Since(start).Milliseconds()))
}

func (h *Histogram) Snapshot() (count int64, sum float64, avg float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0, 0, 0
	}
	return h.count, h.sum, h.sum / float64(h.count)
}

// Quantile is computed over the retained window only.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	sorted := append([]float64(nil), h.values...)
	h.mu.Unlock()
	if len(sorted) == 0 {
		return 0
	}
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type MetricsRegistry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *MetricsRegistry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	return c
}

func (r *MetricsRegistry) Gauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	return g
}

func (r *MetricsRegistry) Histogram(name string) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := &Histogram{}
	r.histograms[name] = h
	return h
}

func (r *MetricsRegistry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]interface{})
	for name, c := range r.counters {
		result["counter."+name] = c.Value()
	}
	for name, g := range r.gauges {
		result["gauge."+name] = g.Value()
		result["gauge."+name+".peak"] = g.Peak()
	}
	for name, h := range r.histograms {
		count, sum, avg := h.Snapshot()
		result["histogram."+name+".count"] = count
		result["histogram."+name+".sum"] = sum
		result["histogram."+name+".avg"] = avg
		result["histogram."+name+".p95"] = h.Quantile(0.95)
	}
	return result
}
