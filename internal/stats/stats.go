// Package stats implements the stats collector: a rolling window of
// per-style sample counts ingested over UDP, summarized with Welford's
// online algorithm and dumped as JSON to any TCP client that connects.
// Grounded on storage/node/storage_node_pylons/stats_collector/server.py.
package stats

import (
	"sync"
	"time"
)

// Window durations matching the original's 5s/5min/1hr summary buckets.
const (
	ShortWindow  = 5 * time.Second
	MediumWindow = 5 * time.Minute
	LongWindow   = time.Hour
)

// welford accumulates mean/variance online, matching the original's
// make() routine in server.py: no stored sample history, O(1) update.
type welford struct {
	count    int64
	mean     float64
	m2       float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) stddev() float64 {
	if w.count < 2 {
		return 0
	}
	variance := w.m2 / float64(w.count-1)
	if variance < 0 {
		return 0
	}
	return sqrt(variance)
}

func sqrt(v float64) float64 {
	if v == 0 {
		return 0
	}
	x := v
	for i := 0; i < 32; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

// Summary is the JSON shape returned to TCP clients for one style.
type Summary struct {
	Style    string  `json:"style"`
	Count    int64   `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stddev"`
}

// bucket holds the three rolling windows for one style, each reset on its
// own timer by the Collector's housekeeping loop.
type bucket struct {
	short, medium, long welford
}

// Collector ingests per-style sample counts and answers summary queries.
type Collector struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewCollector() *Collector {
	return &Collector{buckets: make(map[string]*bucket)}
}

// Record adds one sample (a job-processing count or latency value,
// depending on what the worker reports) for a style to all three windows.
func (c *Collector) Record(style string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[style]
	if !ok {
		b = &bucket{}
		c.buckets[style] = b
	}
	b.short.add(value)
	b.medium.add(value)
	b.long.add(value)
}

// Snapshot returns the long-window summary for every style currently
// tracked, the shape the TCP handler dumps as JSON on connect.
func (c *Collector) Snapshot() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Summary, 0, len(c.buckets))
	for style, b := range c.buckets {
		out = append(out, Summary{
			Style:  style,
			Count:  b.long.count,
			Mean:   b.long.mean,
			StdDev: b.long.stddev(),
		})
	}
	return out
}

// resetWindow resets the window selected by which for every tracked style;
// the housekeeping loop calls it for the short window every ShortWindow,
// and similarly for medium/long.
func (c *Collector) resetWindow(which func(*bucket) *welford) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets {
		*which(b) = welford{}
	}
}

// RunHousekeeping resets each rolling window on its own cadence until
// stop is closed.
func (c *Collector) RunHousekeeping(stop <-chan struct{}) {
	shortT := time.NewTicker(ShortWindow)
	medT := time.NewTicker(MediumWindow)
	longT := time.NewTicker(LongWindow)
	defer shortT.Stop()
	defer medT.Stop()
	defer longT.Stop()
	for {
		select {
		case <-shortT.C:
			c.resetWindow(func(b *bucket) *welford { return &b.short })
		case <-medT.C:
			c.resetWindow(func(b *bucket) *welford { return &b.medium })
		case <-longT.C:
			c.resetWindow(func(b *bucket) *welford { return &b.long })
		case <-stop:
			return
		}
	}
}
