package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const shardCount = 32

// Collector records request/response round-trip times from many connections.
// Recording goes to one of a fixed set of shards chosen by the caller's hint,
// so connections pinned to different shards never contend.
type Collector struct {
	shards [shardCount]*shard
}

type shard struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
	sum  time.Duration
	min  time.Duration
	max  time.Duration
}

// Stats summarizes recorded round trips.
type Stats struct {
	Count       int64         `json:"count" yaml:"count"`
	MinLatency  time.Duration `json:"-" yaml:"-"`
	MaxLatency  time.Duration `json:"-" yaml:"-"`
	MeanLatency time.Duration `json:"-" yaml:"-"`
	P50Latency  time.Duration `json:"-" yaml:"-"`
	P90Latency  time.Duration `json:"-" yaml:"-"`
	P99Latency  time.Duration `json:"-" yaml:"-"`
	P999Latency time.Duration `json:"-" yaml:"-"`

	MinLatencyMs  float64 `json:"min_ms" yaml:"min_ms"`
	MaxLatencyMs  float64 `json:"max_ms" yaml:"max_ms"`
	MeanLatencyMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50LatencyMs  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90LatencyMs  float64 `json:"p90_ms" yaml:"p90_ms"`
	P99LatencyMs  float64 `json:"p99_ms" yaml:"p99_ms"`
	P999LatencyMs float64 `json:"p999_ms" yaml:"p999_ms"`
}

func newHistogram() *hdrhistogram.Histogram {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return hdrhistogram.New(1, 60_000_000, 3)
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	c := &Collector{}
	for i := range c.shards {
		c.shards[i] = &shard{hist: newHistogram()}
	}
	return c
}

// Record adds one round trip. hint is typically the worker index.
func (c *Collector) Record(hint int, latency time.Duration) {
	if c == nil {
		return
	}
	if hint < 0 {
		hint = -hint
	}
	s := c.shards[hint%shardCount]

	us := latency.Microseconds()
	s.mu.Lock()
	defer s.mu.Unlock()

	if us < s.hist.LowestTrackableValue() {
		us = s.hist.LowestTrackableValue()
	}
	if us > s.hist.HighestTrackableValue() {
		us = s.hist.HighestTrackableValue()
	}
	_ = s.hist.RecordValue(us)
	s.sum += latency
	if s.min == 0 || latency < s.min {
		s.min = latency
	}
	if latency > s.max {
		s.max = latency
	}
}

// Stats merges every shard into one summary.
func (c *Collector) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	merged := newHistogram()
	var sum, minLatency, maxLatency time.Duration
	for _, s := range c.shards {
		s.mu.Lock()
		merged.Merge(s.hist)
		sum += s.sum
		if s.min > 0 && (minLatency == 0 || s.min < minLatency) {
			minLatency = s.min
		}
		if s.max > maxLatency {
			maxLatency = s.max
		}
		s.mu.Unlock()
	}

	stats := Stats{
		Count:      merged.TotalCount(),
		MinLatency: minLatency,
		MaxLatency: maxLatency,
	}
	if stats.Count > 0 {
		stats.MeanLatency = time.Duration(int64(sum) / stats.Count)
		stats.P50Latency = time.Duration(merged.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(merged.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(merged.ValueAtQuantile(99)) * time.Microsecond
		stats.P999Latency = time.Duration(merged.ValueAtQuantile(99.9)) * time.Microsecond
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.P999LatencyMs = toMs(stats.P999Latency)
	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
