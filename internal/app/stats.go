package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds, from 1µs up to one hour.
const (
	minLatency = 1
	maxLatency = int64(time.Hour / time.Microsecond)
)

// Stats collects per-leaf sink latencies. Safe for concurrent use.
type Stats struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	failed int64
}

// Summary is a snapshot of Stats.
type Summary struct {
	Count  int64
	Failed int64
	Mean   time.Duration
	P50    time.Duration
	P99    time.Duration
	Max    time.Duration
}

func newStats() *Stats {
	return &Stats{hist: hdrhistogram.New(minLatency, maxLatency, 3)}
}

// Record adds the latency of one leaf. Values outside the tracked range are
// clamped.
func (s *Stats) Record(d time.Duration, err error) {
	us := d.Microseconds()
	if us < minLatency {
		us = minLatency
	}
	if us > maxLatency {
		us = maxLatency
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.hist.RecordValue(us)
	if err != nil {
		s.failed++
	}
}

// Reset discards everything recorded so far.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Reset()
	s.failed = 0
}

// Summary returns the current counts and latency quantiles.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Summary{
		Count:  s.hist.TotalCount(),
		Failed: s.failed,
		Mean:   time.Duration(s.hist.Mean() * float64(time.Microsecond)),
		P50:    us(s.hist.ValueAtQuantile(50)),
		P99:    us(s.hist.ValueAtQuantile(99)),
		Max:    us(s.hist.Max()),
	}
}

// LogValue renders the summary as a log group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("count", s.Count),
		slog.Int64("failed", s.Failed),
		slog.Duration("mean", s.Mean),
		slog.Duration("p50", s.P50),
		slog.Duration("p99", s.P99),
		slog.Duration("max", s.Max),
	)
}
