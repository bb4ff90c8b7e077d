package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats aggregates the outcome of every request sent by the workers.
type Stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies map[string][]time.Duration
	statuses  map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]time.Duration),
		statuses:  make(map[int]int64),
	}
}

// Record adds one request of the given workload kind. A transport error is
// passed as err with status 0.
func (s *Stats) Record(kind string, d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	s.latencies[kind] = append(s.latencies[kind], d)
	s.statuses[status]++
	s.mu.Unlock()
}

// Summary is the latency distribution of one workload kind.
type Summary struct {
	Count  int
	Min    time.Duration
	Avg    time.Duration
	P50    time.Duration
	P90    time.Duration
	P99    time.Duration
	Max    time.Duration
	StdDev time.Duration
}

func summarize(latencies []time.Duration) Summary {
	if len(latencies) == 0 {
		return Summary{}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg := sum / time.Duration(len(sorted))
	var sq float64
	for _, l := range sorted {
		diff := float64(l - avg)
		sq += diff * diff
	}
	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Avg:    avg,
		P50:    percentile(sorted, 50),
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
		Max:    sorted[len(sorted)-1],
		StdDev: time.Duration(math.Sqrt(sq / float64(len(sorted)))),
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// Report prints the totals, per-kind latencies and status codes.
func (s *Stats) Report(w io.Writer, elapsed time.Duration) {
	total := s.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", s.success.Load())
	fmt.Fprintf(w, "Errors:          %d\n", s.failed.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]string, 0, len(s.latencies))
	for kind := range s.latencies {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency ===")
	fmt.Fprintf(w, "%-8s %7s %10s %10s %10s %10s %10s %10s %10s\n",
		"kind", "count", "min", "avg", "p50", "p90", "p99", "max", "stddev")
	for _, kind := range kinds {
		sum := summarize(s.latencies[kind])
		fmt.Fprintf(w, "%-8s %7d %10s %10s %10s %10s %10s %10s %10s\n",
			kind, sum.Count, sum.Min, sum.Avg, sum.P50, sum.P90, sum.P99, sum.Max, sum.StdDev)
	}

	codes := make([]int, 0, len(s.statuses))
	for code := range s.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.statuses[code])
	}
}
