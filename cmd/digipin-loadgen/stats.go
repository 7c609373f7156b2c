package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// sample is one request result.
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	Err       string
	Cache     string
	Index     int
	Code      string
}

func (s sample) ok() bool {
	return s.Err == "" && s.Status >= 200 && s.Status < 300
}

type summary struct {
	StartTime     time.Time        `json:"start"`
	EndTime       time.Time        `json:"end"`
	DurationSec   float64          `json:"duration_sec"`
	TotalRequests int64            `json:"total"`
	SuccessCount  int64            `json:"success"`
	ErrorCount    int64            `json:"errors"`
	ThroughputRPS float64          `json:"throughput_rps"`
	P50Ms         float64          `json:"p50_ms"`
	P95Ms         float64          `json:"p95_ms"`
	P99Ms         float64          `json:"p99_ms"`
	CacheTiers    map[string]int64 `json:"cache_tiers,omitempty"`
	Concurrency   int              `json:"concurrency"`
	ZipfS         float64          `json:"zipf_s"`
	ZipfV         float64          `json:"zipf_v"`
	Targets       int              `json:"targets"`
	Route         string           `json:"route"`
	BaseURL       string           `json:"base_url"`
}

// collector aggregates samples and optionally mirrors each one to CSV.
type collector struct {
	total   int64
	success int64
	errors  int64
	tiers   map[string]int64
	latMs   []float64
	csv     *csv.Writer
}

func newCollector(w *csv.Writer) *collector {
	c := &collector{tiers: map[string]int64{}, csv: w}
	if w != nil {
		_ = w.Write([]string{"timestamp", "latency_ms", "status", "error", "cache", "idx", "code"})
	}
	return c
}

func (c *collector) add(s sample) {
	c.total++
	ms := float64(s.Latency.Microseconds()) / 1000.0
	if s.ok() {
		c.success++
		c.latMs = append(c.latMs, ms)
		if s.Cache != "" {
			c.tiers[s.Cache]++
		}
	} else {
		c.errors++
	}
	if c.csv != nil {
		_ = c.csv.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", ms),
			strconv.Itoa(s.Status),
			s.Err,
			s.Cache,
			strconv.Itoa(s.Index),
			s.Code,
		})
	}
}

func (c *collector) flush() error {
	if c.csv == nil {
		return nil
	}
	c.csv.Flush()
	return c.csv.Error()
}

// summarize fills the measured fields of a summary. Latencies are sorted in place.
func (c *collector) summarize(start, end time.Time) summary {
	sort.Float64s(c.latMs)
	elapsed := end.Sub(start).Seconds()
	s := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: c.total,
		SuccessCount:  c.success,
		ErrorCount:    c.errors,
		P50Ms:         percentile(c.latMs, 50),
		P95Ms:         percentile(c.latMs, 95),
		P99Ms:         percentile(c.latMs, 99),
	}
	if elapsed > 0 {
		s.ThroughputRPS = float64(c.total) / elapsed
	}
	if len(c.tiers) > 0 {
		s.CacheTiers = c.tiers
	}
	return s
}

// percentile interpolates linearly between closest ranks of sortedValues.
// An empty slice yields 0 so the summary stays JSON-encodable.
func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
