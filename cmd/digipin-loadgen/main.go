package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/digipin/internal/logger"
)

type Config struct {
	BaseURL         string
	Route           string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	TargetCount     int
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
	TargetFile      string
	LogLevel        string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:8090", "digipin server base URL")
	flag.StringVar(&cfg.Route, "route", routeCells, "route to drive: cells|decode|encode")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.TargetCount, "targets", 256, "Distinct codes in pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/digipin", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append UTC timestamp to output prefix")
	flag.StringVar(&cfg.TargetFile, "targets-file", "", "Optional CSV (lat,lon columns) to drive the pool")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level")
	flag.Parse()
	return cfg
}

func main() {
	cfg := loadConfig()
	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Component: "digipin-loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("loadgen failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return fmt.Errorf("zipf parameters out of range: s=%.2f v=%.2f", cfg.ZipfS, cfg.ZipfV)
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed)) // #nosec G404 -- workload sampling

	var targets []target
	if strings.TrimSpace(cfg.TargetFile) != "" {
		loaded, err := loadTargetsCSV(cfg.TargetFile)
		if err != nil {
			log.Warn("targets file unusable, falling back to synthetic pool", "file", cfg.TargetFile, "err", err)
		} else {
			targets = loaded
			log.Info("using targets from file", "file", cfg.TargetFile, "count", len(targets))
		}
	}
	if len(targets) == 0 {
		targets = makeTargets(cfg.TargetCount, r)
		log.Info("using synthetic targets", "count", len(targets))
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets generated")
	}

	urls := make([]string, len(targets))
	for i, t := range targets {
		u, err := requestURL(cfg.BaseURL, cfg.Route, t)
		if err != nil {
			return err
		}
		urls[i] = u
	}

	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}
	if err := os.MkdirAll(filepath.Dir(prefix), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}
	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samples := make(chan sample, 4096)
	coll := newCollector(csv.NewWriter(csvFile))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range samples {
			coll.add(s)
		}
	}()

	log.Info("loadgen start",
		"target", cfg.BaseURL,
		"route", cfg.Route,
		"duration", cfg.Duration,
		"concurrency", cfg.Concurrency,
		"zipf_s", cfg.ZipfS,
		"zipf_v", cfg.ZipfV,
		"targets", len(targets))

	start := time.Now()
	imax := uint64(len(targets)) - 1
	g, gctx := errgroup.WithContext(runCtx)
	for id := range cfg.Concurrency {
		g.Go(func() error {
			rw := rand.New(rand.NewSource(seed + int64(id) + 1)) // #nosec G404 -- workload sampling
			zipf := rand.NewZipf(rw, cfg.ZipfS, cfg.ZipfV, imax)
			for gctx.Err() == nil {
				v := zipf.Uint64()
				if v > uint64(math.MaxInt) || int(v) >= len(targets) {
					continue
				}
				idx := int(v)
				s := fire(gctx, httpClient, urls[idx])
				s.Index = idx
				s.Code = targets[idx].Code
				select {
				case samples <- s:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(samples)
	<-done
	end := time.Now()

	if err := coll.flush(); err != nil {
		log.Warn("csv flush", "err", err)
	}

	sum := coll.summarize(start, end)
	sum.Concurrency = cfg.Concurrency
	sum.ZipfS = cfg.ZipfS
	sum.ZipfV = cfg.ZipfV
	sum.Targets = len(targets)
	sum.Route = cfg.Route
	sum.BaseURL = cfg.BaseURL

	if err := writeSummary(jsonPath, sum); err != nil {
		return err
	}

	log.Info("loadgen done",
		"total", sum.TotalRequests,
		"success", sum.SuccessCount,
		"errors", sum.ErrorCount,
		"rps", sum.ThroughputRPS,
		"p50_ms", sum.P50Ms,
		"p95_ms", sum.P95Ms,
		"p99_ms", sum.P99Ms,
		"cache", sum.CacheTiers)
	log.Info("wrote results", "summary", jsonPath, "samples", csvPath)
	return nil
}

// fire issues one GET and records its outcome. Requests cut short by the
// end of the run are reported as errors like any other transport failure.
func fire(ctx context.Context, c *http.Client, u string) sample {
	begin := time.Now()
	s := sample{Timestamp: begin}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	s.Latency = time.Since(begin)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	s.Status = resp.StatusCode
	s.Cache = resp.Header.Get("X-Cache")
	if !s.ok() {
		s.Err = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}

func writeSummary(path string, s summary) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
