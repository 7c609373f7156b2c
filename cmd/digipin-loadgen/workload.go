package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

const (
	routeCells  = "cells"
	routeDecode = "decode"
	routeEncode = "encode"
)

// target is one addressable location in the request pool.
type target struct {
	Code string
	Lat  float64
	Lon  float64
}

// metro areas that receive the "hot" share of the pool
var hotspots = []digipin.Point{
	{Lat: 28.6139, Lon: 77.2090}, // Delhi
	{Lat: 19.0760, Lon: 72.8777}, // Mumbai
	{Lat: 12.9716, Lon: 77.5946}, // Bengaluru
	{Lat: 13.0827, Lon: 80.2707}, // Chennai
	{Lat: 22.5726, Lon: 88.3639}, // Kolkata
	{Lat: 17.3850, Lon: 78.4867}, // Hyderabad
}

// makeTargets builds a pool of count targets: a hot quarter clustered around
// the metro hotspots followed by cold targets spread over the whole region.
// Zipf sampling over the index favours the front of the pool.
func makeTargets(count int, r *rand.Rand) []target {
	if count <= 0 {
		return nil
	}
	out := make([]target, 0, count)

	hot := max(len(hotspots), count/4)
	for i := 0; i < hot && len(out) < count; i++ {
		c := hotspots[i%len(hotspots)]
		lat := c.Lat + (r.Float64()-0.5)*0.10
		lon := c.Lon + (r.Float64()-0.5)*0.10
		if t, ok := newTarget(lat, lon); ok {
			out = append(out, t)
		}
	}

	reg := digipin.Region
	for len(out) < count {
		lat := reg.MinLat + r.Float64()*(reg.MaxLat-reg.MinLat)
		lon := reg.MinLon + r.Float64()*(reg.MaxLon-reg.MinLon)
		if t, ok := newTarget(lat, lon); ok {
			out = append(out, t)
		}
	}
	return out
}

func newTarget(lat, lon float64) (target, bool) {
	code, err := digipin.Encode(lat, lon)
	if err != nil {
		return target{}, false
	}
	return target{Code: code, Lat: lat, Lon: lon}, true
}

// loadTargetsCSV reads a CSV with at least the columns id,lat,lon. Rows
// outside the region are skipped.
func loadTargetsCSV(path string) ([]target, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	latIdx, okLat := colIdx["lat"]
	lonIdx, okLon := colIdx["lon"]
	if !okLat || !okLon {
		return nil, fmt.Errorf("targets csv: expected columns lat,lon; got %v", header)
	}

	var out []target
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		latStr := strings.TrimSpace(rec[latIdx])
		lonStr := strings.TrimSpace(rec[lonIdx])
		if latStr == "" || lonStr == "" {
			continue
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return nil, fmt.Errorf("parse lat %q: %w", latStr, err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, fmt.Errorf("parse lon %q: %w", lonStr, err)
		}
		if t, ok := newTarget(lat, lon); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// requestURL builds the request URL for one target against the service base URL.
func requestURL(base, route string, t target) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("bad target url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	q := url.Values{}
	switch route {
	case routeCells:
		u = u.JoinPath("v1", "cells", t.Code)
	case routeDecode:
		u = u.JoinPath("v1", "decode")
		q.Set("code", t.Code)
	case routeEncode:
		u = u.JoinPath("v1", "encode")
		q.Set("lat", strconv.FormatFloat(t.Lat, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(t.Lon, 'f', 6, 64))
	default:
		return "", fmt.Errorf("unknown route %q", route)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
