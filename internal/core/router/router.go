package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/digipin/internal/cache/cellcache"
	"github.com/mohammed-shakir/digipin/internal/cellgeo"
	"github.com/mohammed-shakir/digipin/internal/core/middleware"
	"github.com/mohammed-shakir/digipin/internal/core/observability"
	mylog "github.com/mohammed-shakir/digipin/internal/logger"
	"github.com/mohammed-shakir/digipin/internal/lookupevents"
	h3mapper "github.com/mohammed-shakir/digipin/internal/mapper/h3"
	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

const (
	cellPayloadKind = "cell"
	// coarser prefixes would expand to too many H3 cells to embed
	minH3CoverLevel = 5
)

// Service serves the codec operations over HTTP. Cache and Events are
// optional; a nil Cache renders every cell payload on demand.
type Service struct {
	Codec  *digipin.Codec
	Cache  *cellcache.Cache
	H3     *h3mapper.Mapper
	Events lookupevents.Sink
	Log    *slog.Logger
}

func (s *Service) Routes(r chi.Router) {
	r.Get("/v1/encode", s.instrument("/v1/encode", "encode", s.handleEncode))
	r.Get("/v1/decode", s.instrument("/v1/decode", "decode", s.handleDecode))
	r.Get("/v1/validate", s.instrument("/v1/validate", "validate", s.handleValidate))
	r.Get("/v1/format", s.instrument("/v1/format", "format", s.handleFormat))
	r.Get("/v1/within", s.instrument("/v1/within", "within", s.handleWithin))
	r.Get("/v1/bounds", s.instrument("/v1/bounds", "bounds", s.handleBounds))
	r.Get("/v1/cells/{code}", s.instrument("/v1/cells/{code}", "cell", s.handleCell))
}

func (s *Service) instrument(route, op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := middleware.NewStatusWriter(w)
		ctx := mylog.WithOp(r.Context(), op)
		h(sw, r.WithContext(ctx))
		observability.ObserveHTTP(r.Method, route, sw.Code, time.Since(start).Seconds())
	}
}

type encodeResponse struct {
	Code string  `json:"code"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (s *Service) handleEncode(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code, err := s.Codec.Encode(lat, lon)
	s.record(r.Context(), lookupevents.Event{Op: "encode", Code: code, Lat: lat, Lon: lon}, err)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, encodeResponse{Code: code, Lat: lat, Lon: lon})
}

type decodeResponse struct {
	Code   string         `json:"code"`
	Lat    float64        `json:"lat"`
	Lon    float64        `json:"lon"`
	Bounds digipin.Bounds `json:"bounds"`
	H3     string         `json:"h3,omitempty"`
}

func (s *Service) handleDecode(w http.ResponseWriter, r *http.Request) {
	raw, err := requiredParam(r, "code")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loc, err := s.Codec.Decode(raw)
	code := digipin.FormatCode(raw)
	s.record(r.Context(), lookupevents.Event{Op: "decode", Code: code, Lat: loc.Lat, Lon: loc.Lon}, err)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	resp := decodeResponse{Code: code, Lat: loc.Lat, Lon: loc.Lon, Bounds: loc.Bounds}
	if s.H3 != nil {
		if cell, err := s.H3.CellForPoint(loc.Lat, loc.Lon); err == nil {
			resp.H3 = cell
		} else {
			s.Log.WarnContext(r.Context(), "h3 lookup failed", "code", code, "err", err)
		}
	}
	writeJSON(w, resp)
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	valid := s.Codec.IsValidCode(code)
	observability.ObserveCodec("validate", strconv.FormatBool(valid))
	writeJSON(w, struct {
		Code  string `json:"code"`
		Valid bool   `json:"valid"`
	}{code, valid})
}

func (s *Service) handleFormat(w http.ResponseWriter, r *http.Request) {
	observability.ObserveCodec("format", "ok")
	writeJSON(w, struct {
		Code string `json:"code"`
	}{digipin.FormatCode(r.URL.Query().Get("code"))})
}

func (s *Service) handleWithin(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	within := s.Codec.IsWithinBounds(lat, lon)
	observability.ObserveCodec("within", strconv.FormatBool(within))
	writeJSON(w, struct {
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		Within bool    `json:"within"`
	}{lat, lon, within})
}

func (s *Service) handleBounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, digipin.RegionBounds)
}

// handleCell serves the GeoJSON outline of a full code or a prefix.
func (s *Service) handleCell(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")
	cell, err := s.Codec.DecodePrefix(raw)
	center := cell.Center()
	s.record(r.Context(), lookupevents.Event{Op: "cell", Code: cell.Code, Lat: center.Lat, Lon: center.Lon}, err)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	render := func() ([]byte, error) {
		var h3Cells []string
		if s.H3 != nil && cell.Level >= minH3CoverLevel {
			cs, err := s.H3.CellsForBounds(cell.Bounds)
			if err != nil {
				return nil, err
			}
			h3Cells = cs
		}
		return cellgeo.Marshal(cell, h3Cells)
	}

	var (
		body []byte
		tier = cellcache.TierMiss
	)
	if s.Cache != nil {
		body, tier, err = s.Cache.GetOrCompute(r.Context(), cellPayloadKind, cell.Code, render)
	} else {
		body, err = render()
	}
	if err != nil {
		s.Log.ErrorContext(mylog.WithCacheTier(r.Context(), string(tier)), "render cell failed", "code", cell.Code, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	s.Log.DebugContext(mylog.WithCacheTier(r.Context(), string(tier)), "cell served", "code", cell.Code)

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Cache", string(tier))
	_, _ = w.Write(body)
}

func (s *Service) record(ctx context.Context, ev lookupevents.Event, err error) {
	ev.Outcome = Outcome(err)
	observability.ObserveCodec(ev.Op, ev.Outcome)
	if err != nil {
		s.Log.DebugContext(ctx, "codec rejected input", "err", err)
	}
	if s.Events != nil {
		s.Events.Publish(ev)
	}
}

// Outcome classifies a codec error for metrics and events.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, digipin.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, digipin.ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, digipin.ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, digipin.ErrInvalidLevel):
		return "invalid_level"
	default:
		return "error"
	}
}

func statusFor(err error) int {
	if Outcome(err) == "error" {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func parseLatLon(r *http.Request) (lat, lon float64, err error) {
	rawLat, err := requiredParam(r, "lat")
	if err != nil {
		return 0, 0, err
	}
	rawLon, err := requiredParam(r, "lon")
	if err != nil {
		return 0, 0, err
	}
	if lat, err = parseFloat(rawLat); err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	if lon, err = parseFloat(rawLon); err != nil {
		return 0, 0, fmt.Errorf("lon: %w", err)
	}
	return lat, lon, nil
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("missing required parameter: %s", name)
	}
	return v, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse float: %q is not a finite number", v)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(b, '\n'))
}
