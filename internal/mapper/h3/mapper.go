// Package h3mapper relates DIGIPIN cells to H3 cells so stores indexed by
// H3 can be joined on decoded codes.
package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

// CellForPoint returns the H3 cell containing (lat, lon).
func (m *Mapper) CellForPoint(lat, lon float64) (string, error) {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %g,%g: %w", lat, lon, err)
	}
	return c.String(), nil
}

// CellsForBounds covers b with H3 cells whose centers fall inside it,
// sorted and de-duplicated. A rectangle smaller than one H3 cell is
// covered by the cell containing its center.
func (m *Mapper) CellsForBounds(b digipin.Bounds) ([]string, error) {
	outer := h3.GeoLoop{
		{Lat: b.MinLat, Lng: b.MinLon},
		{Lat: b.MinLat, Lng: b.MaxLon},
		{Lat: b.MaxLat, Lng: b.MaxLon},
		{Lat: b.MaxLat, Lng: b.MinLon},
	}
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, m.res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	if len(indexes) == 0 {
		center := b.Center()
		c, err := m.CellForPoint(center.Lat, center.Lon)
		if err != nil {
			return nil, err
		}
		return []string{c}, nil
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
