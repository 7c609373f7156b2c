// Package cellgeo renders DIGIPIN cells as GeoJSON for map clients.
package cellgeo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/digipin/pkg/digipin"
)

// Polygon returns the closed, counter-clockwise outer ring of b.
func Polygon(b digipin.Bounds) orb.Polygon {
	bound := orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
	return bound.ToPolygon()
}

// Feature builds a GeoJSON feature for cell. h3Cells may be empty.
func Feature(cell digipin.Cell, h3Cells []string) *geojson.Feature {
	f := geojson.NewFeature(Polygon(cell.Bounds))
	f.ID = cell.Code

	center := cell.Center()
	h, w := cell.Size()
	f.Properties["code"] = displayCode(cell)
	f.Properties["level"] = cell.Level
	f.Properties["center"] = []float64{center.Lon, center.Lat}
	f.Properties["height_m"] = round2(h)
	f.Properties["width_m"] = round2(w)
	if len(h3Cells) > 0 {
		f.Properties["h3"] = h3Cells
	}
	return f
}

// Marshal renders cell as a GeoJSON feature document.
func Marshal(cell digipin.Cell, h3Cells []string) ([]byte, error) {
	b, err := Feature(cell, h3Cells).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal cell %s: %w", cell.Code, err)
	}
	return b, nil
}

// RegionFeature outlines the whole bounding region.
func RegionFeature() *geojson.Feature {
	f := geojson.NewFeature(Polygon(digipin.Region))
	f.Properties["center"] = []float64{digipin.RegionBounds.Center.Lon, digipin.RegionBounds.Center.Lat}
	return f
}

func displayCode(cell digipin.Cell) string {
	if cell.Level == digipin.Levels {
		return digipin.FormatCode(cell.Code)
	}
	return cell.Code
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
