package digipin

import "math"

// Bounds is an axis-aligned lat/lon rectangle, edges inclusive.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region is the rectangle inside which codes are defined.
var Region = Bounds{MinLat: 2.5, MaxLat: 38.5, MinLon: 63.5, MaxLon: 99.5}

// RegionDescriptor is the read-only framing information handed to map
// collaborators.
type RegionDescriptor struct {
	Bounds
	Center Point `json:"center"`
}

// RegionBounds describes Region and its center.
var RegionBounds = RegionDescriptor{Bounds: Region, Center: Region.Center()}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

func (b Bounds) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// divisions returns the latitude and longitude span of one sub-cell.
func (b Bounds) divisions() (latDiv, lonDiv float64) {
	return (b.MaxLat - b.MinLat) / gridSize, (b.MaxLon - b.MinLon) / gridSize
}

// locate returns the clamped sub-cell indices of (lat, lon). Row 0 is the
// northern band, so rows count down from MaxLat.
func (b Bounds) locate(lat, lon float64) (row, col int) {
	latDiv, lonDiv := b.divisions()
	row = clampIndex(math.Floor((b.MaxLat - lat) / latDiv))
	col = clampIndex(math.Floor((lon - b.MinLon) / lonDiv))
	return row, col
}

// narrow is shared by encode and decode so both directions derive
// bit-identical cell bounds. The explicit float64 conversions keep the
// compiler from fusing multiply-add on architectures with FMA.
func (b Bounds) narrow(row, col int) Bounds {
	latDiv, lonDiv := b.divisions()
	maxLat := b.MaxLat - float64(float64(row)*latDiv)
	minLon := b.MinLon + float64(float64(col)*lonDiv)
	return Bounds{
		MinLat: maxLat - latDiv,
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: minLon + lonDiv,
	}
}

func clampIndex(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > gridSize-1:
		return gridSize - 1
	default:
		return int(f)
	}
}
