package digipin

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Levels is the number of subdivisions in a full code.
const Levels = 10

// Codec encodes and decodes codes over a fixed region and grid.
type Codec struct {
	region Bounds
	grid   *Grid
}

var (
	standardGrid = mustGrid(defaultLayout)
	defaultCodec = New()
)

// New returns a codec over Region using the standard symbol grid.
func New() *Codec {
	return &Codec{region: Region, grid: standardGrid}
}

// Location is the decoded form of a code: the cell center and its bounds.
type Location struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Bounds Bounds  `json:"bounds"`
}

// Cell is the rectangle addressed by a code or a prefix of one.
type Cell struct {
	Code  string `json:"code"`
	Level int    `json:"level"`
	Bounds
}

// Size returns the approximate north-south and east-west extent in metres.
func (c Cell) Size() (heightM, widthM float64) {
	const metresPerDegree = 111_320.0
	mid := (c.MinLat + c.MaxLat) / 2
	heightM = (c.MaxLat - c.MinLat) * metresPerDegree
	widthM = (c.MaxLon - c.MinLon) * metresPerDegree * math.Cos(mid*math.Pi/180)
	return heightM, widthM
}

// IsWithinBounds reports whether (lat, lon) lies inside the region, edges included.
func (c *Codec) IsWithinBounds(lat, lon float64) bool {
	return c.region.Contains(lat, lon)
}

// Encode returns the hyphenated 10-symbol code of (lat, lon).
func (c *Codec) Encode(lat, lon float64) (string, error) {
	raw, err := c.EncodeLevel(lat, lon, Levels)
	if err != nil {
		return "", err
	}
	return hyphenate(raw), nil
}

// EncodeLevel returns the unformatted code prefix of (lat, lon) at the
// given depth.
func (c *Codec) EncodeLevel(lat, lon float64, level int) (string, error) {
	if level < 1 || level > Levels {
		return "", fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidLevel, level, Levels)
	}
	if !c.region.Contains(lat, lon) {
		return "", fmt.Errorf("%w: lat=%g lon=%g", ErrOutOfRange, lat, lon)
	}

	var out [Levels]byte
	b := c.region
	for i := range level {
		row, col := b.locate(lat, lon)
		out[i] = c.grid.Symbol(row, col)
		b = b.narrow(row, col)
	}
	return string(out[:level]), nil
}

// Decode returns the center and bounds of the cell addressed by a full
// code. Hyphens and letter case are ignored.
func (c *Codec) Decode(code string) (Location, error) {
	n := Normalize(code)
	if k := utf8.RuneCountInString(n); k != Levels {
		return Location{}, fmt.Errorf("%w: got %d symbols, want %d", ErrInvalidLength, k, Levels)
	}
	cell, err := c.cell(n)
	if err != nil {
		return Location{}, err
	}
	center := cell.Center()
	return Location{Lat: center.Lat, Lon: center.Lon, Bounds: cell.Bounds}, nil
}

// DecodePrefix returns the cell addressed by a code prefix of 1..10 symbols.
func (c *Codec) DecodePrefix(prefix string) (Cell, error) {
	n := Normalize(prefix)
	if k := utf8.RuneCountInString(n); k < 1 || k > Levels {
		return Cell{}, fmt.Errorf("%w: got %d symbols, want 1..%d", ErrInvalidLength, k, Levels)
	}
	return c.cell(n)
}

func (c *Codec) cell(normalized string) (Cell, error) {
	b := c.region
	pos := 0
	for _, r := range normalized {
		pos++
		row, col, ok := c.lookup(r)
		if !ok {
			return Cell{}, fmt.Errorf("%w: %q at position %d", ErrInvalidSymbol, r, pos)
		}
		b = b.narrow(row, col)
	}
	return Cell{Code: normalized, Level: len(normalized), Bounds: b}, nil
}

// IsValidCode reports whether code normalizes to 10 alphabet symbols.
func (c *Codec) IsValidCode(code string) bool {
	n := Normalize(code)
	if utf8.RuneCountInString(n) != Levels {
		return false
	}
	for _, r := range n {
		if _, _, ok := c.lookup(r); !ok {
			return false
		}
	}
	return true
}

func (c *Codec) lookup(r rune) (row, col int, ok bool) {
	if r >= utf8.RuneSelf {
		return 0, 0, false
	}
	return c.grid.Lookup(byte(r))
}

// Normalize strips hyphens and upper-cases code.
func Normalize(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
}

// FormatCode returns the 3-3-4 hyphenated form of a 10-symbol code. Input
// that does not normalize to 10 characters is returned unchanged.
func FormatCode(raw string) string {
	n := Normalize(raw)
	if utf8.RuneCountInString(n) != Levels {
		return raw
	}
	return hyphenate(n)
}

// hyphenate splits a 10-rune code as 3-3-4.
func hyphenate(n string) string {
	r := []rune(n)
	return string(r[:3]) + "-" + string(r[3:6]) + "-" + string(r[6:])
}

// Encode is Codec.Encode on the default codec.
func Encode(lat, lon float64) (string, error) { return defaultCodec.Encode(lat, lon) }

// EncodeLevel is Codec.EncodeLevel on the default codec.
func EncodeLevel(lat, lon float64, level int) (string, error) {
	return defaultCodec.EncodeLevel(lat, lon, level)
}

// Decode is Codec.Decode on the default codec.
func Decode(code string) (Location, error) { return defaultCodec.Decode(code) }

// DecodePrefix is Codec.DecodePrefix on the default codec.
func DecodePrefix(prefix string) (Cell, error) { return defaultCodec.DecodePrefix(prefix) }

// IsValidCode is Codec.IsValidCode on the default codec.
func IsValidCode(code string) bool { return defaultCodec.IsValidCode(code) }

// IsWithinBounds is Codec.IsWithinBounds on the default codec.
func IsWithinBounds(lat, lon float64) bool { return defaultCodec.IsWithinBounds(lat, lon) }
