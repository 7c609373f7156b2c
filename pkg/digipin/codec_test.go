package digipin

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"
)

const referenceCode = "4P3-JM8-K4L6"

func TestEncode_KnownPoints(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"dak bhawan", 28.622788, 77.213033, "39J-49L-L8T4"},
		{"bengaluru", 12.9716, 77.5946, "4P3-JK8-52C9"},
		{"south-west corner", 2.5, 63.5, "LLL-LLL-LLLL"},
		{"north-east corner", 38.5, 99.5, "888-888-8888"},
		{"north-west corner", 38.5, 63.5, "FFF-FFF-FFFF"},
		{"south-east corner", 2.5, 99.5, "TTT-TTT-TTTT"},
		{"region center", 20.5, 81.5, "5FF-FFF-FFFF"},
	}
	for _, tc := range cases {
		got, err := Encode(tc.lat, tc.lon)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestEncode_OutOfRange(t *testing.T) {
	for _, p := range [][2]float64{
		{0, 0},
		{2.4999, 80},
		{38.5001, 80},
		{20, 63.4999},
		{20, 99.5001},
		{math.NaN(), 80},
		{20, math.Inf(1)},
	} {
		code, err := Encode(p[0], p[1])
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Encode(%v,%v) err=%v want ErrOutOfRange", p[0], p[1], err)
		}
		if code != "" {
			t.Fatalf("Encode(%v,%v) code=%q want empty", p[0], p[1], code)
		}
	}
}

func TestDecode_ReferenceCodeReencodes(t *testing.T) {
	loc, err := Decode(referenceCode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := Encode(loc.Lat, loc.Lon)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != referenceCode {
		t.Fatalf("got %s want %s", got, referenceCode)
	}
	if !loc.Bounds.Contains(loc.Lat, loc.Lon) {
		t.Fatalf("center %v,%v outside bounds %+v", loc.Lat, loc.Lon, loc.Bounds)
	}
}

func TestDecode_NormalizesInput(t *testing.T) {
	want, err := Decode(referenceCode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, in := range []string{"4p3-jm8-k4l6", "4P3JM8K4L6", "4-P-3-JM8K4L6"} {
		got, err := Decode(in)
		if err != nil {
			t.Fatalf("Decode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Decode(%q)=%+v want %+v", in, got, want)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ErrInvalidLength},
		{"4P3-JM8-K4L", ErrInvalidLength},
		{"4P3-JM8-K4L66", ErrInvalidLength},
		{"4P3-JM8-K4L0", ErrInvalidSymbol},
		{"AP3-JM8-K4L6", ErrInvalidSymbol},
		{"4P3 JM8K4L", ErrInvalidSymbol},
		{"4P3-JM8-K4Lé", ErrInvalidSymbol},
	}
	for _, tc := range cases {
		_, err := Decode(tc.in)
		if !errors.Is(err, tc.want) {
			t.Fatalf("Decode(%q) err=%v want %v", tc.in, err, tc.want)
		}
	}
}

func TestRoundTrip_ContainsAndReencodes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 5000 {
		lat := Region.MinLat + rng.Float64()*(Region.MaxLat-Region.MinLat)
		lon := Region.MinLon + rng.Float64()*(Region.MaxLon-Region.MinLon)

		code, err := Encode(lat, lon)
		if err != nil {
			t.Fatalf("Encode(%v,%v): %v", lat, lon, err)
		}
		loc, err := Decode(code)
		if err != nil {
			t.Fatalf("Decode(%s): %v", code, err)
		}
		if !loc.Bounds.Contains(lat, lon) {
			t.Fatalf("%s bounds %+v do not contain %v,%v", code, loc.Bounds, lat, lon)
		}
		again, err := Encode(loc.Lat, loc.Lon)
		if err != nil || again != code {
			t.Fatalf("center of %s re-encodes to %s (err=%v)", code, again, err)
		}
	}
}

func TestEncode_AlphabetClosure(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for range 1000 {
		lat := Region.MinLat + rng.Float64()*(Region.MaxLat-Region.MinLat)
		lon := Region.MinLon + rng.Float64()*(Region.MaxLon-Region.MinLon)
		code, err := Encode(lat, lon)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		for _, r := range Normalize(code) {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("symbol %q of %s not in alphabet", r, code)
			}
		}
		if !IsValidCode(code) {
			t.Fatalf("IsValidCode(%s)=false", code)
		}
	}
}

func TestEncode_GridLinesClampDeterministically(t *testing.T) {
	// every first-level grid line, including the region edges
	latDiv := (Region.MaxLat - Region.MinLat) / 4
	lonDiv := (Region.MaxLon - Region.MinLon) / 4
	for i := 0; i <= 4; i++ {
		for j := 0; j <= 4; j++ {
			lat := Region.MinLat + float64(i)*latDiv
			lon := Region.MinLon + float64(j)*lonDiv
			a, err := Encode(lat, lon)
			if err != nil {
				t.Fatalf("Encode(%v,%v): %v", lat, lon, err)
			}
			b, _ := Encode(lat, lon)
			if a != b {
				t.Fatalf("non-deterministic: %s vs %s", a, b)
			}
			loc, err := Decode(a)
			if err != nil {
				t.Fatalf("Decode(%s): %v", a, err)
			}
			if !loc.Bounds.Contains(lat, lon) {
				t.Fatalf("%s bounds %+v do not contain grid point %v,%v", a, loc.Bounds, lat, lon)
			}
		}
	}
}

func TestEncode_SameCellSameCode_AdjacentCellsDiffer(t *testing.T) {
	loc, err := Decode(referenceCode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b := loc.Bounds
	dLat := (b.MaxLat - b.MinLat) / 4
	dLon := (b.MaxLon - b.MinLon) / 4

	a, _ := Encode(loc.Lat+dLat, loc.Lon-dLon)
	c, _ := Encode(loc.Lat-dLat, loc.Lon+dLon)
	if a != referenceCode || c != referenceCode {
		t.Fatalf("points inside cell encoded to %s and %s, want %s", a, c, referenceCode)
	}

	east, _ := Encode(loc.Lat, loc.Lon+4*dLon)
	north, _ := Encode(loc.Lat+4*dLat, loc.Lon)
	if east == referenceCode || north == referenceCode {
		t.Fatalf("adjacent cells share code: east=%s north=%s", east, north)
	}
}

func TestIsValidCode(t *testing.T) {
	cases := map[string]bool{
		"4P3-JM8-K4L6":  true,
		"4p3jm8k4l6":    true,
		"FFF-FFF-FFFF":  true,
		"4P3-JM8-K4L":   false,
		"4P3-JM8-K4L66": false,
		"4P3-JM8-K4L1":  false,
		"4P3-JM8-K4L ":  false,
		"":              false,
	}
	for in, want := range cases {
		if got := IsValidCode(in); got != want {
			t.Fatalf("IsValidCode(%q)=%v want %v", in, got, want)
		}
	}
}

func TestIsValidCode_AgreesWithDecodeOnMultibyteInput(t *testing.T) {
	for _, in := range []string{
		"39J49LL8T4",
		"39J49LLÉ",   // 8 runes, 10 bytes
		"39J49LL8TÉ", // 10 runes, 11 bytes
		"39J49LL8T4É",
		"ÉÉÉÉÉ",
	} {
		_, err := Decode(in)
		if got := IsValidCode(in); got != (err == nil) {
			t.Fatalf("IsValidCode(%q)=%v but Decode err=%v", in, got, err)
		}
		wantFormatted := utf8.RuneCountInString(Normalize(in)) == Levels
		if formatted := FormatCode(in) != in; formatted != wantFormatted {
			t.Fatalf("FormatCode(%q)=%q", in, FormatCode(in))
		}
	}
	if _, err := Decode("39J49LLÉ"); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("Decode(8 runes) err=%v want ErrInvalidLength", err)
	}
}

func TestFormatCode(t *testing.T) {
	cases := map[string]string{
		"4p3jm8k4l6":   "4P3-JM8-K4L6",
		"4P3-JM8-K4L6": "4P3-JM8-K4L6",
		"4P-3JM8K-4L6": "4P3-JM8-K4L6",
		"abcdefghij":   "ABC-DEF-GHIJ",
		"short":        "short",
		"4p3-jm8-k4l":  "4p3-jm8-k4l",
		"":             "",
	}
	for in, want := range cases {
		if got := FormatCode(in); got != want {
			t.Fatalf("FormatCode(%q)=%q want %q", in, got, want)
		}
	}
}

func TestFormatCode_Idempotent(t *testing.T) {
	for _, in := range []string{
		"4p3jm8k4l6", "4P3-JM8-K4L6", "short", "", "----------",
		"ÀÀÀÀÀ", "éééééééééé", "a-b-c-d-e-f-g-h-i-j", "\xff\xfe12345678",
	} {
		once := FormatCode(in)
		if twice := FormatCode(once); twice != once {
			t.Fatalf("FormatCode not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsWithinBounds_InclusiveEdges(t *testing.T) {
	in := [][2]float64{{2.5, 63.5}, {38.5, 99.5}, {2.5, 99.5}, {38.5, 63.5}, {20, 80}}
	for _, p := range in {
		if !IsWithinBounds(p[0], p[1]) {
			t.Fatalf("IsWithinBounds(%v,%v)=false", p[0], p[1])
		}
	}
	out := [][2]float64{{0, 0}, {2.49, 80}, {38.51, 80}, {20, 63.49}, {20, 99.51}}
	for _, p := range out {
		if IsWithinBounds(p[0], p[1]) {
			t.Fatalf("IsWithinBounds(%v,%v)=true", p[0], p[1])
		}
	}
}

func TestRegionBounds_Center(t *testing.T) {
	if RegionBounds.Center != (Point{Lat: 20.5, Lon: 81.5}) {
		t.Fatalf("center=%+v", RegionBounds.Center)
	}
	if RegionBounds.Bounds != Region {
		t.Fatalf("bounds=%+v want %+v", RegionBounds.Bounds, Region)
	}
}
