package quantum

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1.5707", 1.5707},
		{"15", 15},
		{"-0.5", -0.5},
		{"3.14e-2", 0.0314},
		{"pi", math.Pi},
		{"pi/2", math.Pi / 2},
		{"2pi", 2 * math.Pi},
		{"2*pi", 2 * math.Pi},
		{"3*pi/4", 3 * math.Pi / 4},
		{"3pi/4", 3 * math.Pi / 4},
		{"-pi", -math.Pi},
		{"-pi/2", -math.Pi / 2},
		{"-3*pi/4", -3 * math.Pi / 4},
		{"PI/3", math.Pi / 3},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseNumber(tt.input)
			if !ok {
				t.Fatalf("parseNumber(%q) failed", tt.input)
			}
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("parseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "pie", "pi/0", "x"} {
		if _, ok := parseNumber(bad); ok {
			t.Errorf("parseNumber(%q) should fail", bad)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{math.Pi, "pi"},
		{-math.Pi / 2, "-pi/2"},
		{3 * math.Pi / 4, "3*pi/4"},
		{7, "7"},
		{-3, "-3"},
		{0.25, "0.25"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.input); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseParams(t *testing.T) {
	got, err := ParseParams("a, b[2], c[1,3], 15, pi/4")
	if err != nil {
		t.Fatal(err)
	}
	want := []Param{
		RegisterRef{Name: "a"},
		RegisterPartRef{Name: "b", Offset: 2, Width: 1},
		RegisterPartRef{Name: "c", Offset: 1, Width: 3},
		Number{Value: 15},
		Number{Value: math.Pi / 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseParams (-want +got):\n%s", diff)
	}

	if s := FormatParams(got); s != "a, b[2], c[1,3], 15, pi/4" {
		t.Errorf("FormatParams = %q", s)
	}

	for _, bad := range []string{"a[", "1a", "b[1,0]", "a b"} {
		if _, err := ParseParams(bad); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("ParseParams(%q) error = %v", bad, err)
		}
	}
}

func TestNumberUint(t *testing.T) {
	if v, err := (Number{Value: 12}).Uint(); err != nil || v != 12 {
		t.Errorf("Uint(12) = %d, %v", v, err)
	}
	for _, bad := range []float64{-1, 1.5, math.Inf(1)} {
		if _, err := (Number{Value: bad}).Uint(); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("Uint(%v) error = %v", bad, err)
		}
	}
}
