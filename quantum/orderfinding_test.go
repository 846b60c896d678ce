package quantum

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConvergents(t *testing.T) {
	// 0.6875 = 11/16 = [0; 1, 2, 5]
	got := Convergents(11, 16, 100)
	want := []Rational{{0, 1}, {1, 1}, {2, 3}, {11, 16}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Convergents(11, 16) (-want +got):\n%s", diff)
	}

	if got := BestRational(11, 16, 10); got != (Rational{2, 3}) {
		t.Errorf("BestRational(11/16, max 10) = %v", got)
	}
	if got := BestRational(0, 16, 10); got != (Rational{0, 1}) {
		t.Errorf("BestRational(0/16) = %v", got)
	}
}

func TestPeriodFromPhase(t *testing.T) {
	tests := []struct {
		y    uint64
		t    int
		N, a uint64
		want uint64
		ok   bool
	}{
		{64, 8, 15, 7, 4, true},
		{192, 8, 15, 7, 4, true},
		{128, 8, 15, 7, 4, true}, // 1/2 reduced from 2/4
		{0, 8, 15, 7, 0, false},
		{8, 4, 15, 4, 2, true},
		{85, 8, 21, 2, 6, true}, // 85/256 ≈ 1/3, multiple 6
	}
	for _, tt := range tests {
		got, ok := PeriodFromPhase(tt.y, tt.t, tt.N, tt.a)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PeriodFromPhase(%d, %d, %d, %d) = %d, %v, want %d, %v",
				tt.y, tt.t, tt.N, tt.a, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindPeriod(t *testing.T) {
	qc := New(nil)
	keep := newRegister(t, qc, "keep", 1, 1)

	r, err := qc.FindPeriod(15, 7)
	if err != nil {
		t.Fatalf("FindPeriod(15, 7): %v", err)
	}
	if r != 4 {
		t.Errorf("FindPeriod(15, 7) = %d, want 4", r)
	}
	if qc.TotalWidth() != 1 {
		t.Errorf("scratch left allocated: width %d", qc.TotalWidth())
	}
	if got := classical(t, keep); got != 1 {
		t.Errorf("unrelated register changed to %d", got)
	}
}

func TestFindPeriodDense(t *testing.T) {
	qc := New(nil)
	r, err := qc.FindPeriodDense(15, 4, 4)
	if err != nil {
		t.Fatalf("FindPeriodDense(15, 4, 4): %v", err)
	}
	if r != 2 {
		t.Errorf("FindPeriodDense(15, 4, 4) = %d, want 2", r)
	}
	if qc.TotalWidth() != 0 {
		t.Errorf("scratch left allocated: width %d", qc.TotalWidth())
	}
}

func TestFindPeriodValidation(t *testing.T) {
	qc := New(nil)
	tests := []struct {
		N, a uint64
	}{
		{2, 1},
		{15, 1},
		{15, 15},
		{15, 6},
	}
	for _, tt := range tests {
		if _, err := qc.FindPeriod(tt.N, tt.a); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("FindPeriod(%d, %d) error = %v", tt.N, tt.a, err)
		}
	}

	_, err := qc.Capture(func(qc *Computer) error {
		_, err := qc.FindPeriod(15, 7)
		return err
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("FindPeriod while recording: err = %v", err)
	}
}
