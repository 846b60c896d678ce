package quantum

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// approxAmplitudes compares amplitude maps entry by entry within 1e-9.
var approxAmplitudes = cmp.Comparer(func(x, y complex128) bool {
	return cmplx.Abs(x-y) < 1e-9
})

func TestQFTRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for width := 1; width <= 6; width++ {
		dist := make(map[uint64]complex128)
		for i := 0; i < 3; i++ {
			v := uint64(rng.Intn(1 << uint(width)))
			dist[v] = complex(rng.NormFloat64(), rng.NormFloat64())
		}

		qc := New(nil)
		newRegister(t, qc, "pad", 1, 1)
		r, err := qc.NewRegisterFromDistribution("x", dist, width)
		if err != nil {
			t.Fatal(err)
		}
		before := qc.Store().Snapshot()

		if err := qc.QFT(r); err != nil {
			t.Fatalf("width %d: QFT: %v", width, err)
		}
		if err := qc.InverseQFT(r); err != nil {
			t.Fatalf("width %d: InverseQFT: %v", width, err)
		}
		if diff := cmp.Diff(before, qc.Store().Snapshot(), approxAmplitudes); diff != "" {
			t.Errorf("width %d: round trip changed the store (-before +after):\n%s", width, diff)
		}
	}
}

func TestQFTOfBasisState(t *testing.T) {
	const width, x = 3, 5
	qc := New(nil)
	r := newRegister(t, qc, "x", x, width)
	if err := qc.QFT(r); err != nil {
		t.Fatal(err)
	}

	n := float64(uint64(1) << width)
	want := make(map[uint64]complex128)
	for y := uint64(0); y < 1<<width; y++ {
		want[y] = cmplx.Exp(complex(0, 2*math.Pi*x*float64(y)/n)) / complex(math.Sqrt(n), 0)
	}
	if diff := cmp.Diff(want, qc.Store().Snapshot(), approxAmplitudes); diff != "" {
		t.Errorf("QFT|5⟩ mismatch (-want +got):\n%s", diff)
	}
}

func TestAQFT(t *testing.T) {
	const width = 4
	exact := New(nil)
	approx := New(nil)
	a := newRegister(t, exact, "x", 6, width)
	b := newRegister(t, approx, "x", 6, width)

	if err := exact.QFT(a); err != nil {
		t.Fatal(err)
	}
	if err := approx.AQFT(b, width-1); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(exact.Store().Snapshot(), approx.Store().Snapshot(), approxAmplitudes); diff != "" {
		t.Errorf("AQFT with full cutoff differs from QFT:\n%s", diff)
	}

	if err := approx.AQFT(b, -1); err == nil {
		t.Error("negative cutoff accepted")
	}
}

func TestWalsh(t *testing.T) {
	qc := New(nil)
	r := newRegister(t, qc, "x", 0, 4)
	if err := qc.Walsh(r); err != nil {
		t.Fatal(err)
	}
	probs := r.GetProbabilities()
	if len(probs) != 16 {
		t.Fatalf("Walsh reached %d states, want 16", len(probs))
	}
	for v, p := range probs {
		if math.Abs(p-1.0/16) > 1e-9 {
			t.Errorf("P(%d) = %v", v, p)
		}
	}
}
