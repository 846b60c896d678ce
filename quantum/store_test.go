package quantum

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func newRegister(t *testing.T, qc *Computer, name string, value uint64, width int) *Register {
	t.Helper()
	r, err := qc.NewRegister(name, value, width)
	if err != nil {
		t.Fatalf("NewRegister(%q, %d, %d): %v", name, value, width, err)
	}
	return r
}

func randomGate(t *testing.T, rng *rand.Rand, r *Register) {
	t.Helper()
	target := rng.Intn(r.Width())
	theta := rng.Float64() * 2 * math.Pi
	var err error
	switch rng.Intn(10) {
	case 0:
		err = r.Hadamard(target)
	case 1:
		err = r.SigmaX(target)
	case 2:
		err = r.SigmaY(target)
	case 3:
		err = r.SigmaZ(target)
	case 4:
		err = r.SqrtX(target)
	case 5:
		err = r.PhaseKick(theta, target)
	case 6:
		err = r.RotateX(theta, target)
	case 7:
		err = r.RotateY(theta, target)
	case 8:
		err = r.RotateZ(theta, target)
	case 9:
		if r.Width() < 2 {
			err = r.Hadamard(target)
			break
		}
		control := (target + 1 + rng.Intn(r.Width()-1)) % r.Width()
		err = r.CNot(control, target)
	}
	if err != nil {
		t.Fatalf("random gate: %v", err)
	}
}

func TestNormalization(t *testing.T) {
	for width := 1; width <= 10; width++ {
		qc := New(nil)
		r := newRegister(t, qc, "q", 0, width)
		rng := rand.New(rand.NewSource(int64(width)))

		for i := 0; i < 200; i++ {
			randomGate(t, rng, r)
			if n := qc.Norm(); math.Abs(n-1) > 1e-9 {
				t.Fatalf("width %d after %d gates: norm %v", width, i+1, n)
			}
		}
		for k, a := range qc.Store().Snapshot() {
			if cmplx.Abs(a) < qc.Config().PruneEpsilon {
				t.Errorf("width %d: state %d kept with negligible amplitude %v", width, k, a)
			}
		}
	}
}

func TestStoreSparse(t *testing.T) {
	qc := New(nil)
	r := newRegister(t, qc, "q", 0, 3)

	if got := qc.Store().Len(); got != 1 {
		t.Fatalf("fresh register: %d states, want 1", got)
	}
	if err := r.Hadamard(0); err != nil {
		t.Fatal(err)
	}
	if err := r.Hadamard(0); err != nil {
		t.Fatal(err)
	}
	if got := qc.Store().Len(); got != 1 {
		t.Errorf("H·H: %d states, want 1 (cancelled amplitudes must be dropped)\n%s", got, spew.Sdump(qc.Store().Snapshot()))
	}
	if a := qc.Store().Amplitude(0); cmplx.Abs(a-1) > 1e-12 {
		t.Errorf("H·H amplitude of |000⟩ = %v, want 1", a)
	}
}

func TestProbabilitiesAndEntanglement(t *testing.T) {
	qc := New(nil)
	a := newRegister(t, qc, "a", 0, 1)
	b := newRegister(t, qc, "b", 0, 1)

	if err := a.Hadamard(0); err != nil {
		t.Fatal(err)
	}
	if a.IsEntangled() {
		t.Fatal("a is a product factor after H")
	}
	for _, s := range a.GetAmplitudes() {
		if s.Amplitude == nil {
			t.Fatalf("amplitude of %s is unknown on a product register", s.Ket())
		}
		if math.Abs(cmplx.Abs(*s.Amplitude)-1/math.Sqrt2) > 1e-9 {
			t.Errorf("amplitude of %s = %v", s.Ket(), *s.Amplitude)
		}
	}

	if err := qc.Root().CNot(a.Row(0), b.Row(0)); err != nil {
		t.Fatal(err)
	}
	if !a.IsEntangled() || !b.IsEntangled() {
		t.Fatal("Bell pair should be entangled")
	}
	states := b.GetAmplitudes()
	if len(states) != 2 {
		t.Fatalf("b has %d reachable states, want 2", len(states))
	}
	for _, s := range states {
		if s.Amplitude != nil {
			t.Errorf("entangled register reported amplitude %v for %s", *s.Amplitude, s.Ket())
		}
		if s.AmplitudeString() != "—" {
			t.Errorf("AmplitudeString() = %q", s.AmplitudeString())
		}
		if math.Abs(s.Probability-0.5) > 1e-9 {
			t.Errorf("P(%s) = %v, want 0.5", s.Ket(), s.Probability)
		}
	}

	root := qc.Root().GetProbabilities()
	if math.Abs(root[0]-0.5) > 1e-9 || math.Abs(root[3]-0.5) > 1e-9 || len(root) != 2 {
		t.Errorf("root distribution = %v", root)
	}
}

func TestCollapse(t *testing.T) {
	qc := New(nil)
	r := newRegister(t, qc, "q", 0, 2)
	if err := qc.Walsh(r); err != nil {
		t.Fatal(err)
	}
	hi, err := r.Slice(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	v, err := hi.Measure()
	if err != nil {
		t.Fatal(err)
	}
	probs := r.GetProbabilities()
	if len(probs) != 2 {
		t.Fatalf("after measuring one qubit: %v", probs)
	}
	for state, p := range probs {
		if state>>1 != v {
			t.Errorf("state %b survived collapse onto high bit %d", state, v)
		}
		if math.Abs(p-0.5) > 1e-9 {
			t.Errorf("P(%b) = %v, want 0.5", state, p)
		}
	}
	if math.Abs(qc.Norm()-1) > 1e-9 {
		t.Errorf("norm after collapse = %v", qc.Norm())
	}
}
