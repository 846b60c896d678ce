package quantum

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMeasurementDistribution(t *testing.T) {
	const width, samples = 3, 10000
	qc := New(nil)
	counts := make(map[uint64]int)
	for i := 0; i < samples; i++ {
		qc.Reset()
		r := newRegister(t, qc, "q", 0, width)
		if err := qc.Walsh(r); err != nil {
			t.Fatal(err)
		}
		v, err := r.Measure()
		if err != nil {
			t.Fatal(err)
		}
		counts[v]++
	}

	want := 1.0 / (1 << width)
	// five standard deviations of a binomial frequency
	tol := 5 * math.Sqrt(want*(1-want)/samples)
	for v := uint64(0); v < 1<<width; v++ {
		got := float64(counts[v]) / samples
		if math.Abs(got-want) > tol {
			t.Errorf("frequency of %d = %.4f, want %.4f ± %.4f", v, got, want, tol)
		}
	}
}

func TestMeasureIsDeterministicForSeed(t *testing.T) {
	run := func(seed int64) []uint64 {
		cfg := NewConfig()
		cfg.Seed = seed
		qc := New(cfg)
		var out []uint64
		for i := 0; i < 20; i++ {
			qc.Reset()
			r := newRegister(t, qc, "q", 0, 4)
			if err := qc.Walsh(r); err != nil {
				t.Fatal(err)
			}
			v, err := r.Measure()
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, v)
		}
		return out
	}
	if diff := cmp.Diff(run(42), run(42)); diff != "" {
		t.Errorf("same seed, different outcomes:\n%s", diff)
	}
}

func TestTapeReplay(t *testing.T) {
	prepare := func(qc *Computer) *Register {
		r := newRegister(t, qc, "q", 0, 3)
		if err := qc.Walsh(r); err != nil {
			t.Fatal(err)
		}
		return r
	}

	first := New(nil)
	r := prepare(first)
	first.BeginTape(nil)
	v, err := r.Measure()
	if err != nil {
		t.Fatal(err)
	}
	tape := first.EndTape()
	if diff := cmp.Diff([]uint64{v}, tape); diff != "" {
		t.Fatalf("recorded tape (-want +got):\n%s", diff)
	}

	cfg := NewConfig()
	cfg.Seed = 99
	second := New(cfg)
	r2 := prepare(second)
	second.BeginTape(tape)
	got, err := r2.Measure()
	if err != nil {
		t.Fatal(err)
	}
	second.EndTape()
	if got != v {
		t.Errorf("replayed measurement = %d, want %d", got, v)
	}
	if diff := cmp.Diff(first.Store().Snapshot(), second.Store().Snapshot(), approxAmplitudes); diff != "" {
		t.Errorf("replayed store differs:\n%s", diff)
	}
}

func TestTapeImpossibleOutcome(t *testing.T) {
	qc := New(nil)
	r := newRegister(t, qc, "q", 2, 2)
	qc.BeginTape([]uint64{1})
	defer qc.EndTape()
	if _, err := r.Measure(); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("replaying an impossible outcome: err = %v", err)
	}
}

func TestDeleteRegister(t *testing.T) {
	qc := New(nil)
	a := newRegister(t, qc, "a", 1, 2)
	b := newRegister(t, qc, "b", 5, 3)
	c := newRegister(t, qc, "c", 1, 1)
	cHigh := c.part(0, 1)

	if err := qc.DeleteRegister(b); err != nil {
		t.Fatalf("DeleteRegister(b): %v", err)
	}
	if !b.Freed() {
		t.Error("b not marked freed")
	}
	if got := c.OffsetToRoot(); got != 2 {
		t.Errorf("c offset after free = %d, want 2", got)
	}
	if got := cHigh.OffsetToRoot(); got != 2 {
		t.Errorf("slice of c offset after free = %d, want 2", got)
	}
	if got := qc.TotalWidth(); got != 3 {
		t.Errorf("TotalWidth = %d, want 3", got)
	}
	if got := classical(t, a); got != 1 {
		t.Errorf("a = %d after freeing b", got)
	}
	if got := classical(t, c); got != 1 {
		t.Errorf("c = %d after freeing b", got)
	}
	if err := b.Hadamard(0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("gate on freed register: err = %v", err)
	}
	if err := qc.DeleteRegister(b); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("double free: err = %v", err)
	}
}

func TestDeleteEntangledRegister(t *testing.T) {
	qc := New(nil)
	a := newRegister(t, qc, "a", 0, 1)
	b := newRegister(t, qc, "b", 0, 1)
	if err := a.Hadamard(0); err != nil {
		t.Fatal(err)
	}
	if err := qc.Root().CNot(a.Row(0), b.Row(0)); err != nil {
		t.Fatal(err)
	}
	before := qc.Store().Snapshot()

	if err := qc.DeleteRegister(a); !errors.Is(err, ErrEntangledRegisterFree) {
		t.Fatalf("DeleteRegister(entangled) error = %v", err)
	}
	if a.Freed() || qc.TotalWidth() != 2 {
		t.Error("failed free changed the register table")
	}
	if diff := cmp.Diff(before, qc.Store().Snapshot()); diff != "" {
		t.Errorf("failed free touched the store:\n%s", diff)
	}

	if _, err := b.Measure(); err != nil {
		t.Fatal(err)
	}
	if err := qc.DeleteRegister(a); err != nil {
		t.Errorf("free after measurement: %v", err)
	}
}

func TestNewRegisterErrors(t *testing.T) {
	qc := New(nil)
	newRegister(t, qc, "a", 0, 2)

	if _, err := qc.NewRegister("a", 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("duplicate name: err = %v", err)
	}
	if _, err := qc.NewRegister("b", 4, 2); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("value too large: err = %v", err)
	}
	if _, err := qc.NewRegister("b", 0, 0); !errors.Is(err, ErrInvalidRegisterWidth) {
		t.Errorf("zero width: err = %v", err)
	}
	if _, err := qc.NewRegister("b", 0, MaxQubits); !errors.Is(err, ErrInvalidRegisterWidth) {
		t.Errorf("store overflow: err = %v", err)
	}
	if _, err := qc.NewRegisterFromDistribution("b", map[uint64]complex128{}, 2); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("empty distribution: err = %v", err)
	}
	if _, err := qc.NewRegister(scratchPrefix+"1", 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("reserved name: err = %v", err)
	}
}

func TestScratchNamesDoNotCollide(t *testing.T) {
	qc := New(nil)
	a := newRegister(t, qc, "a", 1, 2)
	b := newRegister(t, qc, "b", 1, 3)
	// every name an unnamed allocation could have taken under a plain
	// counter scheme
	for i := range 8 {
		newRegister(t, qc, fmt.Sprintf("r%d", i), 0, 1)
	}

	tmp, err := qc.NewRegister("", 0, 1)
	if err != nil {
		t.Fatalf("unnamed allocation: %v", err)
	}
	if !strings.HasPrefix(tmp.Name(), scratchPrefix) {
		t.Errorf("unnamed register called %q", tmp.Name())
	}
	if err := qc.DeleteRegister(tmp); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if err := qc.AddModulo(a, b, 3); err != nil {
			t.Fatalf("AddModulo next to r0..r7: %v", err)
		}
	}
	if got := b.values(); !cmp.Equal(got, []uint64{0}) {
		t.Errorf("b = %v, want [0]", got)
	}
	if qc.TotalWidth() != 13 {
		t.Errorf("scratch left allocated: width %d", qc.TotalWidth())
	}
}

func TestSliceAndRefs(t *testing.T) {
	qc := New(nil)
	newRegister(t, qc, "pad", 0, 2)
	a := newRegister(t, qc, "a", 0, 4)

	s, err := a.Slice(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.OffsetToRoot(); got != 3 {
		t.Errorf("slice offset = %d, want 3", got)
	}
	if diff := cmp.Diff(Param(RegisterPartRef{Name: "a", Offset: 1, Width: 2}), s.Ref()); diff != "" {
		t.Errorf("Ref() (-want +got):\n%s", diff)
	}
	resolved, err := qc.ResolveParam(s.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Range() != s.Range() {
		t.Errorf("resolved %v, want %v", resolved.Range(), s.Range())
	}

	if _, err := a.Slice(3, 2); !errors.Is(err, ErrInvalidRegisterWidth) {
		t.Errorf("slice past the end: err = %v", err)
	}
	if err := a.Hadamard(4); !errors.Is(err, ErrInvalidRegisterWidth) {
		t.Errorf("qubit index past the end: err = %v", err)
	}
	if err := a.CNot(1, 1); !errors.Is(err, ErrInvalidGateTopology) {
		t.Errorf("CNot on one qubit: err = %v", err)
	}
}

func TestInvoke(t *testing.T) {
	qc := New(nil)
	a := newRegister(t, qc, "a", 2, 2)
	b := newRegister(t, qc, "b", 2, 3)

	params, err := ParseParams("a, b, 3")
	if err != nil {
		t.Fatal(err)
	}
	if err := qc.Invoke("AddModulo", params); err != nil {
		t.Fatal(err)
	}
	if got := classical(t, b); got != 1 {
		t.Errorf("AddModulo(2, 2, 3) via Invoke = %d", got)
	}
	if got := classical(t, a); got != 2 {
		t.Errorf("a changed to %d", got)
	}

	tests := []struct {
		name string
		args string
	}{
		{"NoSuchMacro", "a"},
		{"AddModulo", "a, b"},
		{"AddModulo", "a, zz, 3"},
		{"AddModulo", "a, 3, 3"},
		{"AddModulo", "a, b, 1.5"},
		{"QFT", "a, b"},
	}
	for _, tt := range tests {
		params, err := ParseParams(tt.args)
		if err != nil {
			t.Fatal(err)
		}
		err = qc.Invoke(tt.name, params)
		if err == nil {
			t.Errorf("Invoke(%s, %s) succeeded", tt.name, tt.args)
			continue
		}
		var qerr *Error
		if !errors.As(err, &qerr) {
			t.Errorf("Invoke(%s, %s) error %v is not a *Error", tt.name, tt.args, err)
		}
	}
}

func TestDefineComposite(t *testing.T) {
	qc := New(nil)
	newRegister(t, qc, "pad", 0, 1)
	r := newRegister(t, qc, "r", 0, 2)

	bell := [][]Gate{
		{&Primitive{Kind: KindHadamard, Target: 0}},
		{&Primitive{Kind: KindSigmaX, Target: 1, Controls: []int{0}}},
	}
	if err := qc.DefineComposite("Bell", 2, bell); err != nil {
		t.Fatal(err)
	}
	if err := qc.DefineComposite("Bell", 2, bell); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("redefinition: err = %v", err)
	}
	if err := qc.DefineComposite("QFT", 2, bell); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("shadowing a registered macro: err = %v", err)
	}

	if err := qc.Invoke("Bell", []Param{r.Ref()}); err != nil {
		t.Fatal(err)
	}
	probs := r.GetProbabilities()
	if len(probs) != 2 || math.Abs(probs[0]-0.5) > 1e-9 || math.Abs(probs[3]-0.5) > 1e-9 {
		t.Errorf("Bell composite produced %v", probs)
	}
	if _, ok := qc.FindRegister("pad"); !ok {
		t.Error("pad register lost")
	}

	// the same composite applied as a gate value
	qc2 := New(nil)
	newRegister(t, qc2, "r", 0, 2)
	g := &Composite{Label: "Bell", Target: QubitRange{Offset: 0, Width: 2}, Steps: bell}
	if err := qc2.Apply(g); err != nil {
		t.Fatal(err)
	}
	if got := qc2.Root().GetProbabilities(); len(got) != 2 {
		t.Errorf("Composite gate produced %v", got)
	}
}
