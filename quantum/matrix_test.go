package quantum

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateMatrix(t *testing.T) {
	rotation := func(theta float64) Matrix {
		c, s := complex(math.Cos(theta), 0), complex(math.Sin(theta), 0)
		return Matrix{{c, -s}, {s, c}}
	}

	tests := []struct {
		name    string
		m       Matrix
		wantErr bool
	}{
		{"identity", Identity, false},
		{"rotation 0", rotation(0), false},
		{"rotation pi/3", rotation(math.Pi / 3), false},
		{"rotation 3pi/4", rotation(3 * math.Pi / 4), false},
		{"rotation -1.1", rotation(-1.1), false},
		{"hadamard", Hadamard, false},
		{"pauli y", PauliY, false},
		{"sqrt x", SqrtX, false},
		{"phase kick", PhaseKick(0.3), false},
		{"shear", Matrix{{1, 1}, {0, 1}}, true},
		{"zero", Matrix{}, true},
		{"scaled identity", Matrix{{2, 0}, {0, 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMatrix(tt.m, 1e-6)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMatrix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNonUnitaryMatrix) {
				t.Errorf("error %v is not ErrNonUnitaryMatrix", err)
			}
		})
	}
}

func TestSqrtXSquared(t *testing.T) {
	got := SqrtX.Mul(SqrtX)
	if !got.approx(PauliX, 1e-12) {
		t.Errorf("SqrtX² = %v, want PauliX", got)
	}
	if !SqrtX.Mul(SqrtX.Dagger()).approx(Identity, 1e-12) {
		t.Error("SqrtX·SqrtX† is not the identity")
	}
}

func TestGate1RejectsNonUnitary(t *testing.T) {
	qc := New(nil)
	r := newRegister(t, qc, "q", 0, 2)
	if err := r.Hadamard(1); err != nil {
		t.Fatal(err)
	}
	before := qc.Store().Snapshot()

	err := r.Gate1(Matrix{{1, 1}, {0, 1}}, 0)
	if !errors.Is(err, ErrNonUnitaryMatrix) {
		t.Fatalf("Gate1(shear) error = %v, want ErrNonUnitaryMatrix", err)
	}
	if diff := cmp.Diff(before, qc.Store().Snapshot()); diff != "" {
		t.Errorf("store changed by rejected gate (-before +after):\n%s", diff)
	}

	if err := r.Gate1(Hadamard, 1); err != nil {
		t.Fatalf("Gate1(Hadamard): %v", err)
	}
	if p := r.GetProbabilities(); len(p) != 1 || math.Abs(p[0]-1) > 1e-9 {
		t.Errorf("H·H via Gate1 left %v", p)
	}
}

func TestPrimitiveInverse(t *testing.T) {
	kinds := []Kind{
		KindHadamard, KindSigmaX, KindSigmaY, KindSigmaZ, KindSqrtX,
		KindPhaseKick, KindPhaseScale, KindCPhaseShift, KindRotateX, KindRotateY, KindRotateZ,
	}
	for _, k := range kinds {
		p := &Primitive{Kind: k, Angle: 0.7}
		if k == KindCPhaseShift {
			p.Angle = 2
		}
		got := p.Operator().Mul(p.Inverse().Operator())
		if !got.approx(Identity, 1e-12) {
			t.Errorf("%s: U·U⁻¹ = %v", k, got)
		}
	}
}
