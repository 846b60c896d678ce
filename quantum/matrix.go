package quantum

import (
	"math"
	"math/cmplx"
)

// Matrix is a 2x2 complex operator acting on one qubit, indexed [row][col]
// in the |0⟩, |1⟩ basis.
type Matrix [2][2]complex128

var (
	Identity = Matrix{{1, 0}, {0, 1}}
	PauliX   = Matrix{{0, 1}, {1, 0}}
	PauliY   = Matrix{{0, -1i}, {1i, 0}}
	PauliZ   = Matrix{{1, 0}, {0, -1}}
	Hadamard = Matrix{
		{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
		{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
	}
	SqrtX = Matrix{
		{complex(0.5, 0.5), complex(0.5, -0.5)},
		{complex(0.5, -0.5), complex(0.5, 0.5)},
	}
)

// PhaseKick returns diag(1, e^{iγ}).
func PhaseKick(gamma float64) Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, gamma))}}
}

// PhaseScale returns e^{iθ}·I.
func PhaseScale(theta float64) Matrix {
	p := cmplx.Exp(complex(0, theta))
	return Matrix{{p, 0}, {0, p}}
}

func RotateX(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(0, -math.Sin(theta/2))
	return Matrix{{c, s}, {s, c}}
}

func RotateY(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{{c, -s}, {s, c}}
}

func RotateZ(theta float64) Matrix {
	return Matrix{
		{cmplx.Exp(complex(0, -theta/2)), 0},
		{0, cmplx.Exp(complex(0, theta/2))},
	}
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	return Matrix{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

// Mul returns m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	var r Matrix
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return r
}

// IsDiagonal reports whether the off-diagonal entries are exactly zero.
func (m Matrix) IsDiagonal() bool {
	return m[0][1] == 0 && m[1][0] == 0
}

// IsUnitary checks M†M ≈ I and MM† ≈ I element-wise within eps.
func (m Matrix) IsUnitary(eps float64) bool {
	return m.Dagger().Mul(m).approx(Identity, eps) && m.Mul(m.Dagger()).approx(Identity, eps)
}

func (m Matrix) approx(o Matrix, eps float64) bool {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if cmplx.Abs(m[i][j]-o[i][j]) > eps {
				return false
			}
		}
	}
	return true
}

// ValidateMatrix rejects matrices that fail the unitarity check.
func ValidateMatrix(m Matrix, eps float64) error {
	if !m.IsUnitary(eps) {
		return newError(NonUnitaryMatrix, "Gate1", "matrix fails M†M = I", m)
	}
	return nil
}
