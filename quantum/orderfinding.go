package quantum

import (
	"math"
	"math/bits"
)

// Rational is a fraction Num/Den.
type Rational struct {
	Num, Den uint64
}

// Convergents lists the continued-fraction convergents of y/q whose
// denominators do not exceed maxDen, in order.
func Convergents(y, q, maxDen uint64) []Rational {
	var out []Rational
	// h and k hold the last two numerators and denominators.
	h0, h1 := uint64(0), uint64(1)
	k0, k1 := uint64(1), uint64(0)
	for q != 0 {
		a := y / q
		y, q = q, y%q
		h := a*h1 + h0
		k := a*k1 + k0
		if k > maxDen {
			break
		}
		out = append(out, Rational{Num: h, Den: k})
		h0, h1 = h1, h
		k0, k1 = k1, k
	}
	return out
}

// BestRational returns the convergent of y/q with the largest denominator
// not above maxDen.
func BestRational(y, q, maxDen uint64) Rational {
	cs := Convergents(y, q, maxDen)
	if len(cs) == 0 {
		return Rational{Num: 0, Den: 1}
	}
	return cs[len(cs)-1]
}

// PeriodFromPhase turns a measured phase numerator y over 2^t into the
// order of a mod N. Each non-zero convergent denominator is tried along with
// its first bitLength(N) multiples, which covers s/r reduced by a common
// factor.
func PeriodFromPhase(y uint64, t int, N, a uint64) (uint64, bool) {
	if y == 0 {
		return 0, false
	}
	multiples := uint64(bits.Len64(N))
	for _, c := range Convergents(y, uint64(1)<<uint(t), N-1) {
		if c.Num == 0 {
			continue
		}
		for k := uint64(1); k <= multiples && k*c.Den < N; k++ {
			if powMod(a, k*c.Den, N) == 1 {
				return k * c.Den, true
			}
		}
	}
	return 0, false
}

func (qc *Computer) validateOrder(op string, N, a uint64) error {
	if qc.recorder.Grouping() {
		return newError(InvalidParameter, op, "cannot measure while recording")
	}
	if N < 3 || N >= 1<<31 {
		return newError(ValueOutOfRange, op, "modulus out of range", N)
	}
	if a < 2 || a >= N {
		return newError(ValueOutOfRange, op, "base must be in [2, N)", a, N)
	}
	if _, ok := modInverse(a, N); !ok {
		return newError(ValueOutOfRange, op, "base is not coprime to N", a, N)
	}
	return nil
}

type orderScratch struct {
	x, b, ctrl *Register
}

func (qc *Computer) allocOrder(N uint64) (s orderScratch, scratch []*Register, err error) {
	n := bits.Len64(N)
	if s.x, err = qc.NewRegister("", 1, n); err != nil {
		return s, scratch, err
	}
	scratch = append(scratch, s.x)
	if s.b, err = qc.NewRegister("", 0, n+1); err != nil {
		return s, scratch, err
	}
	scratch = append(scratch, s.b)
	if s.ctrl, err = qc.NewRegister("", 0, 1); err != nil {
		return s, scratch, err
	}
	scratch = append(scratch, s.ctrl)
	return s, scratch, nil
}

// FindPeriod finds the order of a mod N with semiclassical phase estimation:
// a single control qubit is measured and recycled 2·bitLength(N) times, each
// round corrected by the phase of the bits already read. Up to
// Config.MaxAttempts runs are made.
func (qc *Computer) FindPeriod(N, a uint64) (uint64, error) {
	const op = "FindPeriod"
	if err := qc.validateOrder(op, N, a); err != nil {
		return 0, err
	}
	t := 2 * bits.Len64(N)
	for attempt := 1; attempt <= qc.cfg.MaxAttempts; attempt++ {
		y, err := qc.semiclassicalPhase(N, a, t)
		if err != nil {
			return 0, err
		}
		qc.log.Debug("phase estimate", "attempt", attempt, "y", y, "bits", t)
		if r, ok := PeriodFromPhase(y, t, N, a); ok {
			return r, nil
		}
	}
	return 0, newError(ValueOutOfRange, op, "no period found", N, a, qc.cfg.MaxAttempts)
}

func (qc *Computer) semiclassicalPhase(N, a uint64, t int) (y uint64, err error) {
	s, scratch, err := qc.allocOrder(N)
	defer func() { qc.free(&err, scratch...) }()
	if err != nil {
		return 0, err
	}
	top, err := qc.NewRegister("", 0, 1)
	if err != nil {
		return 0, err
	}
	scratch = append(scratch, top)

	measured := make([]uint64, t)
	for j := t - 1; j >= 0; j-- {
		gamma := 0.0
		for l := j + 1; l < t; l++ {
			gamma -= 2 * math.Pi * float64(measured[l]) / math.Exp2(float64(l-j+1))
		}
		if err := top.Hadamard(0); err != nil {
			return 0, err
		}
		if err := qc.ControlledUaGate(powMod(a, uint64(1)<<uint(j), N), N, s.ctrl, s.x, s.b, top); err != nil {
			return 0, err
		}
		if gamma != 0 {
			if err := top.PhaseKick(gamma, 0); err != nil {
				return 0, err
			}
		}
		if err := top.Hadamard(0); err != nil {
			return 0, err
		}
		m, err := top.Measure()
		if err != nil {
			return 0, err
		}
		measured[j] = m
		if m == 1 {
			if err := top.SigmaX(0); err != nil {
				return 0, err
			}
		}
		y |= m << uint(t-1-j)
	}
	return y, nil
}

// FindPeriodDense is FindPeriod with a full Fourier accumulator of the given
// width: Walsh, controlled exponentiation, InverseQFT and one measurement.
func (qc *Computer) FindPeriodDense(N, a uint64, width int) (uint64, error) {
	const op = "FindPeriodDense"
	if err := qc.validateOrder(op, N, a); err != nil {
		return 0, err
	}
	if width < 1 || width > 2*bits.Len64(N)+1 {
		return 0, newError(InvalidRegisterWidth, op, "accumulator width out of range", width)
	}
	for attempt := 1; attempt <= qc.cfg.MaxAttempts; attempt++ {
		y, err := qc.densePhase(N, a, width)
		if err != nil {
			return 0, err
		}
		qc.log.Debug("phase estimate", "attempt", attempt, "y", y, "bits", width)
		if r, ok := PeriodFromPhase(y, width, N, a); ok {
			return r, nil
		}
	}
	return 0, newError(ValueOutOfRange, op, "no period found", N, a, qc.cfg.MaxAttempts)
}

func (qc *Computer) densePhase(N, a uint64, width int) (y uint64, err error) {
	acc, err := qc.NewRegister("", 0, width)
	if err != nil {
		return 0, err
	}
	scratch := []*Register{acc}
	defer func() { qc.free(&err, scratch...) }()
	s, more, err := qc.allocOrder(N)
	scratch = append(scratch, more...)
	if err != nil {
		return 0, err
	}

	if err := qc.Walsh(acc); err != nil {
		return 0, err
	}
	if err := qc.ExpModulo(a, N, s.ctrl, s.x, s.b, acc); err != nil {
		return 0, err
	}
	if err := qc.InverseQFT(acc); err != nil {
		return 0, err
	}
	return acc.Measure()
}
