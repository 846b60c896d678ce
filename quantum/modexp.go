package quantum

import (
	"math/big"
	"math/bits"
)

// mulMod returns a·b mod N without overflowing.
func mulMod(a, b, N uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi%N, lo, N)
	return rem
}

// powMod returns a^e mod N.
func powMod(a, e, N uint64) uint64 {
	result := uint64(1) % N
	a %= N
	for e > 0 {
		if e&1 == 1 {
			result = mulMod(result, a, N)
		}
		a = mulMod(a, a, N)
		e >>= 1
	}
	return result
}

// modInverse returns a^-1 mod N, or false when gcd(a, N) != 1.
func modInverse(a, N uint64) (uint64, bool) {
	inv := new(big.Int).ModInverse(new(big.Int).SetUint64(a), new(big.Int).SetUint64(N))
	if inv == nil {
		return 0, false
	}
	return inv.Uint64(), true
}

// multModuloSequence is b ← (b + a·x) mod N, conditioned on controls. b is
// in the computational basis on entry and exit.
func multModuloSequence(a, N uint64, ctrl int, x, b, controls []int) sequence {
	var s sequence
	qft := qftSequence(b, len(b))
	s.append(qft)
	step := a % N
	for _, xi := range x {
		cs := append(append([]int(nil), controls...), xi)
		s.append(addModuloQFTPhiSequence(step, N, ctrl, b, cs))
		step = mulMod(step, 2, N)
	}
	s.append(qft.inverse())
	return s
}

func validateMult(op string, a, N uint64, ctrl, x, b *Register) error {
	if err := validateQFTModulo(op, a%N, N, ctrl, b); err != nil {
		return err
	}
	if x.width > b.width-1 {
		return newError(InvalidRegisterWidth, op, "x wider than bitLength(N)", x.width, b.width-1)
	}
	return nil
}

// MultModuloQFT computes b ← (b + a·x) mod N when every control qubit is
// set. b is bitLength(N)+1 qubits and ctrl a zero ancilla.
func (qc *Computer) MultModuloQFT(a, N uint64, ctrl, x, b *Register, controls ...*Register) error {
	return qc.multModuloQFT("MultModuloQFT", a, N, ctrl, x, b, controls, false)
}

// InverseMultModuloQFT computes b ← (b - a·x) mod N.
func (qc *Computer) InverseMultModuloQFT(a, N uint64, ctrl, x, b *Register, controls ...*Register) error {
	return qc.multModuloQFT("InverseMultModuloQFT", a, N, ctrl, x, b, controls, true)
}

func (qc *Computer) multModuloQFT(op string, a, N uint64, ctrl, x, b *Register, controls []*Register, inverse bool) error {
	if err := qc.check(op, append([]*Register{ctrl, x, b}, controls...)...); err != nil {
		return err
	}
	if err := validateMult(op, a, N, ctrl, x, b); err != nil {
		return err
	}
	params := append([]Param{Number{Value: float64(a)}, Number{Value: float64(N)}, ctrl.Ref(), x.Ref(), b.Ref()}, refs(controls...)...)
	return qc.macro(op, params, func() error {
		if err := checkBelow(op, N, b); err != nil {
			return err
		}
		if err := checkClassical(op, ctrl, 0); err != nil {
			return err
		}
		s := multModuloSequence(a, N, ctrl.Row(0), x.rows(), b.rows(), controlRows(controls))
		if inverse {
			s = s.inverse()
		}
		return qc.run(s)
	})
}

// controlledUaSequence is x ← a·x mod N when control is set. b must be zero
// and comes back zero.
func controlledUaSequence(a, aInv, N uint64, ctrl int, x, b, controls []int) sequence {
	var s sequence
	s.append(multModuloSequence(a, N, ctrl, x, b, controls))
	for i := range x {
		s.swap(x[i], b[i], controls...)
	}
	s.append(multModuloSequence(aInv, N, ctrl, x, b, controls).inverse())
	return s
}

// ControlledUaGate maps x to a·x mod N when control is set. x must be
// bitLength(N) qubits, b a zero register one qubit wider and ctrl a zero
// ancilla. a must be coprime to N.
func (qc *Computer) ControlledUaGate(a, N uint64, ctrl, x, b, control *Register) error {
	op := "ControlledUaGate"
	if err := qc.check(op, ctrl, x, b, control); err != nil {
		return err
	}
	if err := validateMult(op, a, N, ctrl, x, b); err != nil {
		return err
	}
	if x.width != b.width-1 {
		return newError(InvalidRegisterWidth, op, "x must be bitLength(N) qubits", x.width, b.width-1)
	}
	aInv, ok := modInverse(a%N, N)
	if !ok {
		return newError(ValueOutOfRange, op, "a is not coprime to N", a, N)
	}
	params := []Param{Number{Value: float64(a)}, Number{Value: float64(N)}, ctrl.Ref(), x.Ref(), b.Ref(), control.Ref()}
	return qc.macro(op, params, func() error {
		if err := checkBelow(op, N, x); err != nil {
			return err
		}
		if err := checkClassical(op, b, 0); err != nil {
			return err
		}
		if err := checkClassical(op, ctrl, 0); err != nil {
			return err
		}
		return qc.run(controlledUaSequence(a%N, aInv, N, ctrl.Row(0), x.rows(), b.rows(), control.rows()))
	})
}

// ExpModulo computes x ← x·a^e mod N, one ControlledUaGate per qubit of e.
func (qc *Computer) ExpModulo(a, N uint64, ctrl, x, b, e *Register) error {
	op := "ExpModulo"
	if err := qc.check(op, ctrl, x, b, e); err != nil {
		return err
	}
	if err := validateMult(op, a, N, ctrl, x, b); err != nil {
		return err
	}
	if _, ok := modInverse(a%N, N); !ok {
		return newError(ValueOutOfRange, op, "a is not coprime to N", a, N)
	}
	params := []Param{Number{Value: float64(a)}, Number{Value: float64(N)}, ctrl.Ref(), x.Ref(), b.Ref(), e.Ref()}
	return qc.macro(op, params, func() error {
		factor := a % N
		for i := 0; i < e.width; i++ {
			if err := qc.ControlledUaGate(factor, N, ctrl, x, b, e.part(i, 1)); err != nil {
				return err
			}
			factor = mulMod(factor, factor, N)
		}
		return nil
	})
}

func init() {
	for _, inverse := range []bool{false, true} {
		name, fn := "MultModuloQFT", (*Computer).MultModuloQFT
		if inverse {
			name, fn = "InverseMultModuloQFT", (*Computer).InverseMultModuloQFT
		}
		RegisterMacro(MacroDef{
			Name:   name,
			Doc:    "b ← (b ± a·x) mod N",
			Params: []ParamSpec{num("a"), num("N"), reg("ctrl"), reg("x"), reg("b"), regs("controls")},
			Body: func(qc *Computer, args []Arg) error {
				a, N, err := uint2(name, args[0], args[1])
				if err != nil {
					return err
				}
				return fn(qc, a, N, args[2].Register, args[3].Register, args[4].Register, registers(args, 5)...)
			},
		})
	}
	RegisterMacro(MacroDef{
		Name:   "ControlledUaGate",
		Doc:    "x ← a·x mod N when control is set",
		Params: []ParamSpec{num("a"), num("N"), reg("ctrl"), reg("x"), reg("b"), reg("control")},
		Body: func(qc *Computer, args []Arg) error {
			a, N, err := uint2("ControlledUaGate", args[0], args[1])
			if err != nil {
				return err
			}
			return qc.ControlledUaGate(a, N, args[2].Register, args[3].Register, args[4].Register, args[5].Register)
		},
	})
	RegisterMacro(MacroDef{
		Name:   "ExpModulo",
		Doc:    "x ← x·a^e mod N",
		Params: []ParamSpec{num("a"), num("N"), reg("ctrl"), reg("x"), reg("b"), reg("e")},
		Body: func(qc *Computer, args []Arg) error {
			a, N, err := uint2("ExpModulo", args[0], args[1])
			if err != nil {
				return err
			}
			return qc.ExpModulo(a, N, args[2].Register, args[3].Register, args[4].Register, args[5].Register)
		},
	})
}
