package quantum

import (
	"math"
	"math/bits"
)

// adderSequence is the ripple-carry network b ← a + b mod 2^(n+1) for an
// n-qubit a, an (n+1)-qubit b and n carry qubits c that start and end at 0.
func adderSequence(a, b, c []int) sequence {
	var s sequence
	n := len(a)
	carry := func(ci, ai, bi, next int) {
		s.x(next, ai, bi)
		s.x(bi, ai)
		s.x(next, ci, bi)
	}
	uncarry := func(ci, ai, bi, next int) {
		s.x(next, ci, bi)
		s.x(bi, ai)
		s.x(next, ai, bi)
	}
	sum := func(ci, ai, bi int) {
		s.x(bi, ai)
		s.x(bi, ci)
	}

	for i := 0; i < n-1; i++ {
		carry(c[i], a[i], b[i], c[i+1])
	}
	carry(c[n-1], a[n-1], b[n-1], b[n])
	s.x(b[n-1], a[n-1])
	sum(c[n-1], a[n-1], b[n-1])
	for i := n - 2; i >= 0; i-- {
		uncarry(c[i], a[i], b[i], c[i+1])
		sum(c[i], a[i], b[i])
	}
	return s
}

// addModuloSequence is b ← (a + b) mod N. n holds N, t is the overflow
// qubit; both come back unchanged.
func addModuloSequence(a, b, c, n []int, t int, N uint64) sequence {
	var s sequence
	msb := b[len(b)-1]
	add := adderSequence(a, b, c)
	addN := adderSequence(n, b, c)
	toggleN := func() {
		for i, row := range n {
			if N>>uint(i)&1 == 1 {
				s.x(row, t)
			}
		}
	}

	s.append(add)
	s.append(addN.inverse())
	s.x(msb)
	s.x(t, msb)
	s.x(msb)
	toggleN()
	s.append(addN)
	toggleN()
	s.append(add.inverse())
	s.x(t, msb)
	s.append(add)
	return s
}

func (qc *Computer) checkWidths(op string, a, b *Register) error {
	if b.width != a.width+1 {
		return newError(InvalidRegisterWidth, op, "b must be one qubit wider than a", a.width, b.width)
	}
	return nil
}

// checkBelow fails when any reachable value of the registers is >= limit.
func checkBelow(op string, limit uint64, regs ...*Register) error {
	for _, r := range regs {
		for _, v := range r.values() {
			if v >= limit {
				return newError(ValueOutOfRange, op, "register value not below modulus", r.name, v, limit)
			}
		}
	}
	return nil
}

// checkClassical fails unless the register holds exactly value.
func checkClassical(op string, r *Register, value uint64) error {
	vals := r.values()
	if len(vals) != 1 || vals[0] != value {
		return newError(ValueOutOfRange, op, "scratch register must hold a fixed value", r.name, value)
	}
	return nil
}

// Add computes b ← a + b with the carry qubits c. b is one qubit wider
// than a, c as wide as a and all zero.
func (qc *Computer) Add(a, b, c *Register) error {
	return qc.add("Add", a, b, c, false)
}

// InverseAdd computes b ← b - a mod 2^b.width.
func (qc *Computer) InverseAdd(a, b, c *Register) error {
	return qc.add("InverseAdd", a, b, c, true)
}

func (qc *Computer) add(op string, a, b, c *Register, inverse bool) error {
	if err := qc.check(op, a, b, c); err != nil {
		return err
	}
	if err := qc.checkWidths(op, a, b); err != nil {
		return err
	}
	if c.width != a.width {
		return newError(InvalidRegisterWidth, op, "carry register must be as wide as a", c.width, a.width)
	}
	return qc.macro(op, []Param{a.Ref(), b.Ref(), c.Ref()}, func() error {
		if err := checkClassical(op, c, 0); err != nil {
			return err
		}
		s := adderSequence(a.rows(), b.rows(), c.rows())
		if inverse {
			s = s.inverse()
		}
		return qc.run(s)
	})
}

func validateModulus(op string, a *Register, N uint64) error {
	if N == 0 || (a.width < 64 && N >= uint64(1)<<uint(a.width)) {
		return newError(ValueOutOfRange, op, "modulus must be in [1, 2^width)", N, a.width)
	}
	return nil
}

// AddModuloWith computes b ← (a + b) mod N using caller supplied scratch:
// c (carries, zero, as wide as a), n (holding N, as wide as a) and t (one
// zero qubit).
func (qc *Computer) AddModuloWith(a, b, c, n, t *Register, N uint64) error {
	return qc.addModuloWith("AddModuloWith", a, b, c, n, t, N, false)
}

// InverseAddModuloWith computes b ← (b - a) mod N.
func (qc *Computer) InverseAddModuloWith(a, b, c, n, t *Register, N uint64) error {
	return qc.addModuloWith("InverseAddModuloWith", a, b, c, n, t, N, true)
}

func (qc *Computer) addModuloWith(op string, a, b, c, n, t *Register, N uint64, inverse bool) error {
	if err := qc.check(op, a, b, c, n, t); err != nil {
		return err
	}
	if err := qc.checkWidths(op, a, b); err != nil {
		return err
	}
	if c.width != a.width || n.width != a.width || t.width != 1 {
		return newError(InvalidRegisterWidth, op, "scratch widths must be (a, a, 1)", c.width, n.width, t.width)
	}
	if err := validateModulus(op, a, N); err != nil {
		return err
	}
	params := []Param{a.Ref(), b.Ref(), c.Ref(), n.Ref(), t.Ref(), Number{Value: float64(N)}}
	return qc.macro(op, params, func() error {
		if err := checkBelow(op, N, a, b); err != nil {
			return err
		}
		if err := checkClassical(op, c, 0); err != nil {
			return err
		}
		if err := checkClassical(op, n, N); err != nil {
			return err
		}
		if err := checkClassical(op, t, 0); err != nil {
			return err
		}
		return qc.runModulo(a, b, c, n, t, N, inverse)
	})
}

func (qc *Computer) runModulo(a, b, c, n, t *Register, N uint64, inverse bool) error {
	s := addModuloSequence(a.rows(), b.rows(), c.rows(), n.rows(), t.Row(0), N)
	if inverse {
		s = s.inverse()
	}
	return qc.run(s)
}

// AddModulo computes b ← (a + b) mod N. It allocates its own scratch
// registers and frees them before returning.
func (qc *Computer) AddModulo(a, b *Register, N uint64) error {
	return qc.addModulo("AddModulo", a, b, N, false)
}

// InverseAddModulo computes b ← (b - a) mod N.
func (qc *Computer) InverseAddModulo(a, b *Register, N uint64) error {
	return qc.addModulo("InverseAddModulo", a, b, N, true)
}

func (qc *Computer) addModulo(op string, a, b *Register, N uint64, inverse bool) error {
	if err := qc.check(op, a, b); err != nil {
		return err
	}
	if err := qc.checkWidths(op, a, b); err != nil {
		return err
	}
	if err := validateModulus(op, a, N); err != nil {
		return err
	}
	return qc.macro(op, []Param{a.Ref(), b.Ref(), Number{Value: float64(N)}}, func() (err error) {
		if err := checkBelow(op, N, a, b); err != nil {
			return err
		}
		var scratch []*Register
		defer func() { qc.free(&err, scratch...) }()

		c, err := qc.NewRegister("", 0, a.width)
		if err != nil {
			return err
		}
		scratch = append(scratch, c)
		n, err := qc.NewRegister("", N, a.width)
		if err != nil {
			return err
		}
		scratch = append(scratch, n)
		t, err := qc.NewRegister("", 0, 1)
		if err != nil {
			return err
		}
		scratch = append(scratch, t)

		return qc.runModulo(a, b, c, n, t, N, inverse)
	})
}

// phiAddSequence adds the constant a to a register held in the Fourier
// basis: qubit i picks up the phase 2π·a·2^i/2^m.
func phiAddSequence(a uint64, b []int, controls []int) sequence {
	var s sequence
	m := len(b)
	mask := widthMask(m)
	for i, row := range b {
		v := (a << uint(i)) & mask
		if v == 0 {
			continue
		}
		s.phase(2*math.Pi*float64(v)/math.Exp2(float64(m)), row, controls...)
	}
	return s
}

// addModuloQFTPhiSequence is the Fourier-basis modular adder. b must be in
// the Fourier basis; ctrl is a zero ancilla that returns to zero.
func addModuloQFTPhiSequence(a, N uint64, ctrl int, b, controls []int) sequence {
	var s sequence
	msb := b[len(b)-1]
	qft := qftSequence(b, len(b))
	addA := phiAddSequence(a, b, controls)

	s.append(addA)
	s.append(phiAddSequence(N, b, nil).inverse())
	s.append(qft.inverse())
	s.x(ctrl, msb)
	s.append(qft)
	s.append(phiAddSequence(N, b, []int{ctrl}))
	s.append(addA.inverse())
	s.append(qft.inverse())
	s.x(msb)
	s.x(ctrl, msb)
	s.x(msb)
	s.append(qft)
	s.append(addA)
	return s
}

func controlRows(controls []*Register) []int {
	var rows []int
	for _, c := range controls {
		rows = append(rows, c.rows()...)
	}
	return rows
}

func refs(regs ...*Register) []Param {
	params := make([]Param, len(regs))
	for i, r := range regs {
		params[i] = r.Ref()
	}
	return params
}

// AddQFTPhi adds the constant a to b, which must be in the Fourier basis,
// when every control qubit is set.
func (qc *Computer) AddQFTPhi(a uint64, b *Register, controls ...*Register) error {
	return qc.addQFTPhi("AddQFTPhi", a, b, controls, false)
}

// InverseAddQFTPhi subtracts a from b in the Fourier basis.
func (qc *Computer) InverseAddQFTPhi(a uint64, b *Register, controls ...*Register) error {
	return qc.addQFTPhi("InverseAddQFTPhi", a, b, controls, true)
}

func (qc *Computer) addQFTPhi(op string, a uint64, b *Register, controls []*Register, inverse bool) error {
	if err := qc.check(op, append([]*Register{b}, controls...)...); err != nil {
		return err
	}
	params := append([]Param{Number{Value: float64(a)}, b.Ref()}, refs(controls...)...)
	return qc.macro(op, params, func() error {
		s := phiAddSequence(a, b.rows(), controlRows(controls))
		if inverse {
			s = s.inverse()
		}
		return qc.run(s)
	})
}

func validateQFTModulo(op string, a, N uint64, ctrl, b *Register) error {
	if N < 2 || N >= 1<<62 {
		return newError(ValueOutOfRange, op, "modulus out of range", N)
	}
	if a >= N {
		return newError(ValueOutOfRange, op, "a must be below N", a, N)
	}
	if b.width != bits.Len64(N)+1 {
		return newError(InvalidRegisterWidth, op, "b must be bitLength(N)+1 qubits", b.width, bits.Len64(N)+1)
	}
	if ctrl.width != 1 {
		return newError(InvalidRegisterWidth, op, "ctrl must be a single qubit", ctrl.width)
	}
	return nil
}

// AddModuloQFTPhi computes b ← (a + b) mod N with b in the Fourier basis,
// when every control qubit is set. ctrl is a zero ancilla.
func (qc *Computer) AddModuloQFTPhi(a, N uint64, ctrl, b *Register, controls ...*Register) error {
	return qc.addModuloQFTPhi("AddModuloQFTPhi", a, N, ctrl, b, controls, false)
}

// InverseAddModuloQFTPhi computes b ← (b - a) mod N in the Fourier basis.
func (qc *Computer) InverseAddModuloQFTPhi(a, N uint64, ctrl, b *Register, controls ...*Register) error {
	return qc.addModuloQFTPhi("InverseAddModuloQFTPhi", a, N, ctrl, b, controls, true)
}

func (qc *Computer) addModuloQFTPhi(op string, a, N uint64, ctrl, b *Register, controls []*Register, inverse bool) error {
	if err := qc.check(op, append([]*Register{ctrl, b}, controls...)...); err != nil {
		return err
	}
	if err := validateQFTModulo(op, a, N, ctrl, b); err != nil {
		return err
	}
	params := append([]Param{Number{Value: float64(a)}, Number{Value: float64(N)}, ctrl.Ref(), b.Ref()}, refs(controls...)...)
	return qc.macro(op, params, func() error {
		if err := checkClassical(op, ctrl, 0); err != nil {
			return err
		}
		s := addModuloQFTPhiSequence(a, N, ctrl.Row(0), b.rows(), controlRows(controls))
		if inverse {
			s = s.inverse()
		}
		return qc.run(s)
	})
}

// AddModuloQFT is AddModuloQFTPhi with b in the computational basis: it
// brackets the adder with QFT and InverseQFT.
func (qc *Computer) AddModuloQFT(a, N uint64, ctrl, b *Register, controls ...*Register) error {
	op := "AddModuloQFT"
	if err := qc.check(op, append([]*Register{ctrl, b}, controls...)...); err != nil {
		return err
	}
	if err := validateQFTModulo(op, a, N, ctrl, b); err != nil {
		return err
	}
	params := append([]Param{Number{Value: float64(a)}, Number{Value: float64(N)}, ctrl.Ref(), b.Ref()}, refs(controls...)...)
	return qc.macro(op, params, func() error {
		if err := checkBelow(op, N, b); err != nil {
			return err
		}
		if err := checkClassical(op, ctrl, 0); err != nil {
			return err
		}
		if err := qc.QFT(b); err != nil {
			return err
		}
		if err := qc.AddModuloQFTPhi(a, N, ctrl, b, controls...); err != nil {
			return err
		}
		return qc.InverseQFT(b)
	})
}

func init() {
	RegisterMacro(MacroDef{
		Name:   "Add",
		Doc:    "b ← a + b with carry register c",
		Params: []ParamSpec{reg("a"), reg("b"), reg("c")},
		Body: func(qc *Computer, args []Arg) error {
			return qc.Add(args[0].Register, args[1].Register, args[2].Register)
		},
	})
	RegisterMacro(MacroDef{
		Name:   "InverseAdd",
		Doc:    "b ← b - a with carry register c",
		Params: []ParamSpec{reg("a"), reg("b"), reg("c")},
		Body: func(qc *Computer, args []Arg) error {
			return qc.InverseAdd(args[0].Register, args[1].Register, args[2].Register)
		},
	})
	for _, inverse := range []bool{false, true} {
		{
			name, fn := "AddModulo", (*Computer).AddModulo
			if inverse {
				name, fn = "InverseAddModulo", (*Computer).InverseAddModulo
			}
			RegisterMacro(MacroDef{
				Name:   name,
				Doc:    "b ← (a ± b) mod N with internal scratch",
				Params: []ParamSpec{reg("a"), reg("b"), num("N")},
				Body: func(qc *Computer, args []Arg) error {
					N, err := args[2].uint(name, "N")
					if err != nil {
						return err
					}
					return fn(qc, args[0].Register, args[1].Register, N)
				},
			})
		}
		{
			name, fnWith := "AddModuloWith", (*Computer).AddModuloWith
			if inverse {
				name, fnWith = "InverseAddModuloWith", (*Computer).InverseAddModuloWith
			}
			RegisterMacro(MacroDef{
				Name:   name,
				Doc:    "b ← (a ± b) mod N with caller scratch c, n, t",
				Params: []ParamSpec{reg("a"), reg("b"), reg("c"), reg("n"), reg("t"), num("N")},
				Body: func(qc *Computer, args []Arg) error {
					N, err := args[5].uint(name, "N")
					if err != nil {
						return err
					}
					return fnWith(qc, args[0].Register, args[1].Register, args[2].Register, args[3].Register, args[4].Register, N)
				},
			})
		}
		{
			name, fnPhi := "AddQFTPhi", (*Computer).AddQFTPhi
			if inverse {
				name, fnPhi = "InverseAddQFTPhi", (*Computer).InverseAddQFTPhi
			}
			RegisterMacro(MacroDef{
				Name:   name,
				Doc:    "Fourier-basis addition of a constant",
				Params: []ParamSpec{num("a"), reg("b"), regs("controls")},
				Body: func(qc *Computer, args []Arg) error {
					a, err := args[0].uint(name, "a")
					if err != nil {
						return err
					}
					return fnPhi(qc, a, args[1].Register, registers(args, 2)...)
				},
			})
		}
		{
			name, fnMod := "AddModuloQFTPhi", (*Computer).AddModuloQFTPhi
			if inverse {
				name, fnMod = "InverseAddModuloQFTPhi", (*Computer).InverseAddModuloQFTPhi
			}
			RegisterMacro(MacroDef{
				Name:   name,
				Doc:    "Fourier-basis modular addition of a constant",
				Params: []ParamSpec{num("a"), num("N"), reg("ctrl"), reg("b"), regs("controls")},
				Body: func(qc *Computer, args []Arg) error {
					a, N, err := uint2(name, args[0], args[1])
					if err != nil {
						return err
					}
					return fnMod(qc, a, N, args[2].Register, args[3].Register, registers(args, 4)...)
				},
			})
		}
	}
	RegisterMacro(MacroDef{
		Name:   "AddModuloQFT",
		Doc:    "modular addition of a constant through the Fourier basis",
		Params: []ParamSpec{num("a"), num("N"), reg("ctrl"), reg("b"), regs("controls")},
		Body: func(qc *Computer, args []Arg) error {
			a, N, err := uint2("AddModuloQFT", args[0], args[1])
			if err != nil {
				return err
			}
			return qc.AddModuloQFT(a, N, args[2].Register, args[3].Register, registers(args, 4)...)
		},
	})
}

func uint2(op string, x, y Arg) (uint64, uint64, error) {
	a, err := x.uint(op, "a")
	if err != nil {
		return 0, 0, err
	}
	N, err := y.uint(op, "N")
	return a, N, err
}
