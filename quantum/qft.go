package quantum

// qftSequence builds the Fourier network over rows (least significant
// first): a Hadamard on each qubit from the top down, then π/2^d rotations
// controlled by every lower qubit within distance kMax, then a reversal of
// the qubit order. The result maps |x⟩ to 2^{-n/2} Σ_y e^{2πixy/2^n}|y⟩.
func qftSequence(rows []int, kMax int) sequence {
	var s sequence
	n := len(rows)
	for j := n - 1; j >= 0; j-- {
		s.h(rows[j])
		for k := j - 1; k >= 0 && j-k <= kMax; k-- {
			s.cphase(j-k, rows[k], rows[j])
		}
	}
	for i := 0; i < n/2; i++ {
		s.swap(rows[i], rows[n-1-i])
	}
	return s
}

// check validates that every register is live and owned by qc.
func (qc *Computer) check(op string, regs ...*Register) error {
	for _, r := range regs {
		if r == nil || r.qc != qc {
			return newError(InvalidParameter, op, "register does not belong to this computer")
		}
		if r.Freed() {
			return newError(InvalidParameter, op, "register was deleted", r.name)
		}
	}
	return nil
}

// QFT applies the quantum Fourier transform to r.
func (qc *Computer) QFT(r *Register) error {
	if err := qc.check("QFT", r); err != nil {
		return err
	}
	return qc.macro("QFT", []Param{r.Ref()}, func() error {
		return qc.run(qftSequence(r.rows(), r.width))
	})
}

// InverseQFT undoes QFT.
func (qc *Computer) InverseQFT(r *Register) error {
	if err := qc.check("InverseQFT", r); err != nil {
		return err
	}
	return qc.macro("InverseQFT", []Param{r.Ref()}, func() error {
		return qc.run(qftSequence(r.rows(), r.width).inverse())
	})
}

// AQFT is the approximate transform: rotations between qubits further than
// kMax apart are dropped. kMax >= width-1 gives the exact QFT.
func (qc *Computer) AQFT(r *Register, kMax int) error {
	if err := qc.check("AQFT", r); err != nil {
		return err
	}
	if kMax < 0 {
		return newError(ValueOutOfRange, "AQFT", "cutoff must be non-negative", kMax)
	}
	return qc.macro("AQFT", []Param{r.Ref(), Number{Value: float64(kMax)}}, func() error {
		return qc.run(qftSequence(r.rows(), kMax))
	})
}

// Walsh puts every qubit of r through a Hadamard.
func (qc *Computer) Walsh(r *Register) error {
	if err := qc.check("Walsh", r); err != nil {
		return err
	}
	return qc.macro("Walsh", []Param{r.Ref()}, func() error {
		var s sequence
		for _, row := range r.rows() {
			s.h(row)
		}
		return qc.run(s)
	})
}

func init() {
	RegisterMacro(MacroDef{
		Name:   "QFT",
		Doc:    "quantum Fourier transform",
		Params: []ParamSpec{reg("target")},
		Body:   func(qc *Computer, args []Arg) error { return qc.QFT(args[0].Register) },
	})
	RegisterMacro(MacroDef{
		Name:   "InverseQFT",
		Doc:    "inverse quantum Fourier transform",
		Params: []ParamSpec{reg("target")},
		Body:   func(qc *Computer, args []Arg) error { return qc.InverseQFT(args[0].Register) },
	})
	RegisterMacro(MacroDef{
		Name:   "AQFT",
		Doc:    "approximate QFT dropping rotations beyond distance k",
		Params: []ParamSpec{reg("target"), num("k")},
		Body: func(qc *Computer, args []Arg) error {
			k, err := args[1].uint("AQFT", "k")
			if err != nil {
				return err
			}
			return qc.AQFT(args[0].Register, int(k))
		},
	})
	RegisterMacro(MacroDef{
		Name:   "Walsh",
		Doc:    "Hadamard on every qubit",
		Params: []ParamSpec{reg("target")},
		Body:   func(qc *Computer, args []Arg) error { return qc.Walsh(args[0].Register) },
	})
}
