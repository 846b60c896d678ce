package quantum

import (
	"fmt"
	"math/cmplx"
	"slices"
	"strings"
)

// Register is a view onto the bit range [OffsetToRoot, OffsetToRoot+Width)
// of the computer's store. Top-level registers are created by the Computer;
// slices keep a pointer to their parent so they follow it when registers
// below are freed.
type Register struct {
	qc     *Computer
	id     int
	name   string
	parent *Register
	offset int // absolute for top-level registers, relative for slices
	width  int
	freed  bool
}

func (r *Register) Name() string { return r.name }
func (r *Register) Width() int   { return r.width }
func (r *Register) ID() int      { return r.id }

// OffsetToRoot is the absolute row of the register's qubit 0.
func (r *Register) OffsetToRoot() int {
	if r.parent != nil {
		return r.parent.OffsetToRoot() + r.offset
	}
	return r.offset
}

// Range is the register's span in root rows.
func (r *Register) Range() QubitRange {
	return QubitRange{Offset: r.OffsetToRoot(), Width: r.width}
}

func (r *Register) top() *Register {
	if r.parent == nil {
		return r
	}
	return r.parent.top()
}

// Freed reports whether the register (or the register it slices) has been
// deleted.
func (r *Register) Freed() bool {
	return r.top().freed
}

// Slice returns the view of width qubits starting at local offset.
func (r *Register) Slice(offset, width int) (*Register, error) {
	if offset < 0 || width < 1 || offset+width > r.width {
		return nil, newError(InvalidRegisterWidth, "Slice", "slice outside register", r.name, offset, width, r.width)
	}
	return r.part(offset, width), nil
}

// part is Slice without the bounds check, for macro bodies that have
// already validated widths.
func (r *Register) part(offset, width int) *Register {
	name := fmt.Sprintf("%s[%d,%d]", r.name, offset, width)
	if width == 1 {
		name = fmt.Sprintf("%s[%d]", r.name, offset)
	}
	return &Register{qc: r.qc, id: r.id, name: name, parent: r, offset: offset, width: width}
}

// Ref returns the tagged parameter that resolves back to this register.
func (r *Register) Ref() Param {
	if r.parent == nil {
		return RegisterRef{Name: r.name}
	}
	top := r.top()
	return RegisterPartRef{Name: top.name, Offset: r.OffsetToRoot() - top.OffsetToRoot(), Width: r.width}
}

// Row converts a local qubit index to an absolute row.
func (r *Register) Row(i int) int { return r.OffsetToRoot() + i }

func (r *Register) rows() []int {
	rows := make([]int, r.width)
	for i := range rows {
		rows[i] = r.Row(i)
	}
	return rows
}

func (r *Register) local(op string, indexes ...int) ([]int, error) {
	if r.Freed() {
		return nil, newError(InvalidParameter, op, "register was deleted", r.name)
	}
	rows := make([]int, len(indexes))
	for i, idx := range indexes {
		if idx < 0 || idx >= r.width {
			return nil, newError(InvalidRegisterWidth, op, "qubit index outside register", r.name, idx, r.width)
		}
		rows[i] = r.Row(idx)
	}
	return rows, nil
}

func (r *Register) gate(kind Kind, angle float64, target int, controls []int) error {
	rows, err := r.local(kind.String(), append([]int{target}, controls...)...)
	if err != nil {
		return err
	}
	return r.qc.Apply(&Primitive{Kind: kind, Target: rows[0], Controls: rows[1:], Angle: angle})
}

func (r *Register) Hadamard(target int, controls ...int) error {
	return r.gate(KindHadamard, 0, target, controls)
}

func (r *Register) SigmaX(target int, controls ...int) error {
	return r.gate(KindSigmaX, 0, target, controls)
}

func (r *Register) SigmaY(target int, controls ...int) error {
	return r.gate(KindSigmaY, 0, target, controls)
}

func (r *Register) SigmaZ(target int, controls ...int) error {
	return r.gate(KindSigmaZ, 0, target, controls)
}

func (r *Register) SqrtX(target int, controls ...int) error {
	return r.gate(KindSqrtX, 0, target, controls)
}

// PhaseKick multiplies the |1⟩ component of target by e^{iγ}.
func (r *Register) PhaseKick(gamma float64, target int, controls ...int) error {
	return r.gate(KindPhaseKick, gamma, target, controls)
}

// PhaseScale multiplies the whole target qubit by e^{iθ}.
func (r *Register) PhaseScale(theta float64, target int, controls ...int) error {
	return r.gate(KindPhaseScale, theta, target, controls)
}

// CPhaseShift applies the π/2^k phase to target when control is set.
func (r *Register) CPhaseShift(k, control, target int) error {
	return r.gate(KindCPhaseShift, float64(k), target, []int{control})
}

func (r *Register) InverseCPhaseShift(k, control, target int) error {
	return r.gate(KindInverseCPhaseShift, float64(k), target, []int{control})
}

func (r *Register) RotateX(theta float64, target int, controls ...int) error {
	return r.gate(KindRotateX, theta, target, controls)
}

func (r *Register) RotateY(theta float64, target int, controls ...int) error {
	return r.gate(KindRotateY, theta, target, controls)
}

func (r *Register) RotateZ(theta float64, target int, controls ...int) error {
	return r.gate(KindRotateZ, theta, target, controls)
}

// Gate1 applies an arbitrary 2x2 matrix. Non-unitary matrices are rejected
// before anything is applied.
func (r *Register) Gate1(m Matrix, target int, controls ...int) error {
	rows, err := r.local("Gate1", append([]int{target}, controls...)...)
	if err != nil {
		return err
	}
	return r.qc.Apply(&Primitive{Kind: KindUnitary, Target: rows[0], Controls: rows[1:], Matrix: m})
}

func (r *Register) CNot(control, target int) error {
	return r.gate(KindSigmaX, 0, target, []int{control})
}

func (r *Register) Toffoli(target int, controls ...int) error {
	return r.gate(KindSigmaX, 0, target, controls)
}

func (r *Register) Swap(a, b int, controls ...int) error {
	rows, err := r.local("Swap", append([]int{a, b}, controls...)...)
	if err != nil {
		return err
	}
	return r.qc.Apply(&Primitive{Kind: KindSwap, Target: rows[0], Target2: rows[1], Controls: rows[2:]})
}

// Reset measures every qubit and flips the ones that read 1.
func (r *Register) Reset() error {
	if _, err := r.local("Reset"); err != nil {
		return err
	}
	for i := 0; i < r.width; i++ {
		if err := r.qc.Apply(&Primitive{Kind: KindReset, Target: r.Row(i)}); err != nil {
			return err
		}
	}
	return nil
}

// Measure samples the register's value and collapses the store onto it.
// While the recorder is grouping the call is recorded and returns 0.
func (r *Register) Measure() (uint64, error) {
	if _, err := r.local("Measure"); err != nil {
		return 0, err
	}
	var v uint64
	err := r.qc.macro("Measure", []Param{r.Ref()}, func() (err error) {
		v, err = r.qc.measure(r.OffsetToRoot(), r.width)
		return err
	})
	return v, err
}

// MeasureBit measures one qubit of the register.
func (r *Register) MeasureBit(i int) (int, error) {
	if _, err := r.local("MeasureBit", i); err != nil {
		return 0, err
	}
	v, err := r.part(i, 1).Measure()
	return int(v), err
}

// GetProbabilities returns the distribution of the register's value with
// every other qubit traced out.
func (r *Register) GetProbabilities() map[uint64]float64 {
	return r.qc.store.Probabilities(r.OffsetToRoot(), r.width)
}

// GetAmplitudes returns one OutputState per reachable value, ordered by
// value. Amplitudes are only reported when the register is not entangled
// with the rest of the store.
func (r *Register) GetAmplitudes() []OutputState {
	probs := r.GetProbabilities()
	psi, pure := r.qc.store.Factor(r.OffsetToRoot(), r.width, r.qc.cfg.Epsilon)

	values := make([]uint64, 0, len(probs))
	for v := range probs {
		values = append(values, v)
	}
	slices.Sort(values)

	out := make([]OutputState, 0, len(values))
	for _, v := range values {
		s := OutputState{Value: v, Probability: probs[v], Width: r.width}
		if pure {
			a := psi[v]
			s.Amplitude = &a
		}
		out = append(out, s)
	}
	return out
}

// IsEntangled reports whether the register cannot be factored out of the
// store.
func (r *Register) IsEntangled() bool {
	_, pure := r.qc.store.Factor(r.OffsetToRoot(), r.width, r.qc.cfg.Epsilon)
	return !pure
}

// values lists the register values with non-zero probability.
func (r *Register) values() []uint64 {
	probs := r.GetProbabilities()
	vals := make([]uint64, 0, len(probs))
	for v := range probs {
		vals = append(vals, v)
	}
	slices.Sort(vals)
	return vals
}

func (r *Register) String() string {
	return fmt.Sprintf("%s@%d:%d", r.name, r.OffsetToRoot(), r.width)
}

// OutputState is an immutable report of one basis state of a register.
type OutputState struct {
	Value uint64
	// Amplitude is nil when the register is entangled with other qubits.
	Amplitude   *complex128
	Probability float64
	Width       int
}

// Ket formats the value as a binary ket, most significant qubit first.
func (s OutputState) Ket() string {
	return fmt.Sprintf("|%0*b⟩", s.Width, s.Value)
}

// AmplitudeString formats the amplitude, or "—" when unknown.
func (s OutputState) AmplitudeString() string {
	if s.Amplitude == nil {
		return "—"
	}
	a := *s.Amplitude
	var sb strings.Builder
	fmt.Fprintf(&sb, "%.4f", real(a))
	if imag(a) >= 0 {
		sb.WriteString("+")
	}
	fmt.Fprintf(&sb, "%.4fi", imag(a))
	return sb.String()
}

// Phase is the argument of the amplitude, or 0 when unknown.
func (s OutputState) Phase() float64 {
	if s.Amplitude == nil {
		return 0
	}
	return cmplx.Phase(*s.Amplitude)
}
