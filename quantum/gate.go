package quantum

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Gate is one placement in a circuit step. Rows are absolute root qubit
// indices.
type Gate interface {
	Name() string
	// Begin and End are the lowest and highest rows the gate touches.
	Begin() int
	End() int
	// Control returns the first control row, or nil.
	Control() *int
	// Copy returns a clone with every row shifted by referenceRow.
	Copy(referenceRow int) Gate
	// IncrementRow shifts every row at or above afterRow by delta.
	IncrementRow(afterRow, delta int)
}

// QubitRange is a contiguous run of root rows.
type QubitRange struct {
	Offset int
	Width  int
}

func (q QubitRange) End() int { return q.Offset + q.Width - 1 }

func (q QubitRange) shift(afterRow, delta int) QubitRange {
	if q.Offset >= afterRow {
		q.Offset += delta
	}
	return q
}

// Kind selects the operator of a Primitive gate.
type Kind int

const (
	KindHadamard Kind = iota
	KindSigmaX
	KindSigmaY
	KindSigmaZ
	KindSqrtX
	KindPhaseKick
	KindPhaseScale
	KindCPhaseShift
	KindInverseCPhaseShift
	KindRotateX
	KindRotateY
	KindRotateZ
	KindUnitary
	KindSwap
	KindMeasure
	KindReset
)

var kindNames = map[Kind]string{
	KindHadamard:           "Hadamard",
	KindSigmaX:             "SigmaX",
	KindSigmaY:             "SigmaY",
	KindSigmaZ:             "SigmaZ",
	KindSqrtX:              "SqrtX",
	KindPhaseKick:          "PhaseKick",
	KindPhaseScale:         "PhaseScale",
	KindCPhaseShift:        "CPhaseShift",
	KindInverseCPhaseShift: "InverseCPhaseShift",
	KindRotateX:            "RotateX",
	KindRotateY:            "RotateY",
	KindRotateZ:            "RotateZ",
	KindUnitary:            "Unitary",
	KindSwap:               "Swap",
	KindMeasure:            "Measure",
	KindReset:              "Reset",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Primitive is a single-qubit operator on Target, optionally conditioned on
// every row in Controls. Swap exchanges Target and Target2.
type Primitive struct {
	Kind     Kind
	Target   int
	Target2  int
	Controls []int
	// Angle is in radians for phase and rotation kinds; for CPhaseShift it
	// is the distance k of the π/2^k rotation.
	Angle  float64
	Matrix Matrix
}

func (p *Primitive) Name() string {
	switch {
	case p.Kind == KindSigmaX && len(p.Controls) == 1:
		return "CNot"
	case p.Kind == KindSigmaX && len(p.Controls) == 2:
		return "Toffoli"
	}
	return p.Kind.String()
}

func (p *Primitive) rows() []int {
	rows := append([]int{p.Target}, p.Controls...)
	if p.Kind == KindSwap {
		rows = append(rows, p.Target2)
	}
	return rows
}

func (p *Primitive) Begin() int { return slices.Min(p.rows()) }
func (p *Primitive) End() int   { return slices.Max(p.rows()) }

func (p *Primitive) Control() *int {
	if len(p.Controls) == 0 {
		return nil
	}
	c := p.Controls[0]
	return &c
}

func (p *Primitive) clone() *Primitive {
	c := *p
	c.Controls = slices.Clone(p.Controls)
	return &c
}

func (p *Primitive) Copy(referenceRow int) Gate {
	c := p.clone()
	c.Target += referenceRow
	c.Target2 += referenceRow
	for i := range c.Controls {
		c.Controls[i] += referenceRow
	}
	return c
}

func (p *Primitive) IncrementRow(afterRow, delta int) {
	shift := func(r int) int {
		if r >= afterRow {
			return r + delta
		}
		return r
	}
	p.Target = shift(p.Target)
	if p.Kind == KindSwap {
		p.Target2 = shift(p.Target2)
	}
	for i := range p.Controls {
		p.Controls[i] = shift(p.Controls[i])
	}
}

// Operator returns the 2x2 matrix the gate applies to its target.
func (p *Primitive) Operator() Matrix {
	switch p.Kind {
	case KindHadamard:
		return Hadamard
	case KindSigmaX:
		return PauliX
	case KindSigmaY:
		return PauliY
	case KindSigmaZ:
		return PauliZ
	case KindSqrtX:
		return SqrtX
	case KindPhaseKick:
		return PhaseKick(p.Angle)
	case KindPhaseScale:
		return PhaseScale(p.Angle)
	case KindCPhaseShift:
		return PhaseKick(math.Pi / math.Exp2(p.Angle))
	case KindInverseCPhaseShift:
		return PhaseKick(-math.Pi / math.Exp2(p.Angle))
	case KindRotateX:
		return RotateX(p.Angle)
	case KindRotateY:
		return RotateY(p.Angle)
	case KindRotateZ:
		return RotateZ(p.Angle)
	case KindUnitary:
		return p.Matrix
	}
	return Identity
}

// Invertible reports whether Inverse yields the adjoint. Measure and Reset
// are not.
func (p *Primitive) Invertible() bool {
	return p.Kind != KindMeasure && p.Kind != KindReset
}

// Inverse returns the adjoint gate.
func (p *Primitive) Inverse() *Primitive {
	c := p.clone()
	switch p.Kind {
	case KindSqrtX:
		c.Kind, c.Matrix = KindUnitary, SqrtX.Dagger()
	case KindSigmaY:
		// Y is Hermitian
	case KindPhaseKick, KindPhaseScale, KindRotateX, KindRotateY, KindRotateZ:
		c.Angle = -p.Angle
	case KindCPhaseShift:
		c.Kind = KindInverseCPhaseShift
	case KindInverseCPhaseShift:
		c.Kind = KindCPhaseShift
	case KindUnitary:
		c.Matrix = p.Matrix.Dagger()
	}
	return c
}

func (p *Primitive) String() string {
	var sb strings.Builder
	sb.WriteString(p.Name())
	switch p.Kind {
	case KindPhaseKick, KindPhaseScale, KindRotateX, KindRotateY, KindRotateZ:
		fmt.Fprintf(&sb, "(%s)", formatNumber(p.Angle))
	case KindCPhaseShift, KindInverseCPhaseShift:
		fmt.Fprintf(&sb, "(%d)", int(p.Angle))
	}
	for _, c := range p.Controls {
		fmt.Fprintf(&sb, " c%d", c)
	}
	fmt.Fprintf(&sb, " q%d", p.Target)
	if p.Kind == KindSwap {
		fmt.Fprintf(&sb, " q%d", p.Target2)
	}
	return sb.String()
}

// Parametric is a macro call captured with its arguments. It is replayed by
// invoking the named macro again, never by interpreting its expansion.
type Parametric struct {
	Function string
	Params   []Param
	// Rows is the span the call occupies in the circuit grid.
	Rows QubitRange
}

func (g *Parametric) Name() string  { return g.Function }
func (g *Parametric) Begin() int    { return g.Rows.Offset }
func (g *Parametric) End() int      { return g.Rows.End() }
func (g *Parametric) Control() *int { return nil }

func (g *Parametric) Copy(referenceRow int) Gate {
	c := &Parametric{Function: g.Function, Params: slices.Clone(g.Params), Rows: g.Rows}
	c.Rows.Offset += referenceRow
	return c
}

func (g *Parametric) IncrementRow(afterRow, delta int) {
	g.Rows = g.Rows.shift(afterRow, delta)
}

func (g *Parametric) String() string {
	return g.Function + "(" + FormatParams(g.Params) + ")"
}

// Composite is a named sub-circuit applied to Target. Steps hold its
// expansion with rows relative to the first qubit of Target.
type Composite struct {
	Label  string
	Target QubitRange
	Steps  [][]Gate
}

func (g *Composite) Name() string  { return g.Label }
func (g *Composite) Begin() int    { return g.Target.Offset }
func (g *Composite) End() int      { return g.Target.End() }
func (g *Composite) Control() *int { return nil }

func (g *Composite) Copy(referenceRow int) Gate {
	c := &Composite{Label: g.Label, Target: g.Target, Steps: g.Steps}
	c.Target.Offset += referenceRow
	return c
}

func (g *Composite) IncrementRow(afterRow, delta int) {
	g.Target = g.Target.shift(afterRow, delta)
}

// Overlaps reports whether two gates share any row in their spans.
func Overlaps(a, b Gate) bool {
	return a.Begin() <= b.End() && b.Begin() <= a.End()
}

// sequence is a primitive gate list that macros build and then run forward
// or in reverse.
type sequence []*Primitive

func (s *sequence) add(kind Kind, target int, controls ...int) *Primitive {
	p := &Primitive{Kind: kind, Target: target, Controls: controls}
	*s = append(*s, p)
	return p
}

func (s *sequence) h(target int) {
	s.add(KindHadamard, target)
}

func (s *sequence) x(target int, controls ...int) {
	s.add(KindSigmaX, target, controls...)
}

func (s *sequence) phase(gamma float64, target int, controls ...int) {
	s.add(KindPhaseKick, target, controls...).Angle = gamma
}

func (s *sequence) cphase(k, control, target int) {
	s.add(KindCPhaseShift, target, control).Angle = float64(k)
}

func (s *sequence) swap(a, b int, controls ...int) {
	s.add(KindSwap, a, controls...).Target2 = b
}

func (s *sequence) append(o sequence) { *s = append(*s, o...) }

// inverse reverses the list and inverts every gate.
func (s sequence) inverse() sequence {
	inv := make(sequence, len(s))
	for i, p := range s {
		inv[len(s)-1-i] = p.Inverse()
	}
	return inv
}
