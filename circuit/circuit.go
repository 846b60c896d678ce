package circuit

import (
	"fmt"

	"qtermstep/quantum"
)

// RegisterDecl declares a register the evaluator allocates at the start of
// every run. Amplitudes, when set, replaces Value with a superposition.
type RegisterDecl struct {
	Name       string
	Width      int
	Value      uint64
	Amplitudes map[uint64]complex128
}

// Step is one column of the timeline. Its gates act on disjoint rows.
type Step []quantum.Gate

// Circuit is the externally edited model the evaluator runs.
type Circuit struct {
	Registers []RegisterDecl
	Steps     []Step
}

// Width is the number of root rows the declared registers occupy.
func (c *Circuit) Width() int {
	w := 0
	for _, r := range c.Registers {
		w += r.Width
	}
	return w
}

// Offset returns the root row where the named register will be allocated.
func (c *Circuit) Offset(name string) (int, bool) {
	off := 0
	for _, r := range c.Registers {
		if r.Name == name {
			return off, true
		}
		off += r.Width
	}
	return 0, false
}

// AddStep appends a step and returns its index.
func (c *Circuit) AddStep(gates ...quantum.Gate) int {
	c.Steps = append(c.Steps, Step(gates))
	return len(c.Steps) - 1
}

// Validate checks register declarations and that no two gates in a step
// share a row.
func (c *Circuit) Validate() error {
	seen := make(map[string]bool)
	for _, r := range c.Registers {
		if r.Name == "" || seen[r.Name] {
			return &quantum.Error{Kind: quantum.InvalidParameter, Op: "Validate", Detail: "register names must be unique and non-empty", Params: []any{r.Name}}
		}
		seen[r.Name] = true
		if r.Width < 1 {
			return &quantum.Error{Kind: quantum.InvalidRegisterWidth, Op: "Validate", Detail: "register needs at least one qubit", Params: []any{r.Name, r.Width}}
		}
	}

	width := c.Width()
	for k, step := range c.Steps {
		for i, g := range step {
			if g.Begin() < 0 || g.End() >= width {
				return &quantum.Error{Kind: quantum.InvalidRegisterWidth, Op: "Validate", Detail: fmt.Sprintf("step %d: %s outside the circuit", k, g.Name()), Params: []any{g.Begin(), g.End(), width}}
			}
			for _, o := range step[:i] {
				if quantum.Overlaps(g, o) {
					return &quantum.Error{Kind: quantum.InvalidGateTopology, Op: "Validate", Detail: fmt.Sprintf("step %d: %s overlaps %s", k, g.Name(), o.Name()), Params: []any{k}}
				}
			}
		}
	}
	return nil
}

// InsertRows shifts every gate row at or above afterRow by delta. It is
// used when a register is inserted or removed below existing gates.
func (c *Circuit) InsertRows(afterRow, delta int) {
	for _, step := range c.Steps {
		for _, g := range step {
			g.IncrementRow(afterRow, delta)
		}
	}
}

// Gates returns the gates of step k, or nil when k is out of range.
func (c *Circuit) Gates(k int) Step {
	if k < 0 || k >= len(c.Steps) {
		return nil
	}
	return c.Steps[k]
}
