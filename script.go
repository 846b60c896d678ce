package main

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"qtermstep/circuit"
	"qtermstep/quantum"
)

// Pre-compiled regexps for circuit script parsing.
var (
	regDeclRegex = regexp.MustCompile(`^reg\s+(\w+)\s*\[\s*(\d+)\s*\](?:\s*=\s*(.+))?$`)
	stepRegex    = regexp.MustCompile(`^step(?:\s+(.*))?$`)
	gateRegex    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?:\(([^)]*)\))?\s*(.*)$`)
	operandRegex = regexp.MustCompile(`^(\w+)(?:\[\s*(\d+)\s*\])?$`)
	distRegex    = regexp.MustCompile(`^\{(.*)\}$`)
)

// primitiveSpec describes a script gate name that maps onto one primitive.
// The last operand is the target, the ones before it are controls; swap
// takes both operands as targets.
type primitiveSpec struct {
	kind   quantum.Kind
	angle  float64
	args   int
	qubits int
}

var primitives = map[string]primitiveSpec{
	"h":       {kind: quantum.KindHadamard, qubits: 1},
	"x":       {kind: quantum.KindSigmaX, qubits: 1},
	"y":       {kind: quantum.KindSigmaY, qubits: 1},
	"z":       {kind: quantum.KindSigmaZ, qubits: 1},
	"sx":      {kind: quantum.KindSqrtX, qubits: 1},
	"s":       {kind: quantum.KindPhaseKick, angle: math.Pi / 2, qubits: 1},
	"sdg":     {kind: quantum.KindPhaseKick, angle: -math.Pi / 2, qubits: 1},
	"t":       {kind: quantum.KindPhaseKick, angle: math.Pi / 4, qubits: 1},
	"tdg":     {kind: quantum.KindPhaseKick, angle: -math.Pi / 4, qubits: 1},
	"p":       {kind: quantum.KindPhaseKick, args: 1, qubits: 1},
	"rx":      {kind: quantum.KindRotateX, args: 1, qubits: 1},
	"ry":      {kind: quantum.KindRotateY, args: 1, qubits: 1},
	"rz":      {kind: quantum.KindRotateZ, args: 1, qubits: 1},
	"u":       {kind: quantum.KindUnitary, args: 4, qubits: 1},
	"cx":      {kind: quantum.KindSigmaX, qubits: 2},
	"cz":      {kind: quantum.KindSigmaZ, qubits: 2},
	"cp":      {kind: quantum.KindPhaseKick, args: 1, qubits: 2},
	"ccx":     {kind: quantum.KindSigmaX, qubits: 3},
	"swap":    {kind: quantum.KindSwap, qubits: 2},
	"measure": {kind: quantum.KindMeasure, qubits: 1},
	"reset":   {kind: quantum.KindReset, qubits: 1},
}

// scriptError is a parse failure tagged with its 1-based line number.
func scriptError(line int, detail string, params ...any) error {
	return fmt.Errorf("line %d: %w", line, &quantum.Error{Kind: quantum.InvalidParameter, Op: "script", Detail: detail, Params: params})
}

// ParseScript reads a circuit script:
//
//	reg a[3] = 5
//	reg psi[2] = {0: 0.7071, 3: 0.7071}
//	step h a[0]; cx a[0], b[1]
//	step AddModulo(a, b, 7)
//	step measure a
//
// Registers are allocated in declaration order, so a register must be
// declared before a step refers to it. Lines starting with # or // are
// comments.
func ParseScript(src string) (*circuit.Circuit, error) {
	c := &circuit.Circuit{}
	for i, line := range strings.Split(src, "\n") {
		n := i + 1
		line = stripComment(line)
		if line == "" {
			continue
		}

		if m := regDeclRegex.FindStringSubmatch(line); m != nil {
			decl, err := parseRegDecl(m[1], m[2], m[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			if _, dup := c.Offset(decl.Name); dup {
				return nil, scriptError(n, "register declared twice", decl.Name)
			}
			c.Registers = append(c.Registers, decl)
			continue
		}

		if m := stepRegex.FindStringSubmatch(line); m != nil {
			var gates []quantum.Gate
			for _, g := range strings.Split(m[1], ";") {
				g = strings.TrimSpace(g)
				if g == "" {
					continue
				}
				parsed, err := parseGate(c, g)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", n, err)
				}
				gates = append(gates, parsed...)
			}
			c.AddStep(gates...)
			continue
		}

		return nil, scriptError(n, "expected reg or step", line)
	}
	return c, nil
}

func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func parseRegDecl(name, width, init string) (circuit.RegisterDecl, error) {
	w, err := strconv.Atoi(width)
	if err != nil || w < 1 || w > quantum.MaxQubits {
		return circuit.RegisterDecl{}, &quantum.Error{Kind: quantum.InvalidRegisterWidth, Op: "reg", Detail: "width must be between 1 and 64", Params: []any{name, width}}
	}
	decl := circuit.RegisterDecl{Name: name, Width: w}
	init = strings.TrimSpace(init)
	if init == "" {
		return decl, nil
	}
	if m := distRegex.FindStringSubmatch(init); m != nil {
		dist, err := parseDistribution(m[1])
		if err != nil {
			return decl, err
		}
		decl.Amplitudes = dist
		return decl, nil
	}
	v, err := strconv.ParseUint(init, 0, 64)
	if err != nil {
		return decl, &quantum.Error{Kind: quantum.InvalidParameter, Op: "reg", Detail: "initial value must be an unsigned integer", Params: []any{name, init}}
	}
	decl.Value = v
	return decl, nil
}

// parseDistribution reads "value: amplitude" pairs. Amplitudes are complex
// literals such as 0.5-0.5i or angle expressions such as pi/4.
func parseDistribution(s string) (map[uint64]complex128, error) {
	dist := make(map[uint64]complex128)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, a, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: "reg", Detail: "expected value: amplitude", Params: []any{pair}}
		}
		v, err := strconv.ParseUint(strings.TrimSpace(k), 0, 64)
		if err != nil {
			return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: "reg", Detail: "bad basis value", Params: []any{k}}
		}
		amp, err := parseAmplitude(a)
		if err != nil {
			return nil, err
		}
		dist[v] += amp
	}
	return dist, nil
}

func parseAmplitude(s string) (complex128, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if c, err := strconv.ParseComplex(s, 128); err == nil {
		return c, nil
	}
	p, err := quantum.ParseParam(s)
	if err != nil {
		return 0, err
	}
	n, ok := p.(quantum.Number)
	if !ok {
		return 0, &quantum.Error{Kind: quantum.InvalidParameter, Op: "reg", Detail: "bad amplitude", Params: []any{s}}
	}
	return complex(n.Value, 0), nil
}

// parseGate turns one gate expression into circuit gates. A single-qubit
// primitive applied to a whole register expands to one gate per qubit.
func parseGate(c *circuit.Circuit, expr string) ([]quantum.Gate, error) {
	m := gateRegex.FindStringSubmatch(expr)
	if m == nil {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: "script", Detail: "cannot parse gate", Params: []any{expr}}
	}
	name, args, operands := m[1], m[2], strings.TrimSpace(m[3])

	spec, ok := primitives[strings.ToLower(name)]
	if !ok {
		if operands != "" {
			return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "macro arguments go inside the parentheses", Params: []any{operands}}
		}
		g, err := parseMacroCall(c, name, args)
		if err != nil {
			return nil, err
		}
		return []quantum.Gate{g}, nil
	}
	return parsePrimitive(c, strings.ToLower(name), spec, args, operands)
}

func parsePrimitive(c *circuit.Circuit, name string, spec primitiveSpec, args, operands string) ([]quantum.Gate, error) {
	angles, err := parseAngles(name, args)
	if err != nil {
		return nil, err
	}
	if len(angles) != spec.args {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "wrong number of parameters", Params: []any{len(angles), spec.args}}
	}

	var ops [][]int
	for _, o := range strings.Split(operands, ",") {
		if o = strings.TrimSpace(o); o == "" {
			continue
		}
		rows, err := resolveOperand(c, name, o)
		if err != nil {
			return nil, err
		}
		ops = append(ops, rows)
	}
	if len(ops) != spec.qubits {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "wrong number of qubits", Params: []any{len(ops), spec.qubits}}
	}

	build := func(rows []int) *quantum.Primitive {
		p := &quantum.Primitive{Kind: spec.kind, Angle: spec.angle}
		switch {
		case spec.kind == quantum.KindSwap:
			p.Target, p.Target2 = rows[0], rows[1]
		default:
			p.Target = rows[len(rows)-1]
			if len(rows) > 1 {
				p.Controls = append([]int(nil), rows[:len(rows)-1]...)
			}
		}
		switch spec.kind {
		case quantum.KindUnitary:
			p.Matrix = quantum.Matrix{
				{complex(angles[0], 0), complex(angles[1], 0)},
				{complex(angles[2], 0), complex(angles[3], 0)},
			}
		default:
			if spec.args == 1 {
				p.Angle = angles[0]
			}
		}
		return p
	}

	if spec.qubits == 1 {
		gates := make([]quantum.Gate, 0, len(ops[0]))
		for _, row := range ops[0] {
			gates = append(gates, build([]int{row}))
		}
		return gates, nil
	}

	rows := make([]int, len(ops))
	for i, o := range ops {
		if len(o) != 1 {
			return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "multi-qubit gates take single-qubit operands", Params: []any{i}}
		}
		rows[i] = o[0]
	}
	return []quantum.Gate{build(rows)}, nil
}

func parseAngles(name, args string) ([]float64, error) {
	params, err := quantum.ParseParams(args)
	if err != nil {
		return nil, err
	}
	angles := make([]float64, len(params))
	for i, p := range params {
		n, ok := p.(quantum.Number)
		if !ok {
			return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "expected a numeric parameter", Params: []any{p.String()}}
		}
		angles[i] = n.Value
	}
	return angles, nil
}

// resolveOperand maps "a[i]" to one root row, or a bare register name to
// all of its rows.
func resolveOperand(c *circuit.Circuit, op, s string) ([]int, error) {
	m := operandRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: op, Detail: "expected reg or reg[i]", Params: []any{s}}
	}
	decl, off, ok := lookupDecl(c, m[1])
	if !ok {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: op, Detail: "unknown register", Params: []any{m[1]}}
	}
	if m[2] == "" {
		rows := make([]int, decl.Width)
		for i := range rows {
			rows[i] = off + i
		}
		return rows, nil
	}
	i, _ := strconv.Atoi(m[2])
	if i >= decl.Width {
		return nil, &quantum.Error{Kind: quantum.InvalidRegisterWidth, Op: op, Detail: "qubit index outside register", Params: []any{s, decl.Width}}
	}
	return []int{off + i}, nil
}

func lookupDecl(c *circuit.Circuit, name string) (circuit.RegisterDecl, int, bool) {
	off := 0
	for _, d := range c.Registers {
		if d.Name == name {
			return d, off, true
		}
		off += d.Width
	}
	return circuit.RegisterDecl{}, 0, false
}

// parseMacroCall builds a Parametric gate spanning the rows of its register
// arguments. Arity and argument kinds are checked against the registry here;
// values are checked when the step runs.
func parseMacroCall(c *circuit.Circuit, name, args string) (quantum.Gate, error) {
	def, ok := quantum.LookupMacro(name)
	if !ok {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "unknown gate or macro"}
	}
	params, err := quantum.ParseParams(args)
	if err != nil {
		return nil, err
	}
	if err := def.Check(params); err != nil {
		return nil, err
	}

	lo, hi := -1, -1
	for _, p := range params {
		var begin, width int
		switch p := p.(type) {
		case quantum.Number:
			continue
		case quantum.RegisterRef:
			if p.Name == "root" {
				begin, width = 0, c.Width()
				break
			}
			decl, off, ok := lookupDecl(c, p.Name)
			if !ok {
				return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "unknown register", Params: []any{p.Name}}
			}
			begin, width = off, decl.Width
		case quantum.RegisterPartRef:
			decl, off, ok := lookupDecl(c, p.Name)
			if !ok {
				return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "unknown register", Params: []any{p.Name}}
			}
			if p.Offset+p.Width > decl.Width {
				return nil, &quantum.Error{Kind: quantum.InvalidRegisterWidth, Op: name, Detail: "register part outside register", Params: []any{p.String(), decl.Width}}
			}
			begin, width = off+p.Offset, p.Width
		}
		if lo < 0 || begin < lo {
			lo = begin
		}
		hi = max(hi, begin+width-1)
	}
	if lo < 0 {
		return nil, &quantum.Error{Kind: quantum.InvalidParameter, Op: name, Detail: "macro call needs a register argument"}
	}
	return &quantum.Parametric{Function: name, Params: params, Rows: quantum.QubitRange{Offset: lo, Width: hi - lo + 1}}, nil
}
