package quantum

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Param is a macro argument as written in a circuit: a whole register, a
// part of one, or a number. Registers are referred to by name and resolved
// against the live register table when the macro runs.
type Param interface {
	fmt.Stringer
	param()
}

// RegisterRef names a whole register.
type RegisterRef struct {
	Name string
}

// RegisterPartRef names Width qubits of a register starting at Offset.
type RegisterPartRef struct {
	Name   string
	Offset int
	Width  int
}

// Number is a classical argument. Angles accept pi expressions.
type Number struct {
	Value float64
}

func (RegisterRef) param()     {}
func (RegisterPartRef) param() {}
func (Number) param()          {}

func (r RegisterRef) String() string { return r.Name }

func (r RegisterPartRef) String() string {
	if r.Width == 1 {
		return fmt.Sprintf("%s[%d]", r.Name, r.Offset)
	}
	return fmt.Sprintf("%s[%d,%d]", r.Name, r.Offset, r.Width)
}

func (n Number) String() string { return formatNumber(n.Value) }

// Uint returns the number as a non-negative integer.
func (n Number) Uint() (uint64, error) {
	if n.Value < 0 || n.Value != math.Trunc(n.Value) || n.Value >= math.MaxInt64 {
		return 0, newError(ValueOutOfRange, "", "expected a non-negative integer", n.Value)
	}
	return uint64(n.Value), nil
}

// paramPattern matches a single numeric value: numbers, pi expressions, or combinations.
// Examples: "1.5707", "pi", "pi/2", "3*pi/4", "-pi", "-2*pi/3", "3.14e-2"
const paramPattern = `-?(?:\d*\.?\d*\*?pi(?:/\d+\.?\d*)?|\d+\.?\d*(?:[eE][+\-]?\d+)?)`

var (
	// piExprRegex matches expressions like: pi, 2pi, 2*pi, pi/2, 3pi/4, 3*pi/4, -pi, -pi/2, -3*pi/4
	piExprRegex   = regexp.MustCompile(`^(-?)(\d*\.?\d*)\s*\*?\s*pi(?:\s*/\s*(\d+\.?\d*))?$`)
	numberRegex   = regexp.MustCompile(`^` + paramPattern + `$`)
	registerRegex = regexp.MustCompile(`^([A-Za-z_]\w*)(?:\[\s*(\d+)\s*(?:,\s*(\d+)\s*)?\])?$`)
)

// parseNumber parses a plain number or a pi expression.
//
// Supported formats:
//   - Plain numbers: "1.5707", "3.14", "-0.5", "15"
//   - Pi constant: "pi"
//   - Pi fractions: "pi/2", "pi/4", "pi/3"
//   - Coefficients: "2pi", "2*pi", "3pi/4", "3*pi/4"
//   - Negative: "-pi", "-pi/2", "-3*pi/4"
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val, true
	}

	s = strings.ToLower(s)
	matches := piExprRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}
	coeff := 1.0
	if matches[2] != "" {
		var err error
		coeff, err = strconv.ParseFloat(matches[2], 64)
		if err != nil {
			return 0, false
		}
	}
	result := coeff * math.Pi
	if matches[3] != "" {
		denom, err := strconv.ParseFloat(matches[3], 64)
		if err != nil || denom == 0 {
			return 0, false
		}
		result /= denom
	}
	if matches[1] == "-" {
		result = -result
	}
	return result, true
}

// formatNumber formats a value, using pi notation when it is a common
// fraction of pi and integer notation when it is whole.
func formatNumber(val float64) string {
	type piForm struct {
		value   float64
		display string
	}
	piForms := []piForm{
		{2 * math.Pi, "2*pi"},
		{math.Pi, "pi"},
		{math.Pi / 2, "pi/2"},
		{math.Pi / 3, "pi/3"},
		{math.Pi / 4, "pi/4"},
		{math.Pi / 6, "pi/6"},
		{math.Pi / 8, "pi/8"},
		{3 * math.Pi / 4, "3*pi/4"},
		{3 * math.Pi / 2, "3*pi/2"},
		{2 * math.Pi / 3, "2*pi/3"},
	}
	for _, pf := range piForms {
		if math.Abs(val-pf.value) < 1e-10 {
			return pf.display
		}
		if math.Abs(val+pf.value) < 1e-10 {
			return "-" + pf.display
		}
	}
	if val == math.Trunc(val) && math.Abs(val) < 1e15 {
		return strconv.FormatInt(int64(val), 10)
	}
	return fmt.Sprintf("%g", val)
}

// ParseParam parses one macro argument.
func ParseParam(s string) (Param, error) {
	s = strings.TrimSpace(s)
	if numberRegex.MatchString(strings.ToLower(s)) {
		if v, ok := parseNumber(s); ok {
			return Number{Value: v}, nil
		}
	}
	m := registerRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, newError(InvalidParameter, "ParseParam", "cannot parse argument", s)
	}
	if m[2] == "" {
		return RegisterRef{Name: m[1]}, nil
	}
	offset, _ := strconv.Atoi(m[2])
	width := 1
	if m[3] != "" {
		width, _ = strconv.Atoi(m[3])
	}
	if width < 1 {
		return nil, newError(InvalidParameter, "ParseParam", "register part needs a positive width", s)
	}
	return RegisterPartRef{Name: m[1], Offset: offset, Width: width}, nil
}

// ParseParams parses a comma separated argument list. Commas inside
// brackets belong to register parts.
func ParseParams(s string) ([]Param, error) {
	var params []Param
	for _, part := range splitArgs(s) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParseParam(part)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func splitArgs(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// FormatParam renders an argument the way ParseParam reads it.
func FormatParam(p Param) string { return p.String() }

// FormatParams renders an argument list.
func FormatParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = FormatParam(p)
	}
	return strings.Join(parts, ", ")
}
