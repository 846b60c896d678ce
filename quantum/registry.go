package quantum

import (
	"fmt"
	"slices"
	"strings"
)

// ParamKind is the type a macro parameter accepts.
type ParamKind int

const (
	ParamRegister ParamKind = iota
	ParamNumber
)

func (k ParamKind) String() string {
	if k == ParamNumber {
		return "number"
	}
	return "register"
}

// ParamSpec describes one macro parameter. Only the last parameter may be
// Variadic; it then accepts zero or more arguments.
type ParamSpec struct {
	Name     string
	Kind     ParamKind
	Variadic bool
}

// Arg is a resolved macro argument.
type Arg struct {
	Register *Register
	Number   Number
}

// MacroFunc is the callable body of a registered macro.
type MacroFunc func(qc *Computer, args []Arg) error

// MacroDef is an entry of the macro registry.
type MacroDef struct {
	Name   string
	Doc    string
	Params []ParamSpec
	Body   MacroFunc
}

// Signature renders the definition as Name(a reg, N num, ...).
func (d *MacroDef) Signature() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		s := p.Name
		if p.Kind == ParamNumber {
			s += " num"
		}
		if p.Variadic {
			s += "..."
		}
		parts[i] = s
	}
	return d.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Check reports whether params fit the parameter list: the argument count,
// and a Number exactly where a number is declared.
func (d *MacroDef) Check(params []Param) error {
	required := len(d.Params)
	variadic := required > 0 && d.Params[required-1].Variadic
	if variadic {
		required--
	}
	if len(params) < required || (!variadic && len(params) > required) {
		return newError(InvalidParameter, d.Name, "usage: "+d.Signature(), len(params))
	}
	for i, p := range params {
		spec := d.Params[min(i, len(d.Params)-1)]
		if _, isNumber := p.(Number); isNumber != (spec.Kind == ParamNumber) {
			return newError(InvalidParameter, d.Name, fmt.Sprintf("argument %s must be a %s", spec.Name, spec.Kind), p)
		}
	}
	return nil
}

var registry = map[string]*MacroDef{}

// RegisterMacro adds a macro to the process-wide registry. It is meant to
// be called from init functions and panics on a duplicate name.
func RegisterMacro(def MacroDef) {
	if def.Name == "" || def.Body == nil {
		panic("quantum: macro needs a name and a body")
	}
	if _, dup := registry[def.Name]; dup {
		panic(fmt.Sprintf("quantum: macro %q registered twice", def.Name))
	}
	for i, p := range def.Params {
		if p.Variadic && i != len(def.Params)-1 {
			panic(fmt.Sprintf("quantum: macro %q: only the last parameter may be variadic", def.Name))
		}
	}
	registry[def.Name] = &def
}

// LookupMacro finds a registered macro by name.
func LookupMacro(name string) (*MacroDef, bool) {
	def, ok := registry[name]
	return def, ok
}

// Macros lists every registered macro ordered by name.
func Macros() []*MacroDef {
	defs := make([]*MacroDef, 0, len(registry))
	for _, d := range registry {
		defs = append(defs, d)
	}
	slices.SortFunc(defs, func(a, b *MacroDef) int { return strings.Compare(a.Name, b.Name) })
	return defs
}

func (a Arg) uint(op, name string) (uint64, error) {
	v, err := a.Number.Uint()
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", op, name, err)
	}
	return v, nil
}

// registers collects the register arguments from index i on.
func registers(args []Arg, i int) []*Register {
	var regs []*Register
	for _, a := range args[i:] {
		regs = append(regs, a.Register)
	}
	return regs
}

func reg(name string) ParamSpec  { return ParamSpec{Name: name, Kind: ParamRegister} }
func num(name string) ParamSpec  { return ParamSpec{Name: name, Kind: ParamNumber} }
func regs(name string) ParamSpec { return ParamSpec{Name: name, Kind: ParamRegister, Variadic: true} }

func init() {
	RegisterMacro(MacroDef{
		Name:   "Measure",
		Doc:    "measure a register",
		Params: []ParamSpec{reg("target")},
		Body: func(qc *Computer, args []Arg) error {
			_, err := args[0].Register.Measure()
			return err
		},
	})
	RegisterMacro(MacroDef{
		Name:   "Reset",
		Doc:    "measure a register and return it to zero",
		Params: []ParamSpec{reg("target")},
		Body: func(qc *Computer, args []Arg) error {
			return qc.macro("Reset", []Param{args[0].Register.Ref()}, args[0].Register.Reset)
		},
	})
}
