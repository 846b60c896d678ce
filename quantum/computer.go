package quantum

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Computer owns one simulation: the amplitude store, the table of live
// registers, the macro recorder and the measurement PRNG. It is not safe
// for concurrent use; independent simulations need independent Computers.
type Computer struct {
	cfg       *Config
	store     *Store
	registers []*Register
	nextID    int
	recorder  *Recorder
	macros    map[string]*MacroDef
	rng       *rand.Rand
	tape      tape
	log       *log.Logger
}

// tape records measurement outcomes and replays them in order.
type tape struct {
	replay   []uint64
	recorded []uint64
}

// New returns an empty computer. A nil cfg uses NewConfig.
func New(cfg *Config) *Computer {
	if cfg == nil {
		cfg = NewConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewConfig().Logger
	}
	return &Computer{
		cfg:      cfg,
		store:    NewStore(cfg.PruneEpsilon),
		recorder: &Recorder{},
		macros:   make(map[string]*MacroDef),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		log:      logger.WithPrefix("quantum"),
	}
}

func (qc *Computer) Config() *Config     { return qc.cfg }
func (qc *Computer) Store() *Store       { return qc.store }
func (qc *Computer) Recorder() *Recorder { return qc.recorder }

// TotalWidth is the number of allocated root qubits.
func (qc *Computer) TotalWidth() int { return qc.store.Width() }

// Norm returns Σ|amp|² over the whole store.
func (qc *Computer) Norm() float64 { return qc.store.Norm() }

// Reseed restarts the measurement PRNG.
func (qc *Computer) Reseed(seed int64) {
	qc.rng = rand.New(rand.NewSource(seed))
}

// Registers returns the live top-level registers in allocation order.
func (qc *Computer) Registers() []*Register {
	return slices.Clone(qc.registers)
}

// FindRegister looks up a live register by name.
func (qc *Computer) FindRegister(name string) (*Register, bool) {
	for _, r := range qc.registers {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// Root returns a view over every allocated qubit.
func (qc *Computer) Root() *Register {
	return &Register{qc: qc, id: -1, name: "root", width: qc.store.Width()}
}

// View returns an unnamed view over arbitrary root rows.
func (qc *Computer) View(q QubitRange) (*Register, error) {
	if q.Offset < 0 || q.Width < 1 || q.Offset+q.Width > qc.store.Width() {
		return nil, newError(InvalidRegisterWidth, "View", "rows outside store", q.Offset, q.Width, qc.store.Width())
	}
	return qc.Root().part(q.Offset, q.Width), nil
}

// NewRegister allocates width fresh qubits holding the classical value.
func (qc *Computer) NewRegister(name string, value uint64, width int) (*Register, error) {
	if width >= 1 && width < 64 && value >= uint64(1)<<uint(width) {
		return nil, newError(ValueOutOfRange, "NewRegister", "initial value does not fit", name, value, width)
	}
	return qc.allocate(name, map[uint64]complex128{value: 1}, width)
}

// NewRegisterFromDistribution allocates width fresh qubits in the given
// superposition. The distribution is normalized.
func (qc *Computer) NewRegisterFromDistribution(name string, dist map[uint64]complex128, width int) (*Register, error) {
	norm := 0.0
	for v, a := range dist {
		if width < 64 && v >= uint64(1)<<uint(width) {
			return nil, newError(ValueOutOfRange, "NewRegister", "basis state does not fit", name, v, width)
		}
		norm += abs2(a)
	}
	if norm == 0 {
		return nil, newError(ValueOutOfRange, "NewRegister", "distribution is empty", name)
	}
	scale := complex(1/math.Sqrt(norm), 0)
	normalized := make(map[uint64]complex128, len(dist))
	for v, a := range dist {
		if a != 0 {
			normalized[v] = a * scale
		}
	}
	return qc.allocate(name, normalized, width)
}

// scratchPrefix starts the names of registers allocated without one. No
// parameter or script can spell it, so scratch never shadows a user
// register.
const scratchPrefix = "$"

func (qc *Computer) allocate(name string, dist map[uint64]complex128, width int) (*Register, error) {
	if width < 1 || qc.store.Width()+width > MaxQubits {
		return nil, newError(InvalidRegisterWidth, "NewRegister", "cannot allocate qubits", name, width, qc.store.Width())
	}
	switch {
	case name == "":
		name = fmt.Sprintf("%s%d", scratchPrefix, qc.nextID)
	case strings.HasPrefix(name, scratchPrefix):
		return nil, newError(InvalidParameter, "NewRegister", "register names starting with "+scratchPrefix+" are reserved", name)
	}
	if _, dup := qc.FindRegister(name); dup {
		return nil, newError(InvalidParameter, "NewRegister", "register name already in use", name)
	}
	offset := qc.store.Extend(dist, width)
	r := &Register{qc: qc, id: qc.nextID, name: name, offset: offset, width: width}
	qc.nextID++
	qc.registers = append(qc.registers, r)
	qc.log.Debug("allocate", "register", name, "offset", offset, "width", width)
	return r, nil
}

// DeleteRegister frees a top-level register. Its qubits must be a product
// factor of the store; registers above it move down by its width.
func (qc *Computer) DeleteRegister(r *Register) error {
	if r == nil || r.parent != nil || r.freed || r.qc != qc {
		return newError(InvalidParameter, "DeleteRegister", "not a live top-level register", r)
	}
	offset, width := r.offset, r.width
	if !qc.store.Remove(offset, width, qc.cfg.Epsilon) {
		return newError(EntangledRegisterFree, "DeleteRegister", "register is entangled with the store", r.name)
	}
	r.freed = true
	qc.registers = slices.DeleteFunc(qc.registers, func(o *Register) bool { return o == r })
	for _, o := range qc.registers {
		if o.offset > offset {
			o.incrementOffset(-width)
		}
	}
	qc.log.Debug("free", "register", r.name, "offset", offset, "width", width)
	return nil
}

func (r *Register) incrementOffset(delta int) { r.offset += delta }

// free deletes scratch registers in reverse allocation order. The first
// error is kept.
func (qc *Computer) free(err *error, regs ...*Register) {
	for i := len(regs) - 1; i >= 0; i-- {
		if regs[i] == nil {
			continue
		}
		if ferr := qc.DeleteRegister(regs[i]); ferr != nil && *err == nil {
			*err = ferr
		}
	}
}

// Apply dispatches a gate. Primitives act on the store directly; macro gates
// re-invoke the named macro with their parameters. While the recorder is
// grouping, a top-level primitive is recorded instead of applied.
func (qc *Computer) Apply(g Gate) error {
	switch g := g.(type) {
	case *Primitive:
		if qc.recorder.intercept(g.Name(), nil, g) {
			return nil
		}
		return qc.applyPrimitive(g)
	case *Parametric:
		return qc.Invoke(g.Function, g.Params)
	case *Composite:
		return qc.applyComposite(g)
	}
	return newError(InvalidParameter, "Apply", "unknown gate type", fmt.Sprintf("%T", g))
}

func (qc *Computer) checkRows(p *Primitive) error {
	rows := p.rows()
	for i, row := range rows {
		if row < 0 || row >= qc.store.Width() {
			return newError(InvalidRegisterWidth, p.Name(), "row outside store", row, qc.store.Width())
		}
		if slices.Contains(rows[:i], row) {
			return newError(InvalidGateTopology, p.Name(), "gate uses a row twice", row)
		}
	}
	return nil
}

func (qc *Computer) applyPrimitive(p *Primitive) error {
	if err := qc.checkRows(p); err != nil {
		return err
	}
	var mask uint64
	for _, c := range p.Controls {
		mask |= uint64(1) << uint(c)
	}

	switch p.Kind {
	case KindMeasure:
		_, err := qc.measure(p.Target, 1)
		return err
	case KindReset:
		v, err := qc.measure(p.Target, 1)
		if err == nil && v == 1 {
			qc.store.Apply1(p.Target, PauliX)
		}
		return err
	case KindSwap:
		a, b := uint64(1)<<uint(p.Target), uint64(1)<<uint(p.Target2)
		qc.store.ApplyControlled(mask|a, p.Target2, PauliX)
		qc.store.ApplyControlled(mask|b, p.Target, PauliX)
		qc.store.ApplyControlled(mask|a, p.Target2, PauliX)
		return nil
	case KindUnitary:
		if err := ValidateMatrix(p.Matrix, qc.cfg.Epsilon); err != nil {
			return err
		}
	}
	qc.store.ApplyControlled(mask, p.Target, p.Operator())
	return nil
}

// run applies a primitive sequence built by a macro body.
func (qc *Computer) run(seq sequence) error {
	for _, p := range seq {
		if err := qc.applyPrimitive(p); err != nil {
			return err
		}
	}
	return nil
}

// measure samples the value of the rows [offset, offset+width), or takes it
// from the replay tape, and collapses the store onto it.
func (qc *Computer) measure(offset, width int) (uint64, error) {
	var v uint64
	if len(qc.tape.replay) > 0 {
		v = qc.tape.replay[0]
		qc.tape.replay = qc.tape.replay[1:]
	} else {
		v = qc.sample(qc.store.Probabilities(offset, width))
	}
	if p := qc.store.Collapse(offset, width, v); p <= qc.cfg.PruneEpsilon*qc.cfg.PruneEpsilon {
		return 0, newError(ValueOutOfRange, "Measure", "outcome has zero probability", v)
	}
	qc.tape.recorded = append(qc.tape.recorded, v)
	qc.log.Debug("measure", "offset", offset, "width", width, "value", v)
	return v, nil
}

func (qc *Computer) sample(probs map[uint64]float64) uint64 {
	values := make([]uint64, 0, len(probs))
	total := 0.0
	for v, p := range probs {
		values = append(values, v)
		total += p
	}
	slices.Sort(values)

	r := qc.rng.Float64() * total
	cumulative := 0.0
	for _, v := range values {
		cumulative += probs[v]
		if r < cumulative {
			return v
		}
	}
	return values[len(values)-1]
}

// BeginTape starts recording measurement outcomes. Outcomes in replay are
// used, in order, instead of sampling.
func (qc *Computer) BeginTape(replay []uint64) {
	qc.tape = tape{replay: slices.Clone(replay)}
}

// EndTape stops recording and returns every outcome since BeginTape.
func (qc *Computer) EndTape() []uint64 {
	rec := qc.tape.recorded
	qc.tape = tape{}
	return rec
}

// Reset frees every register and empties the store.
func (qc *Computer) Reset() {
	for _, r := range qc.registers {
		r.freed = true
	}
	qc.registers = nil
	qc.store = NewStore(qc.cfg.PruneEpsilon)
	qc.tape = tape{}
	qc.log.Debug("reset")
}

// Invoke runs a registered macro with arguments resolved against the live
// register table.
func (qc *Computer) Invoke(name string, params []Param) error {
	def, ok := qc.lookupMacro(name)
	if !ok {
		return newError(InvalidParameter, name, "unknown macro")
	}
	args, err := qc.resolve(def, params)
	if err != nil {
		return err
	}
	return def.Body(qc, args)
}

func (qc *Computer) lookupMacro(name string) (*MacroDef, bool) {
	if def, ok := qc.macros[name]; ok {
		return def, true
	}
	return LookupMacro(name)
}

// ResolveParam finds the register a RegisterRef or RegisterPartRef names.
func (qc *Computer) ResolveParam(p Param) (*Register, error) {
	switch p := p.(type) {
	case RegisterRef:
		if p.Name == "root" {
			return qc.Root(), nil
		}
		r, ok := qc.FindRegister(p.Name)
		if !ok {
			return nil, newError(InvalidParameter, "resolve", "unknown register", p.Name)
		}
		return r, nil
	case RegisterPartRef:
		r, ok := qc.FindRegister(p.Name)
		if !ok && p.Name == "root" {
			r, ok = qc.Root(), true
		}
		if !ok {
			return nil, newError(InvalidParameter, "resolve", "unknown register", p.Name)
		}
		return r.Slice(p.Offset, p.Width)
	}
	return nil, newError(InvalidParameter, "resolve", "not a register argument", p)
}

func (qc *Computer) resolve(def *MacroDef, params []Param) ([]Arg, error) {
	if err := def.Check(params); err != nil {
		return nil, err
	}
	args := make([]Arg, len(params))
	for i, p := range params {
		spec := def.Params[min(i, len(def.Params)-1)]
		if spec.Kind == ParamNumber {
			args[i].Number = p.(Number)
			continue
		}
		r, err := qc.ResolveParam(p)
		if err != nil {
			return nil, fmt.Errorf("%s argument %s: %w", def.Name, spec.Name, err)
		}
		args[i].Register = r
	}
	return args, nil
}

// DefineComposite registers a named sub-circuit on this computer. Its rows
// are relative to the first qubit of the register it is applied to.
func (qc *Computer) DefineComposite(name string, width int, steps [][]Gate) error {
	if _, exists := qc.lookupMacro(name); exists {
		return newError(InvalidParameter, "DefineComposite", "macro already defined", name)
	}
	for _, step := range steps {
		for _, g := range step {
			if g.Begin() < 0 || g.End() >= width {
				return newError(InvalidRegisterWidth, "DefineComposite", "gate outside composite", name, g.Name())
			}
		}
	}
	qc.macros[name] = &MacroDef{
		Name:   name,
		Doc:    "user defined composite",
		Params: []ParamSpec{{Name: "target", Kind: ParamRegister}},
		Body: func(qc *Computer, args []Arg) error {
			target := args[0].Register
			if target.Width() != width {
				return newError(InvalidRegisterWidth, name, "composite width mismatch", target.Width(), width)
			}
			return qc.macro(name, []Param{target.Ref()}, func() error {
				for _, step := range steps {
					for _, g := range step {
						if err := qc.Apply(g.Copy(target.OffsetToRoot())); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	return nil
}

func (qc *Computer) applyComposite(g *Composite) error {
	if _, ok := qc.lookupMacro(g.Label); !ok {
		if err := qc.DefineComposite(g.Label, g.Target.Width, g.Steps); err != nil {
			return err
		}
	}
	target, err := qc.View(g.Target)
	if err != nil {
		return err
	}
	def, _ := qc.lookupMacro(g.Label)
	return def.Body(qc, []Arg{{Register: target}})
}

// macro runs body as one atomic macro step. While the recorder is grouping,
// the outermost call is recorded and nothing executes. Macros called from
// inside an executing body run as part of it.
func (qc *Computer) macro(name string, params []Param, body func() error) error {
	if qc.recorder.intercept(name, params, nil) {
		return nil
	}
	qc.recorder.depth++
	defer func() { qc.recorder.depth-- }()
	if qc.recorder.depth == 1 {
		qc.log.Debug("macro", "name", name, "args", FormatParams(params))
	}
	return body()
}
