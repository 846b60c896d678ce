package circuit

import (
	"fmt"
	"io"
	"math/cmplx"

	"github.com/charmbracelet/log"

	"qtermstep/quantum"
)

// Evaluator drives a Computer through the steps of a Circuit. Its position
// is the number of steps applied: 0 before the first step, len(Steps) once
// Completed. Measurement outcomes of every executed step are kept so that
// moving backwards replays the same timeline.
type Evaluator struct {
	qc      *quantum.Computer
	circuit *Circuit
	pos     int
	started bool
	// outcomes[k] holds the measurements sampled while running step k.
	outcomes [][]uint64
	watch    quantum.Param
	log      *log.Logger
}

// NewEvaluator returns an evaluator bound to qc. A nil logger discards
// output.
func NewEvaluator(qc *quantum.Computer, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = qc.Config().Logger
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Evaluator{
		qc:    qc,
		watch: quantum.RegisterRef{Name: "root"},
		log:   logger.WithPrefix("circuit"),
	}
}

func (e *Evaluator) Computer() *quantum.Computer { return e.qc }
func (e *Evaluator) Circuit() *Circuit           { return e.circuit }

// Position is the number of steps applied so far.
func (e *Evaluator) Position() int { return e.pos }

// Started reports whether InitFromModel has run.
func (e *Evaluator) Started() bool { return e.started }

// StepCount is the number of steps in the loaded circuit.
func (e *Evaluator) StepCount() int {
	if e.circuit == nil {
		return 0
	}
	return len(e.circuit.Steps)
}

// Completed reports whether every step has been applied.
func (e *Evaluator) Completed() bool {
	return e.started && e.pos == e.StepCount()
}

// CanStepBack reports whether position k is reachable by stepping back.
func (e *Evaluator) CanStepBack(k int) bool {
	return e.started && k >= 0 && k < e.pos
}

// InitFromModel validates c, frees everything on the computer, allocates
// the declared registers and rewinds to position 0. Recorded measurement
// outcomes are discarded.
func (e *Evaluator) InitFromModel(c *Circuit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e.circuit = c
	e.outcomes = nil
	if err := e.allocate(); err != nil {
		e.started = false
		return err
	}
	e.pos = 0
	e.started = true
	e.log.Info("circuit loaded", "registers", len(c.Registers), "steps", len(c.Steps), "qubits", c.Width())
	return nil
}

func (e *Evaluator) allocate() error {
	e.qc.Reset()
	for _, d := range e.circuit.Registers {
		var err error
		if len(d.Amplitudes) > 0 {
			_, err = e.qc.NewRegisterFromDistribution(d.Name, d.Amplitudes, d.Width)
		} else {
			_, err = e.qc.NewRegister(d.Name, d.Value, d.Width)
		}
		if err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

// Resample forgets the recorded measurement outcomes of the steps not yet
// applied, so running them again samples fresh values.
func (e *Evaluator) Resample() {
	if len(e.outcomes) > e.pos {
		e.outcomes = e.outcomes[:e.pos]
	}
}

// RunStep applies the step at the current position, or with reverse set
// restores the state before the previous step. It reports whether the
// watched amplitudes changed. On error the position is left unchanged; the
// store may hold the effects of the gates that ran before the failure.
func (e *Evaluator) RunStep(reverse bool) (bool, error) {
	if !e.started {
		return false, &quantum.Error{Kind: quantum.InvalidParameter, Op: "RunStep", Detail: "no circuit loaded"}
	}
	before := e.Output()
	if reverse {
		if !e.CanStepBack(e.pos - 1) {
			return false, &quantum.Error{Kind: quantum.ValueOutOfRange, Op: "RunStep", Detail: "already at the first step", Params: []any{e.pos}}
		}
		if err := e.replay(e.pos - 1); err != nil {
			return false, err
		}
	} else {
		if e.pos >= e.StepCount() {
			return false, &quantum.Error{Kind: quantum.ValueOutOfRange, Op: "RunStep", Detail: "circuit already completed", Params: []any{e.pos}}
		}
		if err := e.apply(e.pos); err != nil {
			return false, err
		}
		e.pos++
	}
	changed := outputChanged(before, e.Output(), e.qc.Config().Epsilon)
	e.log.Debug("step", "position", e.pos, "reverse", reverse, "changed", changed)
	return changed, nil
}

// StepForward applies the next step.
func (e *Evaluator) StepForward() (bool, error) { return e.RunStep(false) }

// StepBack restores the state before the last applied step.
func (e *Evaluator) StepBack() (bool, error) { return e.RunStep(true) }

// RunToEnd applies every remaining step and reports whether any of them
// changed the watched amplitudes.
func (e *Evaluator) RunToEnd() (bool, error) {
	changed := false
	for e.pos < e.StepCount() {
		c, err := e.RunStep(false)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// GoTo moves to position k, forwards by applying steps or backwards by
// replay.
func (e *Evaluator) GoTo(k int) (bool, error) {
	if !e.started {
		return false, &quantum.Error{Kind: quantum.InvalidParameter, Op: "GoTo", Detail: "no circuit loaded"}
	}
	if k < 0 || k > e.StepCount() {
		return false, &quantum.Error{Kind: quantum.ValueOutOfRange, Op: "GoTo", Detail: "position outside the circuit", Params: []any{k, e.StepCount()}}
	}
	if k < e.pos {
		before := e.Output()
		if err := e.replay(k); err != nil {
			return false, err
		}
		return outputChanged(before, e.Output(), e.qc.Config().Epsilon), nil
	}
	changed := false
	for e.pos < k {
		c, err := e.RunStep(false)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// apply runs step k, replaying its recorded measurement outcomes when the
// step has run before.
func (e *Evaluator) apply(k int) error {
	var replay []uint64
	if k < len(e.outcomes) {
		replay = e.outcomes[k]
	}
	e.qc.BeginTape(replay)
	for _, g := range e.circuit.Steps[k] {
		if err := e.qc.Apply(g); err != nil {
			e.qc.EndTape()
			e.log.Warn("step failed", "step", k, "gate", g.Name(), "err", err)
			return fmt.Errorf("step %d: %s: %w", k, g.Name(), err)
		}
	}
	rec := e.qc.EndTape()
	if k < len(e.outcomes) {
		e.outcomes[k] = rec
	} else {
		e.outcomes = append(e.outcomes, rec)
	}
	return nil
}

// replay rebuilds the state at position k from scratch.
func (e *Evaluator) replay(k int) error {
	pos := e.pos
	if err := e.allocate(); err != nil {
		return err
	}
	for i := 0; i < k; i++ {
		if err := e.apply(i); err != nil {
			// the original forward run succeeded, so this only happens
			// when the circuit was edited without InitFromModel
			e.pos = pos
			return err
		}
	}
	e.pos = k
	return nil
}

// Watch selects the register (or register part) whose amplitudes Output
// reports and RunStep compares. RegisterRef{Name: "root"} watches the
// whole store.
func (e *Evaluator) Watch(p quantum.Param) error {
	if _, err := e.qc.ResolveParam(p); err != nil {
		return err
	}
	e.watch = p
	return nil
}

// Watched returns the current watch selection.
func (e *Evaluator) Watched() quantum.Param { return e.watch }

// Output returns the basis states of the watched view. It is empty when the
// view cannot be resolved.
func (e *Evaluator) Output() []quantum.OutputState {
	r, err := e.qc.ResolveParam(e.watch)
	if err != nil || r.Width() == 0 {
		return nil
	}
	return r.GetAmplitudes()
}

func outputChanged(before, after []quantum.OutputState, eps float64) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		b, a := before[i], after[i]
		if b.Value != a.Value || b.Width != a.Width {
			return true
		}
		if d := b.Probability - a.Probability; d > eps || d < -eps {
			return true
		}
		if (b.Amplitude == nil) != (a.Amplitude == nil) {
			return true
		}
		if b.Amplitude != nil && cmplx.Abs(*b.Amplitude-*a.Amplitude) > eps {
			return true
		}
	}
	return false
}
