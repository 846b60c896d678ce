package quantum

import "slices"

// Call is one recorded macro invocation. Primitive is set when a bare
// primitive gate was recorded instead of a macro.
type Call struct {
	Name      string
	Params    []Param
	Primitive *Primitive
}

// Recorder groups macro calls into atomic steps. While grouping, every
// outermost macro call is appended to the pending list instead of being
// executed; outside grouping macros execute and nothing is recorded.
type Recorder struct {
	grouping bool
	depth    int
	pending  []Call
}

// Grouping reports whether calls are currently being recorded.
func (r *Recorder) Grouping() bool { return r.grouping }

// Pending returns the calls recorded so far.
func (r *Recorder) Pending() []Call { return slices.Clone(r.pending) }

// Begin turns grouping on and clears the pending list.
func (r *Recorder) Begin() {
	r.grouping = true
	r.pending = nil
}

// End turns grouping off and returns the recorded calls.
func (r *Recorder) End() []Call {
	calls := r.pending
	r.grouping = false
	r.pending = nil
	return calls
}

// intercept records the call and reports true when it must not execute.
func (r *Recorder) intercept(name string, params []Param, p *Primitive) bool {
	if !r.grouping || r.depth > 0 {
		return false
	}
	r.pending = append(r.pending, Call{Name: name, Params: slices.Clone(params), Primitive: p})
	return true
}

// Capture runs fn with grouping on and returns what it recorded. Nothing fn
// calls on qc touches the store.
func (qc *Computer) Capture(fn func(qc *Computer) error) ([]Call, error) {
	qc.recorder.Begin()
	err := fn(qc)
	calls := qc.recorder.End()
	return calls, err
}
