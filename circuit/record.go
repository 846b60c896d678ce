package circuit

import (
	"qtermstep/quantum"
)

// Record runs fn against qc with the recorder grouping and returns one gate
// per outermost call: recorded primitives as they are, macro calls as
// Parametric gates spanning the rows of their register arguments. The store
// is not touched.
func Record(qc *quantum.Computer, fn func(qc *quantum.Computer) error) ([]quantum.Gate, error) {
	calls, err := qc.Capture(fn)
	if err != nil {
		return nil, err
	}
	gates := make([]quantum.Gate, 0, len(calls))
	for _, c := range calls {
		if c.Primitive != nil {
			gates = append(gates, c.Primitive)
			continue
		}
		rows, err := span(qc, c.Params)
		if err != nil {
			return nil, err
		}
		gates = append(gates, &quantum.Parametric{Function: c.Name, Params: c.Params, Rows: rows})
	}
	return gates, nil
}

// span is the smallest row range covering every register argument.
func span(qc *quantum.Computer, params []quantum.Param) (quantum.QubitRange, error) {
	lo, hi := -1, -1
	for _, p := range params {
		if _, isNumber := p.(quantum.Number); isNumber {
			continue
		}
		r, err := qc.ResolveParam(p)
		if err != nil {
			return quantum.QubitRange{}, err
		}
		q := r.Range()
		if lo < 0 || q.Offset < lo {
			lo = q.Offset
		}
		if q.End() > hi {
			hi = q.End()
		}
	}
	if lo < 0 {
		return quantum.QubitRange{}, nil
	}
	return quantum.QubitRange{Offset: lo, Width: hi - lo + 1}, nil
}
