package circuit

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"

	"qtermstep/quantum"
)

func h(row int) quantum.Gate { return &quantum.Primitive{Kind: quantum.KindHadamard, Target: row} }

func cx(control, target int) quantum.Gate {
	return &quantum.Primitive{Kind: quantum.KindSigmaX, Target: target, Controls: []int{control}}
}

func measure(row int) quantum.Gate { return &quantum.Primitive{Kind: quantum.KindMeasure, Target: row} }

// sameStore compares two amplitude maps within 1e-9.
func sameStore(a, b map[uint64]complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for k, x := range a {
		y, ok := b[k]
		if !ok || cmplx.Abs(x-y) > 1e-9 {
			return false
		}
	}
	return true
}

func bellCircuit() *Circuit {
	c := &Circuit{Registers: []RegisterDecl{{Name: "a", Width: 2}, {Name: "b", Width: 3, Value: 1}}}
	c.AddStep(h(0), h(2))
	c.AddStep(cx(0, 1), h(3))
	c.AddStep(measure(1), measure(3))
	c.AddStep(&quantum.Parametric{Function: "QFT", Params: []quantum.Param{quantum.RegisterRef{Name: "b"}}, Rows: quantum.QubitRange{Offset: 2, Width: 3}})
	c.AddStep(h(0))
	return c
}

func TestEvaluator(t *testing.T) {
	Convey("Given an evaluator with a loaded circuit", t, func() {
		qc := quantum.New(nil)
		ev := NewEvaluator(qc, nil)
		c := bellCircuit()
		So(ev.InitFromModel(c), ShouldBeNil)

		Convey("Then it starts at position 0", func() {
			So(ev.Position(), ShouldEqual, 0)
			So(ev.StepCount(), ShouldEqual, 5)
			So(ev.Completed(), ShouldBeFalse)
			So(ev.CanStepBack(0), ShouldBeFalse)
			So(qc.TotalWidth(), ShouldEqual, 5)
		})

		Convey("When stepping forward", func() {
			changed, err := ev.StepForward()

			Convey("Then the position advances and the state changes", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(ev.Position(), ShouldEqual, 1)
				So(ev.CanStepBack(0), ShouldBeTrue)
			})
		})

		Convey("When running to the end", func() {
			changed, err := ev.RunToEnd()

			Convey("Then the evaluator is completed", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(ev.Completed(), ShouldBeTrue)
			})

			Convey("Then another forward step fails without moving", func() {
				_, err := ev.StepForward()
				So(errors.Is(err, quantum.ErrValueOutOfRange), ShouldBeTrue)
				So(ev.Position(), ShouldEqual, 5)
			})
		})

		Convey("When stepping back over a measurement", func() {
			_, err := ev.GoTo(4)
			So(err, ShouldBeNil)
			reference := make([]map[uint64]complex128, 0)
			_, err = ev.GoTo(0)
			So(err, ShouldBeNil)
			for k := 0; k <= 4; k++ {
				_, err := ev.GoTo(k)
				So(err, ShouldBeNil)
				reference = append(reference, qc.Store().Snapshot())
			}

			Convey("Then every earlier position matches the forward trace", func() {
				for k := 3; k >= 0; k-- {
					_, err := ev.StepBack()
					So(err, ShouldBeNil)
					So(ev.Position(), ShouldEqual, k)
					ok := sameStore(qc.Store().Snapshot(), reference[k])
					if !ok {
						spew.Dump(k, qc.Store().Snapshot(), reference[k])
					}
					So(ok, ShouldBeTrue)
				}
			})

			Convey("Then stepping forward again reuses the recorded outcomes", func() {
				_, err := ev.GoTo(2)
				So(err, ShouldBeNil)
				for i := 0; i < 5; i++ {
					_, err := ev.StepForward()
					So(err, ShouldBeNil)
					So(sameStore(qc.Store().Snapshot(), reference[3]), ShouldBeTrue)
					_, err = ev.StepBack()
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When a full run is stepped back", func() {
			_, err := ev.RunToEnd()
			So(err, ShouldBeNil)

			Convey("Then each position matches a fresh evaluator run forward with the same seed", func() {
				for j := 4; j >= 0; j-- {
					_, err := ev.StepBack()
					So(err, ShouldBeNil)

					fresh := NewEvaluator(quantum.New(nil), nil)
					So(fresh.InitFromModel(bellCircuit()), ShouldBeNil)
					for range j {
						_, err := fresh.StepForward()
						So(err, ShouldBeNil)
					}
					So(fresh.Position(), ShouldEqual, ev.Position())
					ok := sameStore(qc.Store().Snapshot(), fresh.Computer().Store().Snapshot())
					if !ok {
						spew.Dump(j, qc.Store().Snapshot(), fresh.Computer().Store().Snapshot())
					}
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When stepping back from the start", func() {
			_, err := ev.StepBack()

			Convey("Then it fails and stays at 0", func() {
				So(errors.Is(err, quantum.ErrValueOutOfRange), ShouldBeTrue)
				So(ev.Position(), ShouldEqual, 0)
			})
		})

		Convey("When watching a single register", func() {
			So(ev.Watch(quantum.RegisterRef{Name: "b"}), ShouldBeNil)
			_, err := ev.StepForward()
			So(err, ShouldBeNil)
			changed, err := ev.StepForward()
			So(err, ShouldBeNil)

			Convey("Then Output reports that register", func() {
				So(changed, ShouldBeTrue)
				out := ev.Output()
				So(out, ShouldHaveLength, 4)
				for _, s := range out {
					So(s.Width, ShouldEqual, 3)
					So(s.Amplitude, ShouldNotBeNil)
				}
			})

			Convey("Then an unknown register cannot be watched", func() {
				So(ev.Watch(quantum.RegisterRef{Name: "zz"}), ShouldNotBeNil)
				So(ev.Watched(), ShouldResemble, quantum.Param(quantum.RegisterRef{Name: "b"}))
			})
		})
	})
}

func TestEvaluatorFailure(t *testing.T) {
	Convey("Given a circuit whose second step fails validation", t, func() {
		qc := quantum.New(nil)
		ev := NewEvaluator(qc, nil)
		c := &Circuit{Registers: []RegisterDecl{{Name: "a", Width: 2, Value: 3}, {Name: "b", Width: 3, Value: 1}}}
		c.AddStep(h(4))
		c.AddStep(&quantum.Parametric{
			Function: "AddModulo",
			Params:   []quantum.Param{quantum.RegisterRef{Name: "a"}, quantum.RegisterRef{Name: "b"}, quantum.Number{Value: 3}},
			Rows:     quantum.QubitRange{Offset: 0, Width: 5},
		})
		So(ev.InitFromModel(c), ShouldBeNil)
		_, err := ev.StepForward()
		So(err, ShouldBeNil)

		Convey("When the failing step runs", func() {
			before := qc.Store().Snapshot()
			changed, err := ev.StepForward()

			Convey("Then the error propagates and the position is kept", func() {
				So(changed, ShouldBeFalse)
				So(errors.Is(err, quantum.ErrValueOutOfRange), ShouldBeTrue)
				So(ev.Position(), ShouldEqual, 1)
				So(ev.Completed(), ShouldBeFalse)
				So(qc.Store().Snapshot(), ShouldResemble, before)
			})
		})
	})
}

func TestCircuitValidate(t *testing.T) {
	Convey("Given a circuit over five rows", t, func() {
		c := &Circuit{Registers: []RegisterDecl{{Name: "a", Width: 2}, {Name: "b", Width: 3}}}

		Convey("Then disjoint gates in a step are accepted", func() {
			c.AddStep(h(0), cx(2, 4))
			So(c.Validate(), ShouldBeNil)
		})

		Convey("Then overlapping gates in a step are rejected", func() {
			c.AddStep(cx(0, 3), h(1))
			So(errors.Is(c.Validate(), quantum.ErrInvalidGateTopology), ShouldBeTrue)
		})

		Convey("Then gates outside the circuit are rejected", func() {
			c.AddStep(h(5))
			So(errors.Is(c.Validate(), quantum.ErrInvalidRegisterWidth), ShouldBeTrue)
		})

		Convey("Then duplicate register names are rejected", func() {
			c.Registers = append(c.Registers, RegisterDecl{Name: "a", Width: 1})
			So(errors.Is(c.Validate(), quantum.ErrInvalidParameter), ShouldBeTrue)
		})

		Convey("When rows are inserted below existing gates", func() {
			c.AddStep(h(1), cx(2, 4))
			c.Registers = append([]RegisterDecl{{Name: "pad", Width: 2}}, c.Registers...)
			c.InsertRows(0, 2)

			Convey("Then every gate moves up", func() {
				So(c.Steps[0][0].Begin(), ShouldEqual, 3)
				So(c.Steps[0][1].Begin(), ShouldEqual, 4)
				So(c.Steps[0][1].End(), ShouldEqual, 6)
				So(c.Validate(), ShouldBeNil)
				off, ok := c.Offset("b")
				So(ok, ShouldBeTrue)
				So(off, ShouldEqual, 4)
			})
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given a computer with registers", t, func() {
		qc := quantum.New(nil)
		a, err := qc.NewRegister("a", 1, 2)
		So(err, ShouldBeNil)
		b, err := qc.NewRegister("b", 1, 3)
		So(err, ShouldBeNil)
		before := qc.Store().Snapshot()

		Convey("When macro and primitive calls are recorded", func() {
			gates, err := Record(qc, func(qc *quantum.Computer) error {
				if err := qc.AddModulo(a, b, 3); err != nil {
					return err
				}
				return b.Hadamard(2)
			})

			Convey("Then each call becomes one gate and nothing runs", func() {
				So(err, ShouldBeNil)
				So(gates, ShouldHaveLength, 2)
				p, ok := gates[0].(*quantum.Parametric)
				So(ok, ShouldBeTrue)
				So(p.Function, ShouldEqual, "AddModulo")
				So(p.Rows, ShouldResemble, quantum.QubitRange{Offset: 0, Width: 5})
				So(gates[1].Begin(), ShouldEqual, 4)
				So(qc.Store().Snapshot(), ShouldResemble, before)
			})

			Convey("Then the gates form a runnable circuit", func() {
				c := &Circuit{Registers: []RegisterDecl{{Name: "a", Width: 2, Value: 1}, {Name: "b", Width: 3, Value: 1}}}
				c.AddStep(gates[0])
				c.AddStep(gates[1])
				ev := NewEvaluator(quantum.New(nil), nil)
				So(ev.InitFromModel(c), ShouldBeNil)
				_, err := ev.RunToEnd()
				So(err, ShouldBeNil)
				bReg, ok := ev.Computer().FindRegister("b")
				So(ok, ShouldBeTrue)
				So(bReg.GetProbabilities(), ShouldHaveLength, 2)
			})
		})
	})
}
