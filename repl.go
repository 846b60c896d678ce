package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"qtermstep/circuit"
	"qtermstep/quantum"
)

const replPrompt = "step> "

var replCommands = []string{"next", "back", "run", "goto", "start", "resample", "watch", "show", "steps", "macros", "period", "help", "quit"}

const replHelp = `Commands:
  next | n         apply the next step
  back | b         restore the state before the last step
  run              apply every remaining step
  goto K           move to position K
  start            rewind to position 0
  resample         forget recorded measurements of steps not yet applied
  watch REG        report REG (a name, a part like b[1,2], or root)
  show             print the watched state
  steps            list the steps
  macros           list the registered macros
  period N A       find the order of A mod N on a separate computer
  quit | q         exit`

// runREPL steps through src from a line prompt.
func runREPL(ev *circuit.Evaluator, src, watch string, out io.Writer) error {
	c, err := ParseScript(src)
	if err != nil {
		return err
	}
	if err := ev.InitFromModel(c); err != nil {
		return err
	}
	if err := watchByName(ev, watch); err != nil {
		return err
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var c []string
		for _, cmd := range replCommands {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				c = append(c, cmd)
			}
		}
		return c
	})

	fmt.Fprintf(out, "%d registers, %d steps. Type help for commands.\n", len(c.Registers), len(c.Steps))
	for {
		line, err := ln.Prompt(replPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if quit := replCommand(ev, line, out); quit {
			return nil
		}
	}
}

// replCommand executes one command line and reports whether to exit.
// Failures are printed, not returned.
func replCommand(ev *circuit.Evaluator, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var (
		changed bool
		err     error
		moved   = true
	)
	switch cmd {
	case "quit", "q", "exit":
		return true
	case "next", "n":
		changed, err = ev.StepForward()
	case "back", "b":
		changed, err = ev.StepBack()
	case "run":
		changed, err = ev.RunToEnd()
	case "start":
		changed, err = ev.GoTo(0)
	case "goto":
		if len(args) != 1 {
			err = fmt.Errorf("usage: goto K")
			break
		}
		k, perr := strconv.Atoi(args[0])
		if perr != nil {
			err = fmt.Errorf("goto: %w", perr)
			break
		}
		changed, err = ev.GoTo(k)
	case "resample":
		ev.Resample()
		fmt.Fprintln(out, "future measurements will be resampled")
		return false
	case "watch":
		if len(args) != 1 {
			err = fmt.Errorf("usage: watch REG")
			break
		}
		err = watchByName(ev, args[0])
		changed = true
	case "show":
		changed = true
	case "steps":
		moved = false
		for k, step := range ev.Circuit().Steps {
			marker := "  "
			if k == ev.Position() {
				marker = "▸ "
			}
			fmt.Fprintf(out, "%s%3d  %s\n", marker, k, stepLabel(step))
		}
		if ev.Completed() {
			fmt.Fprintln(out, "▸ end")
		}
	case "macros":
		moved = false
		for _, def := range quantum.Macros() {
			fmt.Fprintf(out, "  %-48s %s\n", def.Signature(), def.Doc)
		}
	case "period":
		moved = false
		var r uint64
		if r, err = findPeriod(ev.Computer().Config(), args); err == nil {
			fmt.Fprintf(out, "order of %s mod %s: %d\n", args[1], args[0], r)
		}
	case "help", "?":
		moved = false
		fmt.Fprintln(out, replHelp)
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}
	if !moved {
		return false
	}
	fmt.Fprintf(out, "position %d/%d\n", ev.Position(), ev.StepCount())
	if changed {
		fmt.Fprintf(out, "%s:\n", ev.Watched())
		for _, row := range stateRows(ev.Output(), 24) {
			fmt.Fprintln(out, row)
		}
	}
	return false
}

// findPeriod parses "N A" and runs order finding on a fresh computer, so the
// loaded circuit's store and measurement sequence are left alone.
func findPeriod(cfg *quantum.Config, args []string) (uint64, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("usage: period N A")
	}
	var nums [2]uint64
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("period: %w", err)
		}
		nums[i] = v
	}
	return quantum.New(cfg).FindPeriod(nums[0], nums[1])
}

// stepLabel lists the gates of a step on one line.
func stepLabel(step circuit.Step) string {
	parts := make([]string, len(step))
	for i, g := range step {
		parts[i] = fmt.Sprint(g)
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, "; ")
}
