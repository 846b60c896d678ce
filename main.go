package main

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/itchyny/timefmt-go"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"qtermstep/circuit"
	"qtermstep/quantum"
)

const appName = "qtermstep"

// sampleScript is loaded when no script file is given.
const sampleScript = `# Bell pair, then a modular addition on a superposed register
reg q[2]
reg a[2]
reg b[3] = 1
step h q[0]; h a[0]
step cx q[0], q[1]
step AddModulo(a, b, 3)
step QFT(b)
step measure q
`

type options struct {
	configPath string
	seed       int64
	logLevel   string
	logFile    string
	batch      bool
	repl       bool
	watch      string
}

func main() {
	var opts options
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	fs.Int64VarP(&opts.seed, "seed", "s", 1, "measurement PRNG seed")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	fs.BoolVarP(&opts.batch, "batch", "b", false, "run the script to the end and print the state")
	fs.BoolVarP(&opts.repl, "repl", "r", false, "step through the script from a line prompt")
	fs.StringVarP(&opts.watch, "watch", "w", "root", "register to report")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [script]\n\n", appName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	fc, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	if !fs.Changed("log-level") && fc.LogLevel != "" {
		opts.logLevel = fc.LogLevel
	}
	if !fs.Changed("log-file") && fc.LogFile != "" {
		opts.logFile = fc.LogFile
	}

	src := sampleScript
	if fs.NArg() > 0 {
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			os.Exit(1)
		}
		src = string(data)
	}

	interactive := !opts.batch && isatty.IsTerminal(os.Stdout.Fd())
	logger, closeLog, err := newLogger(opts, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	defer closeLog()

	cfg := quantum.NewConfig()
	fc.apply(cfg)
	if fs.Changed("seed") {
		cfg.Seed = opts.seed
	}
	cfg.Logger = logger.WithPrefix("quantum")

	qc := quantum.New(cfg)
	ev := circuit.NewEvaluator(qc, logger)

	switch {
	case opts.repl:
		err = runREPL(ev, src, opts.watch, os.Stdout)
	case !interactive:
		stamp := ""
		if fc.TimeFormat != "" {
			stamp = timefmt.Format(time.Now(), fc.TimeFormat)
		}
		err = runBatch(ev, src, opts.watch, stamp, os.Stdout)
	default:
		m := newModel(ev, src, logger)
		m.setWatch(opts.watch)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	}
	if err != nil {
		logger.Error("exiting", "err", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger logs to the configured file, or to stderr unless the TUI owns
// the terminal.
func newLogger(opts options, interactive bool) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	case interactive && !opts.repl:
		w = io.Discard
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
	})
	return logger, closeFn, nil
}

// runBatch loads src, runs every step and prints the watched state. A
// non-empty stamp is printed as the first line.
func runBatch(ev *circuit.Evaluator, src, watch, stamp string, out io.Writer) error {
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
	if _, err := ev.RunToEnd(); err != nil {
		return err
	}
	if stamp != "" {
		fmt.Fprintln(out, stamp)
	}
	fmt.Fprintf(out, "%s after %d steps (norm %.6f)\n", watch, ev.Position(), ev.Computer().Norm())
	for _, row := range stateRows(ev.Output(), 24) {
		fmt.Fprintln(out, row)
	}
	return nil
}

// watchByName parses a register name or part ("b", "b[1,2]") and watches it.
func watchByName(ev *circuit.Evaluator, name string) error {
	p, err := quantum.ParseParam(name)
	if err != nil {
		return err
	}
	if _, isNumber := p.(quantum.Number); isNumber {
		return &quantum.Error{Kind: quantum.InvalidParameter, Op: "watch", Detail: "expected a register", Params: []any{name}}
	}
	return ev.Watch(p)
}
