package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"qtermstep/circuit"
	"qtermstep/quantum"
)

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusCircuit focus = iota
	focusScript
	focusMenu
)

// keyMap holds the stepper bindings shown in the controls panel.
type keyMap struct {
	Next     key.Binding
	Back     key.Binding
	Run      key.Binding
	Start    key.Binding
	Up       key.Binding
	Down     key.Binding
	Watch    key.Binding
	Menu     key.Binding
	Resample key.Binding
	Reload   key.Binding
	Focus    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Next:     key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "step")),
		Back:     key.NewBinding(key.WithKeys("left", "h", "b"), key.WithHelp("←/b", "back")),
		Run:      key.NewBinding(key.WithKeys("r", "end"), key.WithHelp("r", "run to end")),
		Start:    key.NewBinding(key.WithKeys("0", "home"), key.WithHelp("0", "start")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "row up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "row down")),
		Watch:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "watch row's register")),
		Menu:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "watch/insert menu")),
		Resample: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "resample")),
		Reload:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("^R", "reload script")),
		Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "edit script")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Back, k.Run, k.Start, k.Watch, k.Menu, k.Focus, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Back, k.Run, k.Start},
		{k.Up, k.Down, k.Watch, k.Menu},
		{k.Resample, k.Reload, k.Focus, k.Quit},
	}
}

// Model represents the TUI application state.
type Model struct {
	ev        *circuit.Evaluator // drives the computer through the loaded circuit
	log       *log.Logger
	cursorRow int
	width     int
	height    int
	script    textarea.Model
	stateView viewport.Model
	help      help.Model
	keys      keyMap
	focus     focus
	// lastScript is the editor text the evaluator was loaded from.
	lastScript string
	parseErr   error
	statusMsg  string // transient status message (e.g. step errors)

	// Menu state
	menuCat  int
	menuItem int
}

func newModel(ev *circuit.Evaluator, src string, logger *log.Logger) Model {
	ta := textarea.New()
	ta.Placeholder = "reg a[2]\nstep h a[0]"
	ta.SetWidth(40)
	ta.SetHeight(20)
	ta.ShowLineNumbers = true
	ta.KeyMap.InsertNewline.SetEnabled(true)
	ta.SetValue(src)

	if logger == nil {
		logger = log.Default()
	}
	m := Model{
		ev:        ev,
		log:       logger.WithPrefix("tui"),
		script:    ta,
		stateView: viewport.New(60, 10),
		help:      help.New(),
		keys:      newKeyMap(),
		focus:     focusCircuit,
	}
	m.load()
	return m
}

// load parses the editor text and re-initializes the evaluator from it.
// The watch selection survives when the register still exists.
func (m *Model) load() {
	src := m.script.Value()
	c, err := ParseScript(src)
	m.parseErr = err
	if err != nil {
		m.statusMsg = fmt.Sprintf("Script error: %v", err)
		return
	}
	watched := m.ev.Watched()
	if err := m.ev.InitFromModel(c); err != nil {
		m.statusMsg = fmt.Sprintf("Load error: %v", err)
		m.log.Warn("load failed", "err", err)
		return
	}
	if err := m.ev.Watch(watched); err != nil {
		m.ev.Watch(quantum.RegisterRef{Name: "root"})
	}
	m.lastScript = src
	m.cursorRow = min(m.cursorRow, max(c.Width()-1, 0))
	m.statusMsg = fmt.Sprintf("Loaded %d registers, %d steps", len(c.Registers), len(c.Steps))
	m.refreshState()
}

// setWatch watches a register named on the command line.
func (m *Model) setWatch(name string) {
	if err := watchByName(m.ev, name); err != nil {
		m.statusMsg = fmt.Sprintf("Watch error: %v", err)
		return
	}
	m.refreshState()
}

// refreshState re-renders the watched amplitudes into the state viewport.
func (m *Model) refreshState() {
	m.stateView.SetContent(styledState(m.ev.Output()))
}

// step runs one evaluator transition and reports the outcome in the status
// line.
func (m *Model) step(name string, fn func() (bool, error)) {
	changed, err := fn()
	switch {
	case err != nil:
		m.statusMsg = fmt.Sprintf("%s error: %v", name, err)
	case !changed:
		m.statusMsg = "watched state unchanged"
	}
	m.refreshState()
}

// watchRow watches the register that holds the cursor row.
func (m *Model) watchRow() {
	c := m.ev.Circuit()
	if c == nil {
		return
	}
	d, ok := registerAt(c, m.cursorRow)
	if !ok {
		return
	}
	if err := m.ev.Watch(quantum.RegisterRef{Name: d.Name}); err != nil {
		m.statusMsg = fmt.Sprintf("Watch error: %v", err)
		return
	}
	m.statusMsg = "Watching " + d.Name
	m.refreshState()
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		scriptW := max(msg.Width/3-6, 20)
		m.script.SetWidth(scriptW)
		ctrlH := 3
		mainH := msg.Height - ctrlH - 2
		m.script.SetHeight(max(mainH-8, 4))
		m.stateView.Width = max(msg.Width-msg.Width/3-8, 20)
		m.stateView.Height = max(mainH/3-3, 3)
		m.help.Width = msg.Width - 4

	case tea.KeyMsg:
		keyStr := msg.String()
		if keyStr == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusCircuit:
			m.statusMsg = ""
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, m.keys.Next):
				m.step("Step", m.ev.StepForward)
			case key.Matches(msg, m.keys.Back):
				m.step("Back", m.ev.StepBack)
			case key.Matches(msg, m.keys.Run):
				m.step("Run", m.ev.RunToEnd)
			case key.Matches(msg, m.keys.Start):
				m.step("Rewind", func() (bool, error) { return m.ev.GoTo(0) })
			case key.Matches(msg, m.keys.Up):
				if m.cursorRow > 0 {
					m.cursorRow--
				}
			case key.Matches(msg, m.keys.Down):
				if c := m.ev.Circuit(); c != nil && m.cursorRow < c.Width()-1 {
					m.cursorRow++
				}
			case key.Matches(msg, m.keys.Watch):
				m.watchRow()
			case key.Matches(msg, m.keys.Resample):
				m.ev.Resample()
				m.statusMsg = "Future measurements will be resampled"
			case key.Matches(msg, m.keys.Reload):
				m.load()
			case key.Matches(msg, m.keys.Menu):
				m.focus = focusMenu
				m.menuCat = 0
				m.menuItem = 0
			case key.Matches(msg, m.keys.Focus):
				m.focus = focusScript
				m.script.Focus()
			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll
			default:
				var cmd tea.Cmd
				m.stateView, cmd = m.stateView.Update(msg)
				cmds = append(cmds, cmd)
			}

		case focusMenu:
			cats := m.menuCategories()
			switch keyStr {
			case "esc":
				m.focus = focusCircuit
			case "up", "k":
				if m.menuItem > 0 {
					m.menuItem--
				}
			case "down", "j":
				if m.menuItem < len(cats[m.menuCat].items)-1 {
					m.menuItem++
				}
			case "left", "h":
				if m.menuCat > 0 {
					m.menuCat--
					m.menuItem = 0
				}
			case "right", "l":
				if m.menuCat < len(cats)-1 {
					m.menuCat++
					m.menuItem = 0
				}
			case "enter":
				if items := cats[m.menuCat].items; m.menuItem < len(items) {
					m.selectMenuItem(items[m.menuItem])
				}
			}

		case focusScript:
			switch keyStr {
			case "tab", "esc":
				m.focus = focusCircuit
				m.script.Blur()
				if m.script.Value() != m.lastScript {
					m.load()
				}
			default:
				var cmd tea.Cmd
				m.script, cmd = m.script.Update(msg)
				cmds = append(cmds, cmd)
				_, m.parseErr = ParseScript(m.script.Value())
			}
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	scriptWidth := m.width / 3
	leftWidth := m.width - scriptWidth - 4
	controlsHeight := 3
	if m.help.ShowAll {
		controlsHeight = 5
	}
	mainHeight := max(m.height-controlsHeight-2, 9)
	stateHeight := max(mainHeight/3, 3)
	circuitHeight := max(mainHeight-stateHeight-2, 6)

	circuitPanel := m.renderCircuitPanel(leftWidth, circuitHeight)
	statePanel := m.renderStatePanel(leftWidth, stateHeight)
	scriptPanel := m.renderScriptPanel(scriptWidth, mainHeight)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	left := lipgloss.JoinVertical(lipgloss.Left, circuitPanel, statePanel)
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, left, scriptPanel)
	frame := lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)

	// Render menu overlay when in menu mode
	if m.focus == focusMenu {
		frame = overlayAt(frame, m.renderMenu(), 2, 2)
	}

	return frame
}
