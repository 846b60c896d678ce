package main

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"qtermstep/circuit"
	"qtermstep/quantum"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return runewidth.Truncate(s, width, "")
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}

// primitiveSymbol is the short label drawn inside a primitive's box.
func primitiveSymbol(p *quantum.Primitive) string {
	switch p.Kind {
	case quantum.KindHadamard:
		return "H"
	case quantum.KindSigmaX:
		return "X"
	case quantum.KindSigmaY:
		return "Y"
	case quantum.KindSigmaZ:
		return "Z"
	case quantum.KindSqrtX:
		return "√X"
	case quantum.KindPhaseKick:
		switch p.Angle {
		case math.Pi / 2:
			return "S"
		case -math.Pi / 2:
			return "S†"
		case math.Pi / 4:
			return "T"
		case -math.Pi / 4:
			return "T†"
		}
		return "P"
	case quantum.KindPhaseScale:
		return "PS"
	case quantum.KindCPhaseShift:
		return fmt.Sprintf("R%d", int(p.Angle))
	case quantum.KindInverseCPhaseShift:
		return fmt.Sprintf("R†%d", int(p.Angle))
	case quantum.KindRotateX:
		return "RX"
	case quantum.KindRotateY:
		return "RY"
	case quantum.KindRotateZ:
		return "RZ"
	case quantum.KindUnitary:
		return "U"
	case quantum.KindMeasure:
		return "M"
	case quantum.KindReset:
		return "|0⟩"
	}
	return p.Kind.String()
}

// ──────────────────────────── Cell layout ────────────────────────────

type cellRole int

const (
	roleWire   cellRole = iota
	roleBox             // single-row gate box
	roleDot             // control dot, or the target of a controlled Z
	roleTarget          // ⊕ or ×
	rolePass            // vertical connector crossing this wire
	roleSpan            // one row of a multi-row macro box
)

// cellInfo is what one step draws on one row.
type cellInfo struct {
	role      cellRole
	label     string
	measure   bool
	first     bool // roleSpan: top row of the box
	last      bool // roleSpan: bottom row of the box
	vertAbove bool
	vertBelow bool
}

// cellAt finds the gate of step covering row and describes how to draw it.
func cellAt(step circuit.Step, row int) cellInfo {
	for _, g := range step {
		if row < g.Begin() || row > g.End() {
			continue
		}
		p, ok := g.(*quantum.Primitive)
		if !ok {
			info := cellInfo{role: roleSpan, first: row == g.Begin(), last: row == g.End()}
			if info.first {
				info.label = g.Name()
			}
			return info
		}

		info := cellInfo{vertAbove: row > p.Begin(), vertBelow: row < p.End()}
		switch {
		case p.Kind == quantum.KindSwap && (row == p.Target || row == p.Target2):
			info.role, info.label = roleTarget, "×"
		case slices.Contains(p.Controls, row):
			info.role, info.label = roleDot, "●"
		case row == p.Target && len(p.Controls) > 0 && p.Kind == quantum.KindSigmaX:
			info.role, info.label = roleTarget, "⊕"
		case row == p.Target && len(p.Controls) > 0 && p.Kind == quantum.KindSigmaZ:
			info.role, info.label = roleDot, "●"
		case row == p.Target:
			info.role, info.label = roleBox, primitiveSymbol(p)
			info.measure = p.Kind == quantum.KindMeasure || p.Kind == quantum.KindReset
		default:
			info.role = rolePass
		}
		return info
	}
	return cellInfo{role: roleWire}
}

// columnState places a step relative to the evaluator position.
type columnState int

const (
	colApplied columnState = iota
	colNext
	colPending
)

// renderCell returns 3 lines (top, mid, bot) for a single cell.
// Each line is exactly cellW (11) visual characters wide.
func renderCell(info cellInfo, col columnState, cursor bool) (top, mid, bot string) {
	st := gateStyle
	switch {
	case col == colNext:
		st = activeGateStyle
	case col == colPending:
		st = dimStyle
	case info.measure:
		st = measureStyle
	}

	// ── Cursor cell ──
	if cursor {
		innerW := cellW - 2
		dashL := (innerW - 1) / 2
		dashR := innerW - dashL - 1
		var inner string
		switch info.role {
		case roleWire:
			inner = strings.Repeat("─", innerW)
		case rolePass:
			inner = strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR)
		case roleDot, roleTarget:
			inner = strings.Repeat("─", dashL) + st.Render(info.label) + strings.Repeat("─", dashR)
		default:
			inner = "─┤" + st.Render(padCenter(info.label, gateNameW)) + "├─"
		}
		top = cursorBoxStyle.Render("╔" + strings.Repeat("═", innerW) + "╗")
		mid = cursorBoxStyle.Render("║") + inner + cursorBoxStyle.Render("║")
		bot = cursorBoxStyle.Render("╚" + strings.Repeat("═", innerW) + "╝")
		return
	}

	// ── Normal cells ──
	emptyRow := strings.Repeat(" ", cellW)
	halfW := cellW / 2
	vertRow := strings.Repeat(" ", halfW) + st.Render("│") + strings.Repeat(" ", cellW-halfW-1)
	dashL := (cellW - 1) / 2
	dashR := cellW - dashL - 1
	margin := (cellW - gateBoxW) / 2
	rightMargin := cellW - margin - gateBoxW
	boxLine := func(left, fill, right string) string {
		return strings.Repeat(" ", margin) + st.Render(left+fill+right) + strings.Repeat(" ", rightMargin)
	}
	edge := func(connect bool, joint string) string {
		if connect {
			side := (gateNameW - 1) / 2
			return strings.Repeat("─", side) + joint + strings.Repeat("─", gateNameW-side-1)
		}
		return strings.Repeat("─", gateNameW)
	}

	top, bot = emptyRow, emptyRow
	if info.vertAbove {
		top = vertRow
	}
	if info.vertBelow {
		bot = vertRow
	}

	switch info.role {
	case roleWire:
		mid = strings.Repeat("─", cellW)
	case rolePass:
		mid = strings.Repeat("─", dashL) + st.Render("┼") + strings.Repeat("─", dashR)
	case roleDot, roleTarget:
		mid = strings.Repeat("─", dashL) + st.Render(info.label) + strings.Repeat("─", dashR)
	case roleBox:
		top = boxLine("┌", edge(info.vertAbove, "┴"), "┐")
		mid = strings.Repeat("─", margin) + st.Render("┤"+padCenter(info.label, gateNameW)+"├") + strings.Repeat("─", rightMargin)
		bot = boxLine("└", edge(info.vertBelow, "┬"), "┘")
	case roleSpan:
		top = boxLine("│", strings.Repeat(" ", gateNameW), "│")
		if info.first {
			top = boxLine("┌", strings.Repeat("─", gateNameW), "┐")
		}
		mid = strings.Repeat("─", margin) + st.Render("┤"+padCenter(info.label, gateNameW)+"├") + strings.Repeat("─", rightMargin)
		bot = boxLine("│", strings.Repeat(" ", gateNameW), "│")
		if info.last {
			bot = boxLine("└", strings.Repeat("─", gateNameW), "┘")
		}
	}
	return
}

// rowLabels names every root row after the register holding it.
func rowLabels(c *circuit.Circuit) []string {
	var labels []string
	for _, d := range c.Registers {
		for i := range d.Width {
			if d.Width == 1 {
				labels = append(labels, d.Name)
			} else {
				labels = append(labels, fmt.Sprintf("%s[%d]", d.Name, i))
			}
		}
	}
	return labels
}

// registerAt returns the declaration holding root row.
func registerAt(c *circuit.Circuit, row int) (circuit.RegisterDecl, bool) {
	off := 0
	for _, d := range c.Registers {
		if row >= off && row < off+d.Width {
			return d, true
		}
		off += d.Width
	}
	return circuit.RegisterDecl{}, false
}

// ──────────────────────────── State table ────────────────────────────

// stateRow is one formatted basis state of the watched register.
type stateRow struct {
	ket, amplitude, probability, bar string
}

func (r stateRow) String() string {
	return strings.TrimRight(r.ket+"  "+r.amplitude+"  "+r.probability+"  "+r.bar, " ")
}

// stateTable formats states with aligned columns and a bar of up to
// barWidth cells per row.
func stateTable(states []quantum.OutputState, barWidth int) []stateRow {
	ketW, ampW := 0, 0
	for _, s := range states {
		ketW = max(ketW, runewidth.StringWidth(s.Ket()))
		ampW = max(ampW, runewidth.StringWidth(s.AmplitudeString()))
	}
	rows := make([]stateRow, len(states))
	for i, s := range states {
		n := int(math.Round(s.Probability * float64(barWidth)))
		rows[i] = stateRow{
			ket:         runewidth.FillRight(s.Ket(), ketW),
			amplitude:   runewidth.FillLeft(s.AmplitudeString(), ampW),
			probability: fmt.Sprintf("%6.2f%%", 100*s.Probability),
			bar:         strings.Repeat("█", n),
		}
	}
	return rows
}

// stateRows is the plain-text state table used outside the TUI.
func stateRows(states []quantum.OutputState, barWidth int) []string {
	rows := stateTable(states, barWidth)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String()
	}
	return out
}

// styledState renders the state table for the state panel viewport.
func styledState(states []quantum.OutputState) string {
	if len(states) == 0 {
		return dimStyle.Render("no state")
	}
	var sb strings.Builder
	for _, r := range stateTable(states, barW) {
		sb.WriteString(qubitLabelStyle.Render(r.ket))
		sb.WriteString("  ")
		sb.WriteString(r.amplitude)
		sb.WriteString("  ")
		sb.WriteString(activeGateStyle.Render(r.probability))
		sb.WriteString("  ")
		sb.WriteString(probBarStyle.Render(r.bar))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderCircuitPanel renders the step grid. The column at the evaluator
// position is the next step to run; the trailing column marks the end.
func (m Model) renderCircuitPanel(width, height int) string {
	var sb strings.Builder
	c := m.ev.Circuit()

	sb.WriteString(titleStyle.Render("Circuit"))
	sb.WriteString("\n\n")
	if c == nil || !m.ev.Started() {
		sb.WriteString(dimStyle.Render("No circuit loaded. Tab to edit the script, ^R to load."))
		return circuitStyle.Width(width).Height(height).Render(sb.String())
	}

	labels := rowLabels(c)
	labelW := 0
	for _, l := range labels {
		labelW = max(labelW, runewidth.StringWidth(l))
	}
	labelW += 1

	// How many columns fit
	availWidth := width - labelW - 2 - 4
	maxCols := max(availWidth/cellW, 1)
	pos := m.ev.Position()
	cols := len(c.Steps) + 1

	startStep := 0
	if pos >= maxCols {
		startStep = pos - maxCols + 1
	}
	endStep := min(startStep+maxCols, cols)

	if startStep > 0 {
		fmt.Fprintf(&sb, "  ◀ showing steps %d–%d\n", startStep, endStep-1)
	}

	// Step number header
	header := strings.Repeat(" ", labelW+2)
	for k := startStep; k < endStep; k++ {
		label := fmt.Sprintf("%d", k)
		if k == len(c.Steps) {
			label = "end"
		}
		if k == pos {
			header += activeGateStyle.Render(padCenter("▼"+label, cellW))
		} else {
			header += dimStyle.Render(padCenter(label, cellW))
		}
	}
	sb.WriteString(header + "\n")

	// Render each root row as 3 lines
	for row, label := range labels {
		topLine := strings.Repeat(" ", labelW+2)
		midLine := qubitLabelStyle.Render(runewidth.FillRight(label, labelW)) + "──"
		botLine := strings.Repeat(" ", labelW+2)

		for k := startStep; k < endStep; k++ {
			col := colApplied
			switch {
			case k == pos:
				col = colNext
			case k > pos:
				col = colPending
			}
			top, mid, bot := renderCell(cellAt(c.Gates(k), row), col, k == pos && row == m.cursorRow && m.focus == focusCircuit)
			topLine += top
			midLine += mid
			botLine += bot
		}

		sb.WriteString(topLine + "\n")
		sb.WriteString(midLine + "\n")
		sb.WriteString(botLine + "\n")
	}

	fmt.Fprintf(&sb, "\n  Step %d/%d", pos, len(c.Steps))
	if d, ok := registerAt(c, m.cursorRow); ok {
		fmt.Fprintf(&sb, "  │  row %d in %s", m.cursorRow, d.Name)
	}
	if m.statusMsg != "" {
		fmt.Fprintf(&sb, "  │  %s", activeGateStyle.Render(m.statusMsg))
	}

	return circuitStyle.Width(width).Height(height).Render(sb.String())
}

// renderScriptPanel renders the circuit script editor panel.
func (m Model) renderScriptPanel(width, height int) string {
	var sb strings.Builder

	title := "Script"
	if m.focus == focusScript {
		title += " [ACTIVE]"
	}
	if m.script.Value() != m.lastScript {
		title += " *"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(m.script.View())
	if m.parseErr != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(ansi.Wrap(m.parseErr.Error(), max(width-4, 10), "")))
	}

	return scriptStyle.Width(width).Height(height).Render(sb.String())
}

// renderStatePanel renders the watched register's amplitudes.
func (m Model) renderStatePanel(width, height int) string {
	var sb strings.Builder

	title := fmt.Sprintf("State: %s", m.ev.Watched())
	if r, err := m.ev.Computer().ResolveParam(m.ev.Watched()); err == nil && r.Width() > 0 && r.IsEntangled() {
		title += dimStyle.Render("  (entangled, amplitudes unavailable)")
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(m.stateView.View())

	return stateStyle.Width(width).Height(height).Render(sb.String())
}

// renderControlsPanel renders the bottom key help bar.
func (m Model) renderControlsPanel(width, height int) string {
	return controlsStyle.Width(width).Height(height).Render(m.help.View(m.keys))
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt composites the overlay string on top of the background at position (x, y).
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	ovLines := strings.Split(overlay, "\n")

	for i, ovLine := range ovLines {
		bgIdx := y + i
		if bgIdx < 0 || bgIdx >= len(bgLines) {
			continue
		}
		bgLines[bgIdx] = spliceLineAt(bgLines[bgIdx], ovLine, x)
	}
	return strings.Join(bgLines, "\n")
}

// spliceLineAt replaces the visible columns of bgLine starting at x with
// overlay, keeping the escape sequences on either side.
func spliceLineAt(bgLine, overlay string, x int) string {
	prefix := ansi.Truncate(bgLine, x, "")
	if w := ansi.StringWidth(prefix); w < x {
		prefix += strings.Repeat(" ", x-w)
	}
	suffix := ansi.TruncateLeft(bgLine, x+ansi.StringWidth(overlay), "")
	return prefix + overlay + suffix
}
