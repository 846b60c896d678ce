package main

import (
	"fmt"
	"strings"

	"qtermstep/quantum"
)

// menuItem is one entry of the picker. Watch entries carry the register to
// report; macro entries the definition to insert into the script.
type menuItem struct {
	name   string
	detail string
	watch  quantum.Param
	macro  *quantum.MacroDef
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// menuCategories builds the picker from the loaded circuit and the macro
// registry.
func (m Model) menuCategories() []menuCategory {
	watch := menuCategory{name: "Watch"}
	if c := m.ev.Circuit(); c != nil {
		watch.items = append(watch.items, menuItem{
			name:   "root",
			detail: fmt.Sprintf("%d qubits", c.Width()),
			watch:  quantum.RegisterRef{Name: "root"},
		})
		for _, d := range c.Registers {
			watch.items = append(watch.items, menuItem{
				name:   d.Name,
				detail: fmt.Sprintf("%d qubits", d.Width),
				watch:  quantum.RegisterRef{Name: d.Name},
			})
		}
	}

	macros := menuCategory{name: "Macros"}
	for _, def := range quantum.Macros() {
		sig := strings.TrimPrefix(def.Signature(), def.Name)
		macros.items = append(macros.items, menuItem{name: def.Name, detail: sig, macro: def})
	}
	return []menuCategory{watch, macros}
}

// selectMenuItem acts on the highlighted entry: watch a register, or append
// a call template for a macro to the script and switch to the editor.
func (m *Model) selectMenuItem(item menuItem) {
	switch {
	case item.watch != nil:
		if err := m.ev.Watch(item.watch); err != nil {
			m.statusMsg = fmt.Sprintf("Watch error: %v", err)
			return
		}
		m.refreshState()
		m.focus = focusCircuit
	case item.macro != nil:
		src := strings.TrimRight(m.script.Value(), "\n")
		m.script.SetValue(src + "\nstep " + item.macro.Name + "()")
		m.statusMsg = "usage: " + item.macro.Signature()
		m.focus = focusScript
		m.script.Focus()
	}
}

// renderMenu renders the floating picker popup.
func (m Model) renderMenu() string {
	var sb strings.Builder
	cats := m.menuCategories()

	sb.WriteString(titleStyle.Render("Watch / Insert"))
	sb.WriteString("\n")

	// Category tabs
	for i, cat := range cats {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(activeGateStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(cats)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 42)))
	sb.WriteString("\n")

	// Items in the selected category
	cat := cats[m.menuCat]
	if len(cat.items) == 0 {
		sb.WriteString(dimStyle.Render("   (none)\n"))
	}
	for i, item := range cat.items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-22s", item.name)))
			sb.WriteString(gateStyle.Render(item.detail))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-22s", item.name)))
			sb.WriteString(dimStyle.Render(item.detail))
		}
		sb.WriteString("\n")
	}
	if cat.items != nil && m.menuItem < len(cat.items) {
		if def := cat.items[m.menuItem].macro; def != nil && def.Doc != "" {
			sb.WriteString(dimStyle.Render(" " + def.Doc))
			sb.WriteString("\n")
		}
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Tab  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}
