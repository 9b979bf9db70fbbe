package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/effectgen/callsite"
	"github.com/wippyai/effectgen/mono"
)

var selectedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4"))

// maxRows bounds the variant list shown at once.
const maxRows = 20

type modelState int

const (
	stateBrowse modelState = iota
	stateDetail
	stateDiagnostics
)

type interactiveModel struct {
	ctx      context.Context
	err      error
	unit     *unit
	filter   textinput.Model
	opts     options
	all      []*mono.Variant
	shown    []*mono.Variant
	selected int
	state    modelState
}

type compiledMsg struct {
	err  error
	unit *unit
}

func newInteractiveModel(ctx context.Context, opts options) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "filter variants"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	return &interactiveModel{ctx: ctx, opts: opts, filter: ti, state: stateBrowse}
}

func runInteractive(ctx context.Context, opts options) error {
	_, err := tea.NewProgram(newInteractiveModel(ctx, opts), tea.WithContext(ctx)).Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.compile, textinput.Blink)
}

func (m *interactiveModel) compile() tea.Msg {
	u, err := compile(m.ctx, m.opts)
	return compiledMsg{unit: u, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateBrowse && m.selected < len(m.shown)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateBrowse && len(m.shown) > 0 {
				m.state = stateDetail
			}
			return m, nil

		case "tab":
			if m.state == stateBrowse {
				m.state = stateDiagnostics
			} else {
				m.state = stateBrowse
			}
			return m, nil

		case "ctrl+r":
			return m, m.compile

		case "esc":
			if m.state != stateBrowse {
				m.state = stateBrowse
				return m, nil
			}
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.applyFilter()
				return m, nil
			}
			return m, tea.Quit
		}

	case compiledMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.unit = msg.unit
		m.all = msg.unit.res.Catalog.Variants()
		m.applyFilter()
		return m, nil
	}

	if m.state != stateBrowse {
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.shown = m.shown[:0]
	for _, v := range m.all {
		if q == "" || strings.Contains(strings.ToLower(v.Name), q) || strings.Contains(strings.ToLower(string(v.Key.Decl)), q) {
			m.shown = append(m.shown, v)
		}
	}
	if m.selected >= len(m.shown) {
		m.selected = max(len(m.shown)-1, 0)
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+r to retry, ctrl+c to quit.", m.err))
	}
	if m.unit == nil {
		return "Lowering " + m.opts.manifest + "..."
	}

	var b strings.Builder
	diags := m.unit.diagnostics()
	b.WriteString(titleStyle.Render("effectgen"))
	b.WriteString(" ")
	b.WriteString(m.opts.manifest)
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %d variants, %d errors, %d warnings",
		len(m.all), len(diags.Fatal()), len(diags.Warnings()))))
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		start := 0
		if m.selected >= maxRows {
			start = m.selected - maxRows + 1
		}
		for i := start; i < len(m.shown) && i < start+maxRows; i++ {
			v := m.shown[i]
			line := fmt.Sprintf("%-48s %s", v.Name, v.Source.Kind)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.shown) == 0 {
			b.WriteString(helpStyle.Render("  no variants match"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • tab diagnostics • ctrl+r reload • esc quit"))

	case stateDetail:
		v := m.shown[m.selected]
		b.WriteString(nameStyle.Render(v.Name))
		b.WriteString("  ")
		b.WriteString(helpStyle.Render(v.Key.String()))
		b.WriteString("\n\n")
		for _, line := range describe(m.unit.res, v) {
			b.WriteString("  " + line + "\n")
		}
		for _, bd := range m.unit.res.Bindings {
			if bd.Caller != v.Key {
				continue
			}
			target := bd.Resolution.State.String()
			if bd.Resolution.State == callsite.Resolved {
				target = bd.Resolution.Target.String()
			}
			b.WriteString(fmt.Sprintf("  %s -> %s\n", bd.Site, typeStyle.Render(target)))
			for _, st := range bd.Resolution.Steps {
				b.WriteString(helpStyle.Render(fmt.Sprintf("      %s=%t from %s", st.Kind, st.Value, st.Source)))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • ctrl+c quit"))

	case stateDiagnostics:
		if len(diags) == 0 {
			b.WriteString("No diagnostics.\n")
		}
		for _, d := range diags {
			style := errorStyle
			if !d.IsFatal() {
				style = warnStyle
			}
			b.WriteString(style.Render(d.Error()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab variants • ctrl+c quit"))
	}

	return b.String()
}
