package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/governor/cli/reader"
)

// InspectModel is a Bubble Tea model for the run inspect view.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_run":
		content = m.renderInspectRun()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectRun() string {
	data, ok := m.data.(*reader.InspectRunResponse)
	if !ok {
		return "Invalid data type for inspect_run"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Run " + data.RunID))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Run Instance", data.RunInstanceID},
		{"Suite", data.Suite},
		{"State", data.ExitStatus},
		{"Cases", fmt.Sprintf("%d/%d", data.TotalCasesCompleted, data.TotalCasesExpected)},
		{"Executed", fmt.Sprintf("%d", data.ExecutedActionCount)},
		{"Blocked", fmt.Sprintf("%d", data.BlockedActionCount)},
		{"Modified", fmt.Sprintf("%d", data.ModifiedActionCount)},
		{"Started", data.RunStartTsUTC},
		{"Ended", data.RunEndTsUTC},
		{"Log Hash", data.ExecutionLogHash},
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "State" {
			value = StateStyle(stateAlias(data.ExitStatus)).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if overall, ok := data.Verification["overall"].(map[string]any); ok {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Verification"))
		b.WriteString("\n")
		pass, _ := overall["pass"].(bool)
		state := "failed"
		if pass {
			state = "succeeded"
		}
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Overall:"),
			StateStyle(state).Render(fmt.Sprintf("%v", pass))))
	}

	if len(data.Metrics) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Metrics"))
		b.WriteString("\n")
		keys := make([]string, 0, len(data.Metrics))
		for k := range data.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(k+":"),
				ValueStyle.Render(fmt.Sprintf("%v", data.Metrics[k]))))
		}
	}

	return BoxStyle.Render(b.String())
}

// stateAlias maps a run's exit status onto the state color buckets
// StateStyle already understands.
func stateAlias(exitStatus string) string {
	switch exitStatus {
	case "ok":
		return "succeeded"
	case "partial":
		return "running"
	default:
		return "failed"
	}
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
