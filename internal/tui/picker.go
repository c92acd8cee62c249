// Package tui implements the interactive recipe picker.
package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pyrill/rilldev/internal/recipe"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

type item struct {
	rec *recipe.Recipe
}

func (i item) Title() string { return i.rec.Name }

func (i item) Description() string {
	if i.rec.Help == "" {
		return "(no description)"
	}
	return i.rec.Help
}

func (i item) FilterValue() string { return i.rec.Name }

// Picker is a bubbletea model over the resolved recipes. Enter selects a
// recipe and quits; the caller reads the selection via Choice.
type Picker struct {
	list   list.Model
	choice *recipe.Recipe
}

// NewPicker creates a Picker over the registry.
func NewPicker(packageName string, registry *recipe.Registry) *Picker {
	items := make([]list.Item, 0, registry.Len())
	for _, rec := range registry.All() {
		items = append(items, item{rec: rec})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recipes for " + packageName
	l.Styles.Title = titleStyle

	return &Picker{list: l}
}

// Choice returns the selected recipe, or nil if the picker was dismissed.
func (p *Picker) Choice() *recipe.Recipe { return p.choice }

func (p *Picker) Init() tea.Cmd {
	return nil
}

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return p, tea.Quit
		case "enter":
			if sel, ok := p.list.SelectedItem().(item); ok {
				p.choice = sel.rec
			}
			return p, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		p.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p *Picker) View() string {
	return docStyle.Render(p.list.View())
}
