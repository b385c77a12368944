package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// dialog is the modal text entry used to name a new paper. While open it
// receives every key.
type dialog struct {
	open  bool
	title string
	input textinput.Model
}

func newDialog() dialog {
	input := textinput.New()
	input.Placeholder = dialogPlaceholder
	input.CharLimit = dialogCharLimit
	input.Width = 48
	input.Prompt = "› "
	return dialog{input: input}
}

func (d *dialog) Open(title string) tea.Cmd {
	d.open = true
	d.title = title
	d.input.SetValue("")
	return d.input.Focus()
}

func (d *dialog) Close() {
	d.open = false
	d.input.Blur()
	d.input.SetValue("")
}

// Update feeds key to the input. On submit it returns the trimmed value;
// empty submissions keep the dialog open.
func (d *dialog) Update(key tea.KeyMsg) (dialogResult, string, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		d.Close()
		return dialogCanceled, "", nil
	case tea.KeyEnter:
		value := strings.TrimSpace(d.input.Value())
		if value == "" {
			return dialogPending, "", nil
		}
		d.Close()
		return dialogSubmitted, value, nil
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(key)
	return dialogPending, "", cmd
}

func (d *dialog) View(width int) string {
	body := strings.Join([]string{
		sectionHeaderStyle.Render(d.title),
		d.input.View(),
		helperStyle.Render("Enter to start reading • Esc to cancel"),
	}, "\n")
	box := dialogBoxStyle.Render(body)
	if width <= 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
}
