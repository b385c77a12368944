package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperclip/internal/session"
)

// screen pairs the key routing and rendering of one session.Screen.
type screen struct {
	route func(key tea.KeyMsg) action
	view  func(m *model, snap session.Snapshot) string
}

// screenFor is the only place screens are dispatched. A new Screen value
// must be added here or the program panics on first use.
func screenFor(s session.Screen) screen {
	switch s {
	case session.MainMenu:
		return screen{route: mainMenuRoute, view: (*model).mainMenuView}
	case session.Reading:
		return screen{route: readingRoute, view: (*model).readingView}
	case session.PaperSelection:
		return screen{route: selectionRoute, view: (*model).selectionView}
	default:
		panic(fmt.Sprintf("tui: no screen registered for %v (%d)", s, int(s)))
	}
}

// route maps a key to an action for the current screen. It never touches
// the session.
func route(snap session.Snapshot, key tea.KeyMsg) action {
	if key.Type == tea.KeyCtrlC {
		return actionQuit
	}
	return screenFor(snap.Screen).route(key)
}

func mainMenuRoute(key tea.KeyMsg) action {
	switch key.String() {
	case "n":
		return actionOpenNewPaper
	case "c":
		return actionOpenSelection
	case "q":
		return actionQuit
	}
	return actionNone
}

func readingRoute(key tea.KeyMsg) action {
	switch key.String() {
	case "s":
		return actionStopReading
	case "e":
		return actionExplain
	case "y":
		return actionCopyNote
	case "?":
		return actionToggleHelp
	}
	return actionNone
}

func selectionRoute(key tea.KeyMsg) action {
	switch key.String() {
	case "up", "k":
		return actionCursorUp
	case "down", "j":
		return actionCursorDown
	case "enter":
		return actionChoosePaper
	case "r":
		return actionRefreshPapers
	case "esc":
		return actionBackToMenu
	}
	return actionNone
}
