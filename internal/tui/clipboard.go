package tui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// copyFunc writes text to the system clipboard.
var copyFunc = clipboard.WriteAll

// copyToClipboard copies text off the UI goroutine.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: copyFunc(text)}
	}
}
