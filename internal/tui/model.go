// Package tui provides the BubbleTea view behind `overlayctl watch`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/overlayd/internal/dbus"
)

// Controller is the subset of the bus client the view drives.
type Controller interface {
	Dismiss(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// callTimeout bounds each bus call made from a key press.
const callTimeout = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// priorityColors maps priority names to border colors.
var priorityColors = map[string]lipgloss.Color{
	"low":      lipgloss.Color("8"),
	"normal":   lipgloss.Color("12"),
	"high":     lipgloss.Color("11"),
	"critical": lipgloss.Color("9"),
}

// Model is the watch view: the current overlay content, updated live.
type Model struct {
	ctrl   Controller
	events <-chan dbus.ContentInfo

	current dbus.ContentInfo
	changes int // Changes seen since start
	closed  bool

	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int

	statusMsg string
	statusErr bool

	now func() time.Time
}

// New creates the watch model. events is typically Client.Watch.
func New(ctrl Controller, events <-chan dbus.ContentInfo, showHelp bool) Model {
	return Model{
		ctrl:     ctrl,
		events:   events,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		showHelp: showHelp,
		now:      time.Now,
	}
}

type contentMsg dbus.ContentInfo

type streamClosedMsg struct{}

type tickMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Init starts listening for changes and the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange, tick())
}

// waitForChange blocks on the next bus event.
func (m Model) waitForChange() tea.Msg {
	info, ok := <-m.events
	if !ok {
		return streamClosedMsg{}
	}
	return contentMsg(info)
}

// tick drives the relative times in the view.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case contentMsg:
		m.current = dbus.ContentInfo(msg)
		m.changes++
		return m, m.waitForChange

	case streamClosedMsg:
		m.closed = true
		return m, func() tea.Msg {
			return statusMsg{text: "Connection to overlayd lost", isErr: true}
		}

	case tickMsg:
		return m, tick()

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Copy failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, func() tea.Msg {
			return statusMsg{text: "Copied to clipboard"}
		}
	}

	return m, nil
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if !m.current.Present {
			return m, nil
		}
		id := m.current.ID
		return m, m.call("Dismissed", func(ctx context.Context) error {
			return m.ctrl.Dismiss(ctx, id)
		})

	case key.Matches(msg, m.keys.Clear):
		return m, m.call("Cleared", m.ctrl.ClearAll)

	case key.Matches(msg, m.keys.Copy):
		if !m.current.Present {
			return m, nil
		}
		return m, copyToClipboard(m.current.Text)
	}

	return m, nil
}

// call runs a bus call off the UI goroutine and reports the outcome.
func (m Model) call(done string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return statusMsg{text: done + " failed: " + err.Error(), isErr: true}
		}
		return statusMsg{text: done}
	}
}

// View renders the view.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("overlayd"))
	sb.WriteString(metaStyle.Render(fmt.Sprintf("  %s seen", humanize.Comma(int64(m.changes)))))
	sb.WriteString("\n\n")

	sb.WriteString(m.viewContent())
	sb.WriteString("\n")

	if m.statusMsg != "" {
		style := okStyle
		if m.statusErr {
			style = errStyle
		}
		sb.WriteString(style.Render(m.statusMsg))
		sb.WriteString("\n")
	}

	if m.showHelp {
		sb.WriteString("\n")
		sb.WriteString(m.help.View(m.keys))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) viewContent() string {
	if !m.current.Present {
		if m.closed {
			return emptyStyle.Render("disconnected")
		}
		return emptyStyle.Render("nothing on the overlay")
	}

	c := m.current
	style := boxStyle
	if color, ok := priorityColors[c.Priority]; ok {
		style = style.BorderForeground(color)
	}
	if c.Priority == "critical" {
		style = style.Bold(true)
	}
	if m.width > 4 {
		style = style.MaxWidth(m.width)
	}

	now := m.now()
	meta := []string{c.Priority}
	if !c.CreatedAt.IsZero() {
		meta = append(meta, "shown "+humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
	}
	if exp := c.ExpiresAt(); !exp.IsZero() {
		meta = append(meta, "expires "+humanize.RelTime(exp, now, "ago", "from now"))
	} else {
		meta = append(meta, "no expiry")
	}

	return style.Render(c.Text) + "\n" + metaStyle.Render(strings.Join(meta, " · "))
}

// Run shows the watch view until the user quits or ctx is done.
func Run(ctx context.Context, ctrl Controller, events <-chan dbus.ContentInfo, showHelp bool) error {
	p := tea.NewProgram(New(ctrl, events, showHelp), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
