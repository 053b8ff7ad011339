// Package tui renders a terminal progress view for a background run.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

// ElapsedMsg carries the elapsed whole seconds of the watched job.
type ElapsedMsg int

// ImageMsg reports one finished image.
type ImageMsg struct {
	Index  int
	Total  int
	ID     string
	Values []int
	Err    error
}

// DoneMsg is sent once the job ends.
type DoneMsg struct{ Err error }

// KeyMap holds the view's bindings. The run itself cannot be stopped; quit
// only closes the view.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default key mappings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q", "esc"),
			key.WithHelp("q", "hide"),
		),
	}
}

// ProgressModel shows a spinner, the elapsed seconds and the last image.
type ProgressModel struct {
	Title   string
	spinner spinner.Model
	keys    KeyMap

	elapsed int
	done    int
	failed  int
	total   int
	last    string

	finished bool
	err      error
	quitting bool
}

// NewProgressModel creates a view for a run over total images.
func NewProgressModel(title string, total int) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = TitleStyle
	return ProgressModel{
		Title:   title,
		spinner: s,
		keys:    DefaultKeyMap(),
		total:   total,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case ElapsedMsg:
		m.elapsed = int(msg)
	case ImageMsg:
		if msg.Total > 0 {
			m.total = msg.Total
		}
		if msg.Err != nil {
			m.failed++
		} else {
			m.done++
		}
		m.last = filepath.Base(msg.ID)
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	switch {
	case m.finished && m.err != nil:
		b.WriteString(ErrorStyle.Render("✗ " + m.Title + " failed: " + m.err.Error()))
	case m.finished:
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("✓ %s finished in %ds", m.Title, m.elapsed)))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(TitleStyle.Render(m.Title))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  %ds", m.elapsed)))
	}
	b.WriteString("\n")

	counts := fmt.Sprintf("%d/%d images", m.done, m.total)
	if m.failed > 0 {
		counts += ErrorStyle.Render(fmt.Sprintf(", %d failed", m.failed))
	}
	b.WriteString(counts)
	if m.last != "" {
		b.WriteString(MutedStyle.Render("  last: " + m.last))
	}
	b.WriteString("\n")
	if !m.finished && !m.quitting {
		b.WriteString(MutedStyle.Render("q: hide (the run continues)"))
		b.WriteString("\n")
	}
	return b.String()
}

// Finished reports whether DoneMsg was received.
func (m ProgressModel) Finished() bool { return m.finished }

// Err returns the job error delivered by DoneMsg.
func (m ProgressModel) Err() error { return m.err }
