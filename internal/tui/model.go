package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"paperpipe/internal/domain"
	"paperpipe/internal/pipeline"
)

// historySize bounds the finished-document lines kept on screen.
const historySize = 8

type batchStartedMsg struct {
	runID string
	total int
}

type transitionMsg struct {
	doc    string
	state  domain.State
	detail string
}

type batchFinishedMsg struct{ summary pipeline.Summary }

// DoneMsg tells the model the batch goroutine returned.
type DoneMsg struct{ Err error }

// Model is the Bubble Tea model that follows a running batch.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	stop     func()

	runID    string
	total    int
	finished int
	current  string
	state    domain.State
	history  []string
	summary  *pipeline.Summary
	err      error
	stopping bool
	done     bool
}

// New creates a progress model. stop is called once when the user asks to
// interrupt the batch.
func New(stop func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return Model{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		stop:     stop,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd { return m.spinner.Tick }

// Update handles pipeline events and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(60, max(10, msg.Width-20))
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.done {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				if m.stop != nil {
					m.stop()
				}
			}
		}
		return m, nil
	case batchStartedMsg:
		m.runID = msg.runID
		m.total = msg.total
		return m, nil
	case transitionMsg:
		m.current = msg.doc
		m.state = msg.state
		if msg.state.Terminal() {
			m.finished++
			m.history = append(m.history, renderOutcome(msg))
			if len(m.history) > historySize {
				m.history = m.history[len(m.history)-historySize:]
			}
		}
		return m, nil
	case batchFinishedMsg:
		m.summary = &msg.summary
		return m, nil
	case DoneMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the batch header, progress bar, recent outcomes and footer.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("paperpipe"))
	if m.runID != "" {
		b.WriteString(" " + dimStyle.Render("run "+m.runID))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
		return b.String()
	}

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.finished, m.total))
	if !m.done && m.current != "" && !m.state.Terminal() {
		b.WriteString(m.spinner.View() + " " + m.current + " " + dimStyle.Render(string(m.state)) + "\n")
	}
	if len(m.history) > 0 {
		b.WriteString("\n" + historyStyle.Render(strings.Join(m.history, "\n")) + "\n")
	}

	switch {
	case m.summary != nil:
		s := m.summary
		line := fmt.Sprintf("processed %d, quarantined %d, skipped %d", s.Processed, s.Quarantined, s.Skipped)
		if s.Interrupted {
			line += ", interrupted"
		}
		b.WriteString("\n" + okStyle.Render(line) + "\n")
	case m.stopping:
		b.WriteString("\n" + warnStyle.Render("Stopping after the current document...") + "\n")
	default:
		b.WriteString("\n" + dimStyle.Render("q: stop after the current document") + "\n")
	}
	return b.String()
}

func (m Model) percent() float64 {
	if m.total == 0 {
		if m.summary != nil {
			return 1
		}
		return 0
	}
	return float64(m.finished) / float64(m.total)
}

func renderOutcome(msg transitionMsg) string {
	switch msg.state {
	case domain.StateCleaned:
		return okStyle.Render("✓") + " " + msg.doc
	case domain.StateSkipped:
		return dimStyle.Render("- " + msg.doc + " (skipped)")
	default:
		return errorStyle.Render("✗") + " " + msg.doc + " " + dimStyle.Render(msg.detail)
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	historyStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
