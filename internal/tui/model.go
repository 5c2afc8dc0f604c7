// Package tui is the terminal progress view shown while a batch runs.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/ops"
)

const (
	defaultWidth = 60
	maxBarWidth  = 80
	padding      = 2
)

// StatusCancelling is shown between a cancel request and the end of the batch.
const StatusCancelling = "Cancelling after the current identifier..."

// ProgressMsg carries one batch progress update into the program.
type ProgressMsg batch.Progress

// DoneMsg is sent when the batch returns.
type DoneMsg struct {
	Output *ops.RunOutput
	Err    error
}

// Model is the Bubble Tea model for the batch progress view.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type Model struct {
	title  string
	bar    progress.Model
	cancel context.CancelFunc

	index      int
	total      int
	status     string
	cancelling bool

	done   bool
	output *ops.RunOutput
	err    error
}

// NewModel creates a progress view. cancel is called when the user asks to stop.
func NewModel(title string, cancel context.CancelFunc) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = defaultWidth
	return Model{
		title:  title,
		bar:    bar,
		cancel: cancel,
		status: "Processing...",
	}
}

// Init initializes the model (Bubble Tea interface).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-padding*2, 10), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.status = StatusCancelling
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case ProgressMsg:
		m.index = msg.Index
		m.total = msg.Total
		if !m.cancelling {
			m.status = msg.Status
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.output = msg.Output
		m.err = msg.Err
		if msg.Output != nil {
			m.status = msg.Output.Status
		}
		return m, tea.Quit
	}
	return m, nil
}

// Percent returns progress in [0, 1].
func (m Model) Percent() float64 {
	if m.total <= 0 {
		if m.done && m.err == nil {
			return 1
		}
		return 0
	}
	return float64(m.index) / float64(m.total)
}

// View renders the model (Bubble Tea interface).
func (m Model) View() string {
	pad := strings.Repeat(" ", padding)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(pad + titleStyle.Render(m.title) + "\n\n")
	b.WriteString(pad + m.bar.ViewAs(m.Percent()) + "\n")
	b.WriteString(pad + statusStyle.Render(fmt.Sprintf("%d/%d", m.index, m.total)) + "  " + m.renderStatus() + "\n")

	if !m.done {
		b.WriteString("\n" + pad + helpStyle.Render("q / ctrl+c: stop after the current identifier") + "\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return errStyle.Render(m.err.Error())
	case m.done && m.output != nil && m.output.Interrupted:
		return warnStyle.Render(m.status)
	case m.done:
		return okStyle.Render(m.status)
	case m.cancelling:
		return warnStyle.Render(m.status)
	default:
		return statusStyle.Render(m.status)
	}
}
